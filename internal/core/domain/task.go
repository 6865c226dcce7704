package domain

const (
	TaskTypeStringChat      = "chat"
	TaskTypeStringEmbed     = "embed"
	TaskTypeStringRerank    = "rerank"
	TaskTypeStringReasoning = "reasoning"
)

type TaskType string

const (
	TaskChat      TaskType = TaskTypeStringChat
	TaskEmbed     TaskType = TaskTypeStringEmbed
	TaskRerank    TaskType = TaskTypeStringRerank
	TaskReasoning TaskType = TaskTypeStringReasoning
)

func (t TaskType) String() string {
	return string(t)
}

// IsEmbedding reports whether the task is scored against embedding
// benchmarks rather than chat leaderboards.
func (t TaskType) IsEmbedding() bool {
	switch t {
	case TaskEmbed, TaskRerank:
		return true
	default:
		return false
	}
}

// ModelFamily splits the model population into the two pools a task can
// draw from. Embedding models never answer chat requests and chat models
// never produce embeddings, so eligibility is partitioned before scoring.
type ModelFamily string

const (
	FamilyChat  ModelFamily = "chat"
	FamilyEmbed ModelFamily = "embed"
)

// Family maps the task taxonomy onto the model pools: embed and rerank
// tasks are served by embedding models, chat and reasoning by chat models.
func (t TaskType) Family() ModelFamily {
	if t.IsEmbedding() {
		return FamilyEmbed
	}
	return FamilyChat
}

// AllTaskTypes lists the closed task taxonomy.
func AllTaskTypes() []TaskType {
	return []TaskType{TaskChat, TaskEmbed, TaskRerank, TaskReasoning}
}

// ParseTaskType validates a caller-supplied task type string.
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(s) {
	case TaskChat, TaskEmbed, TaskRerank, TaskReasoning:
		return TaskType(s), nil
	default:
		return "", &ErrInvalidTaskType{TaskType: s}
	}
}

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

const DefaultQualityThreshold = 0.7

// TaskContext carries the per-request routing requirements. It is
// immutable, created by the caller and never persisted.
type TaskContext struct {
	TaskType         TaskType
	TenantID         string
	Complexity       Complexity
	LatencyCritical  bool
	CostSensitive    bool
	QualityThreshold float64
	MaxLatencyMs     float64 // 0 means unbounded
}

// NewTaskContext applies the documented defaults: medium complexity,
// quality threshold 0.7, no latency or cost pressure.
func NewTaskContext(taskType TaskType, tenantID string) TaskContext {
	return TaskContext{
		TaskType:         taskType,
		TenantID:         tenantID,
		Complexity:       ComplexityMedium,
		QualityThreshold: DefaultQualityThreshold,
	}
}
