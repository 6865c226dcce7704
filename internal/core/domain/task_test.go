package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskType(t *testing.T) {
	for _, tt := range AllTaskTypes() {
		parsed, err := ParseTaskType(tt.String())
		require.NoError(t, err)
		assert.Equal(t, tt, parsed)
	}

	_, err := ParseTaskType("summarise")
	var invalid *ErrInvalidTaskType
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "summarise", invalid.TaskType)
}

func TestIsEmbedding(t *testing.T) {
	assert.True(t, TaskEmbed.IsEmbedding())
	assert.True(t, TaskRerank.IsEmbedding())
	assert.False(t, TaskChat.IsEmbedding())
	assert.False(t, TaskReasoning.IsEmbedding())
}

func TestTaskFamily(t *testing.T) {
	assert.Equal(t, FamilyEmbed, TaskEmbed.Family())
	assert.Equal(t, FamilyEmbed, TaskRerank.Family())
	assert.Equal(t, FamilyChat, TaskChat.Family())
	assert.Equal(t, FamilyChat, TaskReasoning.Family())
}

func TestServesTaskPartitionsByFamily(t *testing.T) {
	embedder := &ModelPerformance{Model: "e5-large-v2", Family: FamilyEmbed}
	assert.True(t, embedder.ServesTask(TaskEmbed))
	assert.True(t, embedder.ServesTask(TaskRerank))
	assert.False(t, embedder.ServesTask(TaskChat))

	chat := &ModelPerformance{Model: "gpt-4o", Family: FamilyChat}
	assert.True(t, chat.ServesTask(TaskReasoning))
	assert.False(t, chat.ServesTask(TaskEmbed))

	// Rows without a recorded family fall back to their benchmark signals.
	legacy := &ModelPerformance{Model: "bge-large-en-v1.5", MTEBScore: Float64Ptr(63.5)}
	assert.True(t, legacy.ServesTask(TaskEmbed))
	assert.False(t, legacy.ServesTask(TaskChat))
	assert.True(t, (&ModelPerformance{Model: "m"}).ServesTask(TaskChat))
}

func TestNewTaskContextDefaults(t *testing.T) {
	taskCtx := NewTaskContext(TaskChat, "acme")

	assert.Equal(t, TaskChat, taskCtx.TaskType)
	assert.Equal(t, "acme", taskCtx.TenantID)
	assert.Equal(t, ComplexityMedium, taskCtx.Complexity)
	assert.Equal(t, DefaultQualityThreshold, taskCtx.QualityThreshold)
	assert.False(t, taskCtx.LatencyCritical)
	assert.False(t, taskCtx.CostSensitive)
	assert.Zero(t, taskCtx.MaxLatencyMs)
}

func TestEligibleRequiresAQualitySignal(t *testing.T) {
	assert.False(t, (&ModelPerformance{Model: "m"}).Eligible())
	assert.True(t, (&ModelPerformance{Model: "m", ArenaElo: Float64Ptr(1200)}).Eligible())
	assert.True(t, (&ModelPerformance{Model: "m", MTEBScore: Float64Ptr(60)}).Eligible())
	assert.True(t, (&ModelPerformance{Model: "m", InternalScore: Float64Ptr(0.8)}).Eligible())
}
