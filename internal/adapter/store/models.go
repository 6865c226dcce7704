package store

import (
	"time"
)

type modelPerformanceRow struct {
	ModelName       string    `gorm:"column:model_name;primaryKey"`
	ModelFamily     string    `gorm:"column:model_family;index"`
	ArenaElo        *float64  `gorm:"column:arena_elo"`
	MTEBScore       *float64  `gorm:"column:mteb_score"`
	InternalScore   *float64  `gorm:"column:internal_score"`
	AvgLatencyMs    *float64  `gorm:"column:avg_latency_ms"`
	CostPer1kTokens *float64  `gorm:"column:cost_per_1k_tokens"`
	SuccessRate     float64   `gorm:"column:success_rate;default:1"`
	LastUpdated     time.Time `gorm:"column:last_updated;index"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (modelPerformanceRow) TableName() string {
	return "model_performance"
}

type externalDataCacheRow struct {
	Source    string    `gorm:"column:data_source;primaryKey"`
	Payload   []byte    `gorm:"column:data_payload"`
	FetchedAt time.Time `gorm:"column:fetched_at"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
}

func (externalDataCacheRow) TableName() string {
	return "external_data_cache"
}

type telemetryEventRow struct {
	ID           string    `gorm:"column:id;primaryKey"`
	ModelName    string    `gorm:"column:model_name;index"`
	TaskType     string    `gorm:"column:task_type"`
	Success      bool      `gorm:"column:success"`
	LatencyMs    float64   `gorm:"column:latency_ms"`
	CostUSD      float64   `gorm:"column:cost_usd"`
	QualityScore *float64  `gorm:"column:quality_score"`
	TenantID     string    `gorm:"column:tenant_id"`
	TokensUsed   int       `gorm:"column:tokens_used"`
	Timestamp    time.Time `gorm:"column:timestamp;index"`
}

func (telemetryEventRow) TableName() string {
	return "telemetry_events"
}

type banditCheckpointRow struct {
	TaskType  string    `gorm:"column:task_type;primaryKey"`
	ModelName string    `gorm:"column:model_name;primaryKey"`
	Provider  string    `gorm:"column:provider"`
	Pulls     int64     `gorm:"column:pulls"`
	RewardSum float64   `gorm:"column:reward_sum"`
	Prior     float64   `gorm:"column:prior"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (banditCheckpointRow) TableName() string {
	return "bandit_checkpoints"
}
