package ports

import (
	"time"
)

type DatabaseStats struct {
	PerformanceRows   int64 `json:"model_performance_records"`
	ExternalCacheRows int64 `json:"external_data_cache_records"`
	TelemetryRows     int64 `json:"telemetry_event_records"`
	CheckpointRows    int64 `json:"bandit_checkpoint_records"`
}

type TelemetryStats struct {
	TotalCalls         int64   `json:"total_calls"`
	AvgLatencyMs       float64 `json:"avg_latency_ms"`
	SuccessRate        float64 `json:"success_rate"`
	AvgCostUSD         float64 `json:"avg_cost_usd"`
	AvgCostPer1kTokens float64 `json:"avg_cost_per_1k_tokens"`
}

// EngineStats backs health/readiness probes.
type EngineStats struct {
	Database            DatabaseStats `json:"database"`
	CacheSize           int           `json:"cache_size"`
	LastRefresh         time.Time     `json:"last_refresh"`
	PersistenceDegraded bool          `json:"persistence_degraded"`
}

// RefreshResult summarises one scheduler cycle.
type RefreshResult struct {
	CacheSize   int           `json:"cache_size"`
	LastUpdated time.Time     `json:"last_updated"`
	Duration    time.Duration `json:"duration"`
}
