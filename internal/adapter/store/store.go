package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tidemark-ai/coxswain/internal/core/domain"
	"github.com/tidemark-ai/coxswain/internal/core/ports"
	"github.com/tidemark-ai/coxswain/internal/logger"
)

// ErrCacheEntryNotFound is returned when no cached payload exists for a
// source, or the cached payload has expired.
var ErrCacheEntryNotFound = errors.New("external cache entry not found")

// SQLiteStore implements ports.PerformanceStore on an embedded database.
// All writes go through gorm transactions and are durable before the
// call returns.
type SQLiteStore struct {
	db     *gorm.DB
	logger *logger.StyledLogger
}

func New(path string, styled *logger.StyledLogger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create persistence directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &SQLiteStore{db: db, logger: styled}, nil
}

// InitializeSchema migrates all collections. Idempotent: safe to call on
// every process start.
func (s *SQLiteStore) InitializeSchema(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&modelPerformanceRow{},
		&externalDataCacheRow{},
		&telemetryEventRow{},
		&banditCheckpointRow{},
	)
	if err != nil {
		return &domain.PersistenceError{Operation: "migrate", Table: "all", Err: err}
	}

	s.logger.Info("persistence schema initialised")
	return nil
}

// UpsertPerformance writes the merged rows, last-writer-wins per model.
func (s *SQLiteStore) UpsertPerformance(ctx context.Context, rows []*domain.ModelPerformance) error {
	if len(rows) == 0 {
		return nil
	}

	records := make([]modelPerformanceRow, 0, len(rows))
	for _, r := range rows {
		records = append(records, modelPerformanceRow{
			ModelName:       r.Model,
			ModelFamily:     string(r.Family),
			ArenaElo:        r.ArenaElo,
			MTEBScore:       r.MTEBScore,
			InternalScore:   r.InternalScore,
			AvgLatencyMs:    r.AvgLatencyMs,
			CostPer1kTokens: r.CostPer1kTokens,
			SuccessRate:     r.SuccessRate,
			LastUpdated:     r.LastUpdated,
		})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "model_name"}},
			UpdateAll: true,
		}).
		Create(&records).Error
	if err != nil {
		return &domain.PersistenceError{Operation: "upsert", Table: "model_performance", Err: err}
	}
	return nil
}

func (s *SQLiteStore) LoadAllPerformance(ctx context.Context) (map[string]*domain.ModelPerformance, error) {
	var records []modelPerformanceRow
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, &domain.PersistenceError{Operation: "load", Table: "model_performance", Err: err}
	}

	out := make(map[string]*domain.ModelPerformance, len(records))
	for i := range records {
		r := records[i]
		out[r.ModelName] = &domain.ModelPerformance{
			Model:           r.ModelName,
			Family:          domain.ModelFamily(r.ModelFamily),
			ArenaElo:        r.ArenaElo,
			MTEBScore:       r.MTEBScore,
			InternalScore:   r.InternalScore,
			AvgLatencyMs:    r.AvgLatencyMs,
			CostPer1kTokens: r.CostPer1kTokens,
			SuccessRate:     r.SuccessRate,
			LastUpdated:     r.LastUpdated,
		}
	}
	return out, nil
}

func (s *SQLiteStore) SaveExternalCache(ctx context.Context, entry *domain.ExternalDataCacheEntry) error {
	record := externalDataCacheRow{
		Source:    entry.Source,
		Payload:   entry.Payload,
		FetchedAt: entry.FetchedAt,
		ExpiresAt: entry.ExpiresAt,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "data_source"}},
			UpdateAll: true,
		}).
		Create(&record).Error
	if err != nil {
		return &domain.PersistenceError{Operation: "upsert", Table: "external_data_cache", Err: err}
	}
	return nil
}

func (s *SQLiteStore) LoadExternalCache(ctx context.Context, source string) (*domain.ExternalDataCacheEntry, error) {
	var record externalDataCacheRow
	err := s.db.WithContext(ctx).First(&record, "data_source = ?", source).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCacheEntryNotFound
		}
		return nil, &domain.PersistenceError{Operation: "load", Table: "external_data_cache", Err: err}
	}

	if !record.ExpiresAt.IsZero() && record.ExpiresAt.Before(time.Now()) {
		return nil, ErrCacheEntryNotFound
	}

	return &domain.ExternalDataCacheEntry{
		Source:    record.Source,
		Payload:   record.Payload,
		FetchedAt: record.FetchedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// RecordTelemetry appends one immutable event.
func (s *SQLiteStore) RecordTelemetry(ctx context.Context, event *domain.TelemetryEvent) error {
	record := telemetryEventRow{
		ID:           event.ID,
		ModelName:    event.Model,
		TaskType:     event.TaskType.String(),
		Success:      event.Success,
		LatencyMs:    event.LatencyMs,
		CostUSD:      event.CostUSD,
		QualityScore: event.QualityScore,
		TenantID:     event.TenantID,
		TokensUsed:   event.TokensUsed,
		Timestamp:    event.Timestamp,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return &domain.PersistenceError{Operation: "append", Table: "telemetry_events", Err: err}
	}
	return nil
}

type telemetryAggregate struct {
	TotalCalls         int64
	AvgLatencyMs       float64
	SuccessRate        float64
	AvgCostUSD         float64
	AvgCostPer1kTokens float64
}

func (s *SQLiteStore) TelemetryStats(ctx context.Context, model string, window time.Duration) (ports.TelemetryStats, error) {
	since := time.Now().Add(-window)

	var agg telemetryAggregate
	err := s.db.WithContext(ctx).
		Model(&telemetryEventRow{}).
		Select(
			"COUNT(*) AS total_calls, "+
				"COALESCE(AVG(latency_ms), 0) AS avg_latency_ms, "+
				"COALESCE(AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END), 1) AS success_rate, "+
				"COALESCE(AVG(cost_usd), 0) AS avg_cost_usd, "+
				"COALESCE(AVG(cost_usd / NULLIF(tokens_used, 0) * 1000), 0) AS avg_cost_per1k_tokens").
		Where("model_name = ? AND timestamp > ?", model, since).
		Scan(&agg).Error
	if err != nil {
		return ports.TelemetryStats{}, &domain.PersistenceError{Operation: "aggregate", Table: "telemetry_events", Err: err}
	}

	if agg.TotalCalls == 0 {
		return ports.TelemetryStats{SuccessRate: 1.0}, nil
	}

	return ports.TelemetryStats{
		TotalCalls:         agg.TotalCalls,
		AvgLatencyMs:       agg.AvgLatencyMs,
		SuccessRate:        agg.SuccessRate,
		AvgCostUSD:         agg.AvgCostUSD,
		AvgCostPer1kTokens: agg.AvgCostPer1kTokens,
	}, nil
}

func (s *SQLiteStore) CleanupTelemetry(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result := s.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&telemetryEventRow{})
	if result.Error != nil {
		return 0, &domain.PersistenceError{Operation: "cleanup", Table: "telemetry_events", Err: result.Error}
	}

	if result.RowsAffected > 0 {
		s.logger.InfoWithCount("cleaned up old telemetry events", int(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

func (s *SQLiteStore) SaveBanditCheckpoints(ctx context.Context, checkpoints []*domain.BanditCheckpoint) error {
	if len(checkpoints) == 0 {
		return nil
	}

	records := make([]banditCheckpointRow, 0, len(checkpoints))
	for _, cp := range checkpoints {
		records = append(records, banditCheckpointRow{
			TaskType:  cp.TaskType.String(),
			ModelName: cp.Model,
			Provider:  cp.Provider,
			Pulls:     cp.Pulls,
			RewardSum: cp.RewardSum,
			Prior:     cp.Prior,
			UpdatedAt: cp.UpdatedAt,
		})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_type"}, {Name: "model_name"}},
			UpdateAll: true,
		}).
		Create(&records).Error
	if err != nil {
		return &domain.PersistenceError{Operation: "upsert", Table: "bandit_checkpoints", Err: err}
	}
	return nil
}

func (s *SQLiteStore) LoadBanditCheckpoints(ctx context.Context) ([]*domain.BanditCheckpoint, error) {
	var records []banditCheckpointRow
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, &domain.PersistenceError{Operation: "load", Table: "bandit_checkpoints", Err: err}
	}

	out := make([]*domain.BanditCheckpoint, 0, len(records))
	for _, r := range records {
		out = append(out, &domain.BanditCheckpoint{
			TaskType:  domain.TaskType(r.TaskType),
			Model:     r.ModelName,
			Provider:  r.Provider,
			Pulls:     r.Pulls,
			RewardSum: r.RewardSum,
			Prior:     r.Prior,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

func (s *SQLiteStore) DatabaseStats(ctx context.Context) (ports.DatabaseStats, error) {
	var stats ports.DatabaseStats

	counts := []struct {
		model any
		dest  *int64
	}{
		{&modelPerformanceRow{}, &stats.PerformanceRows},
		{&externalDataCacheRow{}, &stats.ExternalCacheRows},
		{&telemetryEventRow{}, &stats.TelemetryRows},
		{&banditCheckpointRow{}, &stats.CheckpointRows},
	}

	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.model).Count(c.dest).Error; err != nil {
			return stats, &domain.PersistenceError{Operation: "count", Table: "stats", Err: err}
		}
	}

	return stats, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
