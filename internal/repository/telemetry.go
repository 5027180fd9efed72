package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type telemetryRepository struct {
	db *gorm.DB
}

// NewTelemetryRepository builds the idempotent event sink and timeseries
// query adapter (component M, spec.md §6 /telemetry/event, /metrics/timeseries).
func NewTelemetryRepository(db *gorm.DB) interfaces.TelemetryRepository {
	return &telemetryRepository{db: db}
}

func (r *telemetryRepository) IngestIdempotent(ctx context.Context, events []*types.TelemetryEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for _, e := range events {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}
	res := r.db.WithContext(ctx).Clauses(onConflictDoNothing("event_id")).Create(events)
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "ingest telemetry events", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Timeseries aggregates events into fixed-width buckets ("hour" or "day")
// using Postgres date_trunc, matching spec.md §6's bucketed timeseries
// response shape.
func (r *telemetryRepository) Timeseries(ctx context.Context, metricKey, subjectType, subjectID string, from, to time.Time, bucket string) ([]types.TimeseriesBucket, error) {
	unit := "hour"
	if bucket == "day" {
		unit = "day"
	}
	var rows []types.TimeseriesBucket
	q := r.db.WithContext(ctx).Model(&types.TelemetryEvent{}).
		Select("date_trunc(?, occurred_at) as bucket_start, sum(value) as sum, count(*) as count, phase", unit).
		Where("metric_key = ? AND occurred_at >= ? AND occurred_at < ?", metricKey, from, to)
	if subjectType != "" {
		q = q.Where("subject_type = ?", subjectType)
	}
	if subjectID != "" {
		q = q.Where("subject_id = ?", subjectID)
	}
	err := q.Group("bucket_start, phase").Order("bucket_start asc").Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "aggregate telemetry timeseries", err)
	}
	return rows, nil
}
