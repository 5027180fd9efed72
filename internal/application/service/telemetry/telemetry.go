// Package telemetry wraps the idempotent event sink and bucketed timeseries
// query (component M, spec.md §6 /telemetry/event, /metrics/timeseries),
// grounded on how repository.telemetryRepository exposes the persistence
// layer: the service only fills request-shape defaults and validates
// boundaries before delegating straight through.
package telemetry

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// Service is the thin application-layer wrapper around TelemetryRepository.
type Service struct {
	Repo interfaces.TelemetryRepository
}

func New(repo interfaces.TelemetryRepository) *Service {
	return &Service{Repo: repo}
}

// IngestEvents idempotently ingests a batch of telemetry events, rejecting
// any event missing its event_id (the uniqueness key) or metric_key.
func (s *Service) IngestEvents(ctx context.Context, events []*types.TelemetryEvent) (int, error) {
	for _, e := range events {
		if e.EventID == "" {
			return 0, apperrors.NewBadRequestError("telemetry event missing event_id")
		}
		if e.MetricKey == "" {
			return 0, apperrors.NewBadRequestError("telemetry event missing metric_key")
		}
		if e.OccurredAt.IsZero() {
			e.OccurredAt = time.Now().UTC()
		}
	}
	inserted, err := s.Repo.IngestIdempotent(ctx, events)
	if err != nil {
		return 0, fmt.Errorf("ingest telemetry events: %w", err)
	}
	return inserted, nil
}

// validBuckets are the only bucket widths spec.md §6 names for
// GET /metrics/timeseries.
var validBuckets = map[string]bool{"hour": true, "day": true}

// Timeseries resolves bucketed aggregates, defaulting the bucket width to
// "hour" and the time range to the trailing 24 hours when unset.
func (s *Service) Timeseries(ctx context.Context, metricKey, subjectType, subjectID string, from, to time.Time, bucket string) ([]types.TimeseriesBucket, error) {
	if metricKey == "" {
		return nil, apperrors.NewBadRequestError("metric_key is required")
	}
	if bucket == "" {
		bucket = "hour"
	}
	if !validBuckets[bucket] {
		return nil, apperrors.NewBadRequestError("bucket must be \"hour\" or \"day\"")
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if !from.Before(to) {
		return nil, apperrors.NewBadRequestError("from must precede to")
	}
	rows, err := s.Repo.Timeseries(ctx, metricKey, subjectType, subjectID, from, to, bucket)
	if err != nil {
		return nil, fmt.Errorf("telemetry timeseries: %w", err)
	}
	return rows, nil
}
