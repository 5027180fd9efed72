package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/vantageplatform/vantage-core/internal/types"
)

type fakeTelemetryRepo struct {
	events []*types.TelemetryEvent
}

func (f *fakeTelemetryRepo) IngestIdempotent(ctx context.Context, events []*types.TelemetryEvent) (int, error) {
	f.events = append(f.events, events...)
	return len(events), nil
}

func (f *fakeTelemetryRepo) Timeseries(ctx context.Context, metricKey, subjectType, subjectID string, from, to time.Time, bucket string) ([]types.TimeseriesBucket, error) {
	return []types.TimeseriesBucket{{BucketStart: from, Sum: 1, Count: 1}}, nil
}

func TestIngestEventsRejectsMissingEventID(t *testing.T) {
	svc := New(&fakeTelemetryRepo{})
	_, err := svc.IngestEvents(context.Background(), []*types.TelemetryEvent{{MetricKey: "m"}})
	if err == nil {
		t.Fatal("expected error for missing event_id")
	}
}

func TestIngestEventsStampsOccurredAt(t *testing.T) {
	repo := &fakeTelemetryRepo{}
	svc := New(repo)
	n, err := svc.IngestEvents(context.Background(), []*types.TelemetryEvent{{EventID: "e1", MetricKey: "m"}})
	if err != nil {
		t.Fatalf("IngestEvents error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 inserted, got %d", n)
	}
	if repo.events[0].OccurredAt.IsZero() {
		t.Fatal("expected OccurredAt to be stamped")
	}
}

func TestTimeseriesDefaultsBucketAndRange(t *testing.T) {
	svc := New(&fakeTelemetryRepo{})
	rows, err := svc.Timeseries(context.Background(), "answers_total", "", "", time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("Timeseries error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestTimeseriesRejectsBadBucket(t *testing.T) {
	svc := New(&fakeTelemetryRepo{})
	_, err := svc.Timeseries(context.Background(), "answers_total", "", "", time.Time{}, time.Time{}, "week")
	if err == nil {
		t.Fatal("expected error for invalid bucket")
	}
}

func TestTimeseriesRejectsMissingMetricKey(t *testing.T) {
	svc := New(&fakeTelemetryRepo{})
	_, err := svc.Timeseries(context.Background(), "", "", "", time.Time{}, time.Time{}, "hour")
	if err == nil {
		t.Fatal("expected error for missing metric_key")
	}
}
