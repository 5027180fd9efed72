package types

import "time"

// TelemetryEvent is one idempotent event ingested via POST /telemetry/event
// (spec.md §6, component M). Uniqueness is enforced on EventID.
type TelemetryEvent struct {
	EventID    string    `gorm:"primaryKey;size:64"`
	MetricKey  string    `gorm:"size:128;index;not null"`
	SubjectType string   `gorm:"size:32;index;not null"`
	SubjectID  string    `gorm:"size:128;index;not null"`
	Value      float64   `gorm:"not null"`
	Phase      string    `gorm:"size:64"`
	OccurredAt time.Time `gorm:"index;not null"`
	CreatedAt  time.Time
}

func (TelemetryEvent) TableName() string { return "public.telemetry_event" }

// TimeseriesBucket is one bucketed aggregate row returned by
// GET /metrics/timeseries.
type TimeseriesBucket struct {
	BucketStart time.Time `json:"bucket_start"`
	Sum         float64   `json:"sum"`
	Count       int64     `json:"count"`
	Phase       string    `json:"phase,omitempty"`
}
