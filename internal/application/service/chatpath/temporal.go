package chatpath

import (
	"context"
	"fmt"
	"time"
)

// TimeGapBucket classifies the elapsed time since a user's last message
// (spec.md §8 "bucket_time_gap": boundaries 300, 3600, 86400, 7·86400).
type TimeGapBucket string

const (
	BucketVeryRecent TimeGapBucket = "very_recent"
	BucketRecent     TimeGapBucket = "recent"
	BucketSameDay    TimeGapBucket = "same_day"
	BucketDaysGap    TimeGapBucket = "days_gap"
	BucketLongGap    TimeGapBucket = "long_gap"
)

// BucketTimeGap maps elapsed seconds to a TimeGapBucket.
func BucketTimeGap(elapsedSeconds float64) TimeGapBucket {
	switch {
	case elapsedSeconds < 300:
		return BucketVeryRecent
	case elapsedSeconds < 3600:
		return BucketRecent
	case elapsedSeconds < 86400:
		return BucketSameDay
	case elapsedSeconds < 7*86400:
		return BucketDaysGap
	default:
		return BucketLongGap
	}
}

var reentryLines = map[TimeGapBucket]string{
	BucketVeryRecent: "",
	BucketRecent:     "",
	BucketSameDay:    "(Picking back up from earlier today.) ",
	BucketDaysGap:    "(It's been a few days since we last talked.) ",
	BucketLongGap:    "(It's been a while since we last talked.) ",
}

// temporalReentryPrefix returns a short prefix to prepend to the user's
// message based on the gap since their last logged message (spec.md §4.L
// step 4 "optionally prepend a temporal re-entry line").
func (s *Service) temporalReentryPrefix(ctx context.Context, userID string) string {
	last, err := s.Threads.LastUserMessageAt(ctx, userID)
	if err != nil || last == nil {
		return ""
	}
	elapsed := time.Since(*last).Seconds()
	return reentryLines[BucketTimeGap(elapsed)]
}

// TemporalStatus is the GET /temporal/{user_id} response shape.
type TemporalStatus struct {
	SecondsSinceLastMessage float64       `json:"seconds_since_last_message"`
	Bucket                  TimeGapBucket `json:"bucket"`
}

// Temporal resolves a user's temporal re-entry status.
func (s *Service) Temporal(ctx context.Context, userID string) (*TemporalStatus, error) {
	last, err := s.Threads.LastUserMessageAt(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("last user message at for %s: %w", userID, err)
	}
	if last == nil {
		return &TemporalStatus{SecondsSinceLastMessage: -1, Bucket: BucketLongGap}, nil
	}
	elapsed := time.Since(*last).Seconds()
	return &TemporalStatus{SecondsSinceLastMessage: elapsed, Bucket: BucketTimeGap(elapsed)}, nil
}
