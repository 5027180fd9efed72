// Package initiator implements the scheduler (component K, spec.md §4.K):
// the tick loop that reads per-vantage controller configuration, samples
// drives, enqueues singleton jobs, claims and runs queued work under the
// claim protocol the repository layer already implements, and reaps stale
// in-flight jobs.
package initiator

import (
	"context"
	"fmt"
	"time"

	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

const oneHour = time.Hour

// computeDrives gathers the job-queue/work statistics spec.md §4.K step 2
// names: counts by status, oldest queued/running-lock ages, and the
// trailing 1-hour success/failure rates.
func computeDrives(ctx context.Context, jobs interfaces.JobRepository, vantageID string) (types.JSONMap, error) {
	queued, err := jobs.CountByStatus(ctx, vantageID, types.JobQueued)
	if err != nil {
		return nil, fmt.Errorf("count queued: %w", err)
	}
	running, err := jobs.CountByStatus(ctx, vantageID, types.JobRunning)
	if err != nil {
		return nil, fmt.Errorf("count running: %w", err)
	}
	succeeded, err := jobs.CountByStatus(ctx, vantageID, types.JobSucceeded)
	if err != nil {
		return nil, fmt.Errorf("count succeeded: %w", err)
	}
	failed, err := jobs.CountByStatus(ctx, vantageID, types.JobFailed)
	if err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}
	oldestQueued, err := jobs.OldestQueuedAge(ctx, vantageID)
	if err != nil {
		return nil, fmt.Errorf("oldest queued age: %w", err)
	}
	oldestRunningLock, err := jobs.OldestRunningLockAge(ctx, vantageID)
	if err != nil {
		return nil, fmt.Errorf("oldest running lock age: %w", err)
	}
	successes1h, failures1h, err := jobs.RecentSuccessFailureRates(ctx, vantageID, oneHour)
	if err != nil {
		return nil, fmt.Errorf("recent success/failure rates: %w", err)
	}

	return types.JSONMap{
		"queued_count":             queued,
		"running_count":            running,
		"succeeded_count":          succeeded,
		"failed_count":             failed,
		"queued_oldest_age_s":      oldestQueued.Seconds(),
		"running_oldest_lock_age_s": oldestRunningLock.Seconds(),
		"successes_1h":             successes1h,
		"failures_1h":              failures1h,
	}, nil
}

// recordSnapshot computes and persists a DriveSnapshot, returning the
// computed drives for immediate use by the caller (spec.md §4.K step 2).
func recordSnapshot(ctx context.Context, jobs interfaces.JobRepository, vantageID, notes string) (types.JSONMap, error) {
	drives, err := computeDrives(ctx, jobs, vantageID)
	if err != nil {
		return nil, err
	}
	snap := &types.DriveSnapshot{
		SnapshotID: idgen.New(),
		VantageID:  vantageID,
		Drives:     drives,
		Notes:      notes,
		CreatedAt:  time.Now().UTC(),
	}
	if err := jobs.InsertDriveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert drive snapshot: %w", err)
	}
	return drives, nil
}

func drivesInt(drives types.JSONMap, key string) int64 {
	switch v := drives[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func drivesFloat(drives types.JSONMap, key string) float64 {
	switch v := drives[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}
