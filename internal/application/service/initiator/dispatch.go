package initiator

import (
	"context"
	"fmt"

	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/types"
)

// runJobBody dispatches a claimed job to its body, outside any claim
// transaction (spec.md §4.K step 5: "Run the job body outside any
// transaction"). The returned outcome is persisted on the JobRun.
func (e *Engine) runJobBody(ctx context.Context, job *types.Job) (types.JSONMap, error) {
	switch job.JobType {
	case types.JobHeartbeat:
		return types.JSONMap{"ok": true}, nil

	case types.JobSenseDrivesV1:
		drives, err := recordSnapshot(ctx, e.Jobs, job.VantageID, "sense_drives_v1")
		if err != nil {
			return nil, err
		}
		return types.JSONMap{"drives": drives}, nil

	case types.JobFactDrivesV1:
		return e.runFactDrives(ctx, job.VantageID)

	case types.JobEnqueuePassesV1:
		return e.runEnqueuePasses(ctx, job.VantageID)

	case types.JobReapStaleJobsV1:
		reaped, err := e.Jobs.ReapStale(ctx, job.VantageID, staleRunningSecondsDefault)
		if err != nil {
			return nil, fmt.Errorf("reap stale jobs: %w", err)
		}
		return types.JSONMap{"reaped": reaped}, nil

	case types.JobCardDecayV1:
		if e.Card == nil {
			return nil, fmt.Errorf("card service not wired")
		}
		decayed, total, err := e.Card.DecayAll(ctx, job.VantageID)
		if err != nil {
			return nil, fmt.Errorf("card decay: %w", err)
		}
		return types.JSONMap{"decayed": decayed, "total": total}, nil

	case types.JobCardConsolidateKVV1:
		if e.Card == nil {
			return nil, fmt.Errorf("card service not wired")
		}
		processed, err := e.Card.ConsolidateKV(ctx, job.VantageID, defaultCanonicalUserID, cardConsolidateLimitDefault)
		if err != nil {
			return nil, fmt.Errorf("card consolidate: %w", err)
		}
		return types.JSONMap{"processed": processed}, nil

	case types.JobFactSeedFromChatLogV1:
		if e.Fact == nil {
			return nil, fmt.Errorf("fact service not wired")
		}
		seeded, err := e.Fact.SeedFromChatLog(ctx, job.VantageID, seedBacklogCapDefault)
		if err != nil {
			return nil, fmt.Errorf("fact seed: %w", err)
		}
		return types.JSONMap{"seeded": seeded}, nil

	case types.JobFactExtractV1:
		if e.Fact == nil {
			return nil, fmt.Errorf("fact service not wired")
		}
		processed, err := e.Fact.ExtractOne(ctx, factExtractMaxFields)
		if err != nil {
			return nil, fmt.Errorf("fact extract: %w", err)
		}
		return types.JSONMap{"processed": processed}, nil

	case types.JobFactContradictionScanV1:
		if e.Fact == nil {
			return nil, fmt.Errorf("fact service not wired")
		}
		opened, err := e.Fact.ScanContradictions(ctx)
		if err != nil {
			return nil, fmt.Errorf("fact contradiction scan: %w", err)
		}
		return types.JSONMap{"opened": opened}, nil

	default:
		return nil, fmt.Errorf("unknown job type %q", job.JobType)
	}
}

// runFactDrives records a fact-pipeline-specific drive snapshot (pending
// source backlog and active claim count) layered on top of the queue/work
// drives the tick loop already samples — the signals enqueue_passes_v1
// conditions fact job enqueue decisions on (spec.md §4.K "Singleton job
// logic").
func (e *Engine) runFactDrives(ctx context.Context, vantageID string) (types.JSONMap, error) {
	pending, activeClaims, err := e.factDrives(ctx)
	if err != nil {
		return nil, err
	}
	drives := types.JSONMap{"pending_sources": pending, "active_claims": activeClaims}
	snap := &types.DriveSnapshot{
		SnapshotID: idgen.New(),
		VantageID:  vantageID,
		Drives:     drives,
		Notes:      "fact_drives_v1",
	}
	if err := e.Jobs.InsertDriveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert fact drive snapshot: %w", err)
	}
	return drives, nil
}

func (e *Engine) factDrives(ctx context.Context) (pendingSources, activeClaims int64, err error) {
	if e.Facts == nil {
		return 0, 0, nil
	}
	pendingSources, err = e.Facts.CountPendingSources(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count pending sources: %w", err)
	}
	activeClaims, err = e.Facts.CountActiveClaims(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count active claims: %w", err)
	}
	return pendingSources, activeClaims, nil
}

// passJobTypes are every job type enqueue_passes_v1 may admit one instance
// of, in the order spec.md §4.K lists them.
var passJobTypes = []types.JobType{
	types.JobReapStaleJobsV1,
	types.JobCardDecayV1,
	types.JobCardConsolidateKVV1,
	types.JobFactSeedFromChatLogV1,
	types.JobFactDrivesV1,
	types.JobFactExtractV1,
	types.JobFactContradictionScanV1,
}

// runEnqueuePasses recomputes drives and, for each allowed job type,
// enqueues at most one instance when its gating condition holds
// (spec.md §4.K "Singleton job logic").
func (e *Engine) runEnqueuePasses(ctx context.Context, vantageID string) (types.JSONMap, error) {
	cfg, err := e.Jobs.GetControllerConfig(ctx, vantageID)
	if err != nil {
		return nil, fmt.Errorf("get controller config: %w", err)
	}
	if cfg == nil {
		cfg = &types.ControllerConfig{VantageID: vantageID, AllowedJobTypes: types.DefaultAllowedJobTypes()}
	}

	drives, err := computeDrives(ctx, e.Jobs, vantageID)
	if err != nil {
		return nil, err
	}
	runningLockAge := drivesFloat(drives, "running_oldest_lock_age_s")

	pendingSources, activeClaims, err := e.factDrives(ctx)
	if err != nil {
		return nil, err
	}

	enqueued := map[string]bool{}
	for _, jt := range passJobTypes {
		if !cfg.Allows(jt) {
			continue
		}
		if !e.shouldEnqueuePass(jt, cfg, runningLockAge, pendingSources, activeClaims) {
			continue
		}
		exists, err := e.Jobs.HasQueuedOrRunning(ctx, vantageID, jt)
		if err != nil {
			return nil, fmt.Errorf("check queued/running for %s: %w", jt, err)
		}
		if exists {
			continue
		}
		job := &types.Job{
			JobID:       idgen.New(),
			VantageID:   vantageID,
			JobType:     jt,
			Status:      types.JobQueued,
			MaxAttempts: 5,
			Priority:    defaultPriority(jt),
		}
		if err := e.Jobs.Enqueue(ctx, job); err != nil {
			return nil, fmt.Errorf("enqueue %s: %w", jt, err)
		}
		enqueued[string(jt)] = true
	}
	return types.JSONMap{"enqueued": enqueued, "pending_sources": pendingSources, "active_claims": activeClaims}, nil
}

// shouldEnqueuePass evaluates each pass job type's gating condition
// (spec.md §4.K "Singleton job logic"). fact_extract_v1's condition is
// spec.md §2's "only if there are pending sources or seeding is enabled":
// with no pending sources and seeding disabled for this vantage, there is
// nothing for extraction to do.
func (e *Engine) shouldEnqueuePass(jt types.JobType, cfg *types.ControllerConfig, runningLockAgeS float64, pendingSources, activeClaims int64) bool {
	switch jt {
	case types.JobReapStaleJobsV1:
		return runningLockAgeS > staleRunningSecondsDefault
	case types.JobCardDecayV1, types.JobCardConsolidateKVV1, types.JobFactDrivesV1:
		return true
	case types.JobFactSeedFromChatLogV1:
		return pendingSources < seedBacklogCapDefault
	case types.JobFactExtractV1:
		return pendingSources > 0 || cfg.Allows(types.JobFactSeedFromChatLogV1)
	case types.JobFactContradictionScanV1:
		return activeClaims > 0
	default:
		return false
	}
}
