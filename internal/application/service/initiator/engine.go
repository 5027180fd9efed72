package initiator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/panjf2000/ants/v2"

	"github.com/vantageplatform/vantage-core/internal/application/service/card"
	"github.com/vantageplatform/vantage-core/internal/application/service/fact"
	"github.com/vantageplatform/vantage-core/internal/application/service/gravity"
	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

const (
	staleRunningSecondsDefault  = 3600
	seedBacklogCapDefault       = 25
	cardDecayLimitDefault       = 200
	cardConsolidateLimitDefault = 50
	factExtractMaxFields        = 20
	defaultCanonicalUserID      = "default"
)

// tickSingletons are the job types enqueue_passes_v1 (and the bare tick
// loop itself, for heartbeat/sense_drives_v1/enqueue_passes_v1) is allowed
// to enqueue at most one live instance of per vantage (spec.md §4.K step 3,
// "Singleton job logic").
var tickSingletons = []types.JobType{types.JobHeartbeat, types.JobSenseDrivesV1, types.JobEnqueuePassesV1}

// Engine runs the Initiator tick loop for one worker process, dispatching
// claimed jobs to the fact/card/gravity service bodies (spec.md §4.K).
type Engine struct {
	Jobs    interfaces.JobRepository
	Facts   interfaces.FactRepository
	Fact    *fact.Service
	Card    *card.Service
	Gravity *gravity.Service

	WorkerID string

	// Pool, when set, bounds how many claimed jobs this process runs
	// concurrently within one tick (local concurrency cap, independent of
	// how many worker processes share the queue). Nil runs the claim loop
	// sequentially.
	Pool *ants.Pool

	// AsyncClient, when set, hands a claimed job's body off to asynq
	// instead of running it inline; asynq's per-queue Concurrency setting
	// then enforces max_running_jobs across however many consumers are
	// running HandleRunJobTask. Nil runs the job body inline.
	AsyncClient *asynq.Client
	Queue       string
}

func New(jobs interfaces.JobRepository, facts interfaces.FactRepository, factSvc *fact.Service, cardSvc *card.Service, gravitySvc *gravity.Service, workerID string) *Engine {
	if workerID == "" {
		workerID = "initiatord"
	}
	return &Engine{Jobs: jobs, Facts: facts, Fact: factSvc, Card: cardSvc, Gravity: gravitySvc, WorkerID: workerID}
}

// Tick runs one scheduler iteration for a single vantage (spec.md §4.K
// "Tick procedure"): config read, drive snapshot, singleton enqueue,
// claim loop, job execution, finish/retry.
func (e *Engine) Tick(ctx context.Context, vantageID string) error {
	cfg, err := e.Jobs.GetControllerConfig(ctx, vantageID)
	if err != nil {
		return fmt.Errorf("get controller config: %w", err)
	}
	if cfg == nil {
		cfg = &types.ControllerConfig{
			VantageID:       vantageID,
			Enabled:         true,
			MaxJobsPerTick:  5,
			MaxRunningJobs:  4,
			AllowedJobTypes: types.DefaultAllowedJobTypes(),
		}
	}

	beforeDrives, err := recordSnapshot(ctx, e.Jobs, vantageID, "tick")
	if err != nil {
		return fmt.Errorf("record drive snapshot: %w", err)
	}

	if !cfg.Enabled {
		return nil
	}

	if err := e.enqueueSingletonsIfAbsent(ctx, cfg, tickSingletons); err != nil {
		logger.Warnf(ctx, "initiator: enqueue tick singletons: %v", err)
	}

	maxJobs := cfg.MaxJobsPerTick
	if maxJobs <= 0 {
		maxJobs = 5
	}
	return e.runClaimLoop(ctx, vantageID, beforeDrives, maxJobs)
}

// runClaimLoop claims and executes up to maxJobs jobs for vantageID.
// Without a pool it claims sequentially, one job body at a time. With a
// pool, up to the pool's size claim-and-run attempts run concurrently;
// ClaimNext's row-lock-skip select is what makes concurrent claimers safe
// (each sees a disjoint set of claimable rows), not the pool itself.
func (e *Engine) runClaimLoop(ctx context.Context, vantageID string, beforeDrives types.JSONMap, maxJobs int) error {
	if e.Pool == nil {
		for i := 0; i < maxJobs; i++ {
			claimed, err := e.claimAndRun(ctx, vantageID, beforeDrives)
			if err != nil {
				return fmt.Errorf("claim and run: %w", err)
			}
			if !claimed {
				break
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	empty := make(chan struct{})
	var closeOnce sync.Once

	for i := 0; i < maxJobs; i++ {
		select {
		case <-empty:
			i = maxJobs // stop submitting once a worker finds nothing left to claim
			continue
		default:
		}
		wg.Add(1)
		submitErr := e.Pool.Submit(func() {
			defer wg.Done()
			select {
			case <-empty:
				return
			default:
			}
			claimed, err := e.claimAndRun(ctx, vantageID, beforeDrives)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("claim and run: %w", err)
				}
				mu.Unlock()
				return
			}
			if !claimed {
				closeOnce.Do(func() { close(empty) })
			}
		})
		if submitErr != nil {
			wg.Done()
			break
		}
	}
	wg.Wait()
	return firstErr
}

// enqueueSingletonsIfAbsent enqueues at most one instance of each job type
// iff no queued/running instance already exists for (vantage, type) —
// "the only admissible duplicate-avoidance rule" (spec.md §4.K step 3).
func (e *Engine) enqueueSingletonsIfAbsent(ctx context.Context, cfg *types.ControllerConfig, jobTypes []types.JobType) error {
	for _, jt := range jobTypes {
		if !cfg.Allows(jt) {
			continue
		}
		exists, err := e.Jobs.HasQueuedOrRunning(ctx, cfg.VantageID, jt)
		if err != nil {
			return fmt.Errorf("check queued/running for %s: %w", jt, err)
		}
		if exists {
			continue
		}
		job := &types.Job{
			JobID:       idgen.New(),
			VantageID:   cfg.VantageID,
			JobType:     jt,
			Status:      types.JobQueued,
			MaxAttempts: 5,
			Priority:    defaultPriority(jt),
			ScheduledAt: time.Now().UTC(),
		}
		if err := e.Jobs.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue %s: %w", jt, err)
		}
	}
	return nil
}

func defaultPriority(jt types.JobType) int {
	switch jt {
	case types.JobCardDecayV1, types.JobCardConsolidateKVV1:
		return 200
	case types.JobHeartbeat:
		return 50
	default:
		return 100
	}
}

// claimAndRun claims the next eligible job (if any) and runs its body
// outside the claim transaction, then finishes or retries it (spec.md
// §4.K steps 4-5).
func (e *Engine) claimAndRun(ctx context.Context, vantageID string, beforeDrives types.JSONMap) (bool, error) {
	job, run, err := e.Jobs.ClaimNext(ctx, vantageID, e.WorkerID, beforeDrives)
	if err != nil {
		return false, fmt.Errorf("claim next job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if e.AsyncClient != nil {
		if err := e.EnqueueJobTask(ctx, job, run); err != nil {
			logger.Warnf(ctx, "initiator: enqueue job %s to asynq failed, running inline: %v", job.JobID, err)
		} else {
			return true, nil
		}
	}

	outcome, runErr := e.runJobBody(ctx, job)
	if runErr == nil {
		afterDrives, err := computeDrives(ctx, e.Jobs, vantageID)
		if err != nil {
			afterDrives = types.JSONMap{}
		}
		if err := e.Jobs.FinishSucceeded(ctx, job, run, afterDrives, outcome); err != nil {
			return true, fmt.Errorf("finish succeeded job %s: %w", job.JobID, err)
		}
		return true, nil
	}

	logger.Warnf(ctx, "initiator: job %s (%s) failed: %v", job.JobID, job.JobType, runErr)
	if job.Attempts < job.MaxAttempts {
		// Linear backoff: attempts * 10s (spec.md §4.K step 5).
		job.ScheduledAt = time.Now().UTC().Add(time.Duration(job.Attempts) * 10 * time.Second)
	}
	afterDrives, _ := computeDrives(ctx, e.Jobs, vantageID)
	if err := e.Jobs.FinishFailed(ctx, job, run, afterDrives, runErr.Error()); err != nil {
		return true, fmt.Errorf("finish failed job %s: %w", job.JobID, err)
	}
	return true, nil
}
