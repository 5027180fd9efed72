package initiator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// jobTaskHandler adapts Engine.HandleRunJobTask to interfaces.TaskHandler,
// the teacher's asynq consumer contract (internal/types/interfaces/task_handler.go).
type jobTaskHandler struct{ engine *Engine }

func (h jobTaskHandler) Handle(ctx context.Context, t *asynq.Task) error {
	return h.engine.HandleRunJobTask(ctx, t)
}

// TaskHandler exposes this Engine as an interfaces.TaskHandler, for
// registering on whatever asynq consumption mechanism the caller prefers
// over the bare HandleRunJobTask function.
func (e *Engine) TaskHandler() interfaces.TaskHandler {
	return jobTaskHandler{engine: e}
}

// RunJobTaskType is the asynq task type a claimed job's body is enqueued
// under; HandleRunJobTask is its counterpart consumer (satisfies
// interfaces.TaskHandler, per the teacher's task_handler.go contract).
// cmd/initiatord registers it on an asynq.ServeMux under this name.
const RunJobTaskType = "initiator:run_job"

type runJobPayload struct {
	Job *types.Job    `json:"job"`
	Run *types.JobRun `json:"run"`
}

// EnqueueJobTask hands a claimed job off to the asynq queue instead of
// running it inline: asynq's per-queue Concurrency setting becomes the
// enforcement point for max_running_jobs, while ClaimNext's row lock
// remains the only source of truth for which job is claimed (spec.md §4.K
// step 5 "run outside any transaction").
func (e *Engine) EnqueueJobTask(ctx context.Context, job *types.Job, run *types.JobRun) error {
	payload, err := json.Marshal(runJobPayload{Job: job, Run: run})
	if err != nil {
		return fmt.Errorf("marshal run-job payload: %w", err)
	}
	task := asynq.NewTask(RunJobTaskType, payload)
	queue := e.Queue
	if queue == "" {
		queue = "initiator"
	}
	if _, err := e.AsyncClient.EnqueueContext(ctx, task, asynq.Queue(queue)); err != nil {
		return fmt.Errorf("enqueue run-job task: %w", err)
	}
	return nil
}

// HandleRunJobTask is the asynq consumer side: it runs the job body and
// finishes the claim exactly as the inline path would, just off the
// tick goroutine. Register it on an asynq.ServeMux for RunJobTaskType.
func (e *Engine) HandleRunJobTask(ctx context.Context, t *asynq.Task) error {
	var payload runJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal run-job payload: %w", err)
	}
	job, run := payload.Job, payload.Run

	outcome, runErr := e.runJobBody(ctx, job)
	afterDrives, driveErr := computeDrives(ctx, e.Jobs, job.VantageID)
	if driveErr != nil {
		afterDrives = types.JSONMap{}
	}
	if runErr == nil {
		if err := e.Jobs.FinishSucceeded(ctx, job, run, afterDrives, outcome); err != nil {
			return fmt.Errorf("finish succeeded job %s: %w", job.JobID, err)
		}
		return nil
	}
	logger.Warnf(ctx, "initiator: async job %s (%s) failed: %v", job.JobID, job.JobType, runErr)
	if job.Attempts < job.MaxAttempts {
		job.ScheduledAt = time.Now().UTC().Add(time.Duration(job.Attempts) * 10 * time.Second)
	}
	if err := e.Jobs.FinishFailed(ctx, job, run, afterDrives, runErr.Error()); err != nil {
		return fmt.Errorf("finish failed job %s: %w", job.JobID, err)
	}
	return nil
}
