// Package repository holds the gorm-backed adapters for every persisted
// entity in spec.md §3, grounded on the teacher's internal/repository layout
// (one file per aggregate, constructor returning the types/interfaces
// contract, no business logic beyond the claim/consolidation protocols the
// spec requires to live at the storage boundary).
package repository

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"gorm.io/gorm"

	"github.com/vantageplatform/vantage-core/internal/idgen"
	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository builds the Initiator's JobRepository (spec.md §4.K).
func NewJobRepository(db *gorm.DB) interfaces.JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) GetControllerConfig(ctx context.Context, vantageID string) (*types.ControllerConfig, error) {
	var cfg types.ControllerConfig
	err := r.db.WithContext(ctx).Where("vantage_id = ?", vantageID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("controller config for vantage %q not found", vantageID))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "get controller config", err)
	}
	return &cfg, nil
}

func (r *jobRepository) UpsertControllerConfig(ctx context.Context, cfg *types.ControllerConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Save(cfg).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "upsert controller config", err)
	}
	return nil
}

func (r *jobRepository) InsertDriveSnapshot(ctx context.Context, snap *types.DriveSnapshot) error {
	if snap.SnapshotID == "" {
		snap.SnapshotID = idgen.New()
	}
	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "insert drive snapshot", err)
	}
	return nil
}

func (r *jobRepository) HasQueuedOrRunning(ctx context.Context, vantageID string, jobType types.JobType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.Job{}).
		Where("vantage_id = ? AND job_type = ? AND status IN ?", vantageID, jobType, []types.JobStatus{types.JobQueued, types.JobRunning}).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindInternal, "check queued/running job", err)
	}
	return count > 0, nil
}

func (r *jobRepository) Enqueue(ctx context.Context, job *types.Job) error {
	if job.JobID == "" {
		job.JobID = idgen.New()
	}
	if job.Status == "" {
		job.Status = types.JobQueued
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = time.Now().UTC()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 5
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "enqueue job", err)
	}
	return nil
}

// advisoryLockKey hashes a vantage id into a deterministic int64 for
// pg_advisory_xact_lock (spec.md §4.K: "a per-vantage advisory lock serializes
// the claim step across every process sharing the database").
func advisoryLockKey(vantageID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("vantage_initiator.job:" + vantageID))
	return int64(h.Sum64())
}

// ClaimNext implements the claim transaction exactly as spec.md §4.K lays it
// out: acquire the per-vantage advisory lock, check the running-job count
// against the controller's max_running_jobs, select the oldest eligible
// queued row ordered by (priority asc, scheduled_at asc, job_id asc) with
// FOR UPDATE SKIP LOCKED, transition it to running, bump attempts, and open
// a JobRun — all before the transaction commits and releases the lock. The
// caller runs the job body strictly after ClaimNext returns.
func (r *jobRepository) ClaimNext(ctx context.Context, vantageID, workerID string, beforeDrives types.JSONMap) (*types.Job, *types.JobRun, error) {
	var job types.Job
	var run types.JobRun

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", advisoryLockKey(vantageID)).Error; err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}

		var cfg types.ControllerConfig
		if err := tx.Where("vantage_id = ?", vantageID).First(&cfg).Error; err != nil {
			return fmt.Errorf("load controller config: %w", err)
		}

		var runningCount int64
		if err := tx.Model(&types.Job{}).
			Where("vantage_id = ? AND status = ?", vantageID, types.JobRunning).
			Count(&runningCount).Error; err != nil {
			return fmt.Errorf("count running jobs: %w", err)
		}
		if runningCount >= int64(cfg.MaxRunningJobs) {
			return gorm.ErrRecordNotFound
		}

		now := time.Now().UTC()
		err := tx.Set("gorm:query_option", "FOR UPDATE SKIP LOCKED").
			Where("vantage_id = ? AND status = ? AND scheduled_at <= ? AND attempts < max_attempts AND job_type IN ?",
				vantageID, types.JobQueued, now, []string(cfg.AllowedJobTypes)).
			Order("priority asc, scheduled_at asc, job_id asc").
			First(&job).Error
		if err != nil {
			return err
		}

		job.Status = types.JobRunning
		job.Attempts++
		job.LockedBy = &workerID
		job.LockedAt = &now
		job.UpdatedAt = now
		if err := tx.Save(&job).Error; err != nil {
			return fmt.Errorf("transition job to running: %w", err)
		}

		run = types.JobRun{
			RunID:        idgen.New(),
			JobID:        job.JobID,
			WorkerID:     workerID,
			StartedAt:    now,
			BeforeDrives: beforeDrives,
		}
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("open job run: %w", err)
		}
		return nil
	})

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindInternal, "claim next job", err)
	}
	return &job, &run, nil
}

func (r *jobRepository) FinishSucceeded(ctx context.Context, job *types.Job, run *types.JobRun, afterDrives, outcome types.JSONMap) error {
	return r.finish(ctx, job, run, types.JobSucceeded, afterDrives, outcome, nil)
}

func (r *jobRepository) FinishFailed(ctx context.Context, job *types.Job, run *types.JobRun, afterDrives types.JSONMap, errText string) error {
	status := types.JobFailed
	if job.Attempts < job.MaxAttempts {
		status = types.JobQueued
	}
	return r.finish(ctx, job, run, status, afterDrives, nil, &errText)
}

func (r *jobRepository) finish(ctx context.Context, job *types.Job, run *types.JobRun, status types.JobStatus, afterDrives, outcome types.JSONMap, errText *string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job.Status = status
		job.UpdatedAt = now
		job.LastError = errText
		if status != types.JobRunning {
			job.LockedBy = nil
			job.LockedAt = nil
		}
		if err := tx.Save(job).Error; err != nil {
			return fmt.Errorf("finalize job: %w", err)
		}
		run.FinishedAt = &now
		run.AfterDrives = afterDrives
		run.Outcome = outcome
		run.Error = errText
		if err := tx.Save(run).Error; err != nil {
			return fmt.Errorf("close job run: %w", err)
		}
		return nil
	})
}

func (r *jobRepository) ReapStale(ctx context.Context, vantageID string, staleSeconds int) (int64, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(staleSeconds) * time.Second)
	res := r.db.WithContext(ctx).Model(&types.Job{}).
		Where("vantage_id = ? AND status = ? AND locked_at < ?", vantageID, types.JobRunning, cutoff).
		Updates(map[string]interface{}{
			"status":     types.JobQueued,
			"locked_by":  nil,
			"locked_at":  nil,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "reap stale jobs", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *jobRepository) CountByStatus(ctx context.Context, vantageID string, status types.JobStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.Job{}).
		Where("vantage_id = ? AND status = ?", vantageID, status).Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "count jobs by status", err)
	}
	return count, nil
}

func (r *jobRepository) OldestQueuedAge(ctx context.Context, vantageID string) (time.Duration, error) {
	var job types.Job
	err := r.db.WithContext(ctx).
		Where("vantage_id = ? AND status = ?", vantageID, types.JobQueued).
		Order("scheduled_at asc").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "oldest queued age", err)
	}
	return time.Since(job.ScheduledAt), nil
}

func (r *jobRepository) OldestRunningLockAge(ctx context.Context, vantageID string) (time.Duration, error) {
	var job types.Job
	err := r.db.WithContext(ctx).
		Where("vantage_id = ? AND status = ?", vantageID, types.JobRunning).
		Order("locked_at asc").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || job.LockedAt == nil {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "oldest running lock age", err)
	}
	return time.Since(*job.LockedAt), nil
}

func (r *jobRepository) RecentSuccessFailureRates(ctx context.Context, vantageID string, window time.Duration) (int64, int64, error) {
	since := time.Now().UTC().Add(-window)
	var successes, failures int64
	if err := r.db.WithContext(ctx).Model(&types.Job{}).
		Where("vantage_id = ? AND status = ? AND updated_at >= ?", vantageID, types.JobSucceeded, since).
		Count(&successes).Error; err != nil {
		return 0, 0, apperrors.Wrap(apperrors.KindInternal, "count recent successes", err)
	}
	if err := r.db.WithContext(ctx).Model(&types.Job{}).
		Where("vantage_id = ? AND status = ? AND updated_at >= ?", vantageID, types.JobFailed, since).
		Count(&failures).Error; err != nil {
		return 0, 0, apperrors.Wrap(apperrors.KindInternal, "count recent failures", err)
	}
	return successes, failures, nil
}
