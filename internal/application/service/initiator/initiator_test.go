package initiator

import (
	"context"
	"testing"
	"time"

	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type fakeJobRepo struct {
	cfg           *types.ControllerConfig
	jobs          []*types.Job
	snapshots     []*types.DriveSnapshot
	queuedRunning map[string]bool
}

func (f *fakeJobRepo) GetControllerConfig(ctx context.Context, vantageID string) (*types.ControllerConfig, error) {
	return f.cfg, nil
}
func (f *fakeJobRepo) UpsertControllerConfig(ctx context.Context, cfg *types.ControllerConfig) error {
	f.cfg = cfg
	return nil
}
func (f *fakeJobRepo) InsertDriveSnapshot(ctx context.Context, snap *types.DriveSnapshot) error {
	f.snapshots = append(f.snapshots, snap)
	return nil
}
func (f *fakeJobRepo) HasQueuedOrRunning(ctx context.Context, vantageID string, jobType types.JobType) (bool, error) {
	if f.queuedRunning == nil {
		return false, nil
	}
	return f.queuedRunning[string(jobType)], nil
}
func (f *fakeJobRepo) Enqueue(ctx context.Context, job *types.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}
func (f *fakeJobRepo) ClaimNext(ctx context.Context, vantageID, workerID string, beforeDrives types.JSONMap) (*types.Job, *types.JobRun, error) {
	return nil, nil, nil
}
func (f *fakeJobRepo) FinishSucceeded(ctx context.Context, job *types.Job, run *types.JobRun, afterDrives, outcome types.JSONMap) error {
	return nil
}
func (f *fakeJobRepo) FinishFailed(ctx context.Context, job *types.Job, run *types.JobRun, afterDrives types.JSONMap, errText string) error {
	return nil
}
func (f *fakeJobRepo) ReapStale(ctx context.Context, vantageID string, staleSeconds int) (int64, error) {
	return 0, nil
}
func (f *fakeJobRepo) CountByStatus(ctx context.Context, vantageID string, status types.JobStatus) (int64, error) {
	var n int64
	for _, j := range f.jobs {
		if j.VantageID == vantageID && j.Status == status {
			n++
		}
	}
	return n, nil
}
func (f *fakeJobRepo) OldestQueuedAge(ctx context.Context, vantageID string) (time.Duration, error) {
	return 0, nil
}
func (f *fakeJobRepo) OldestRunningLockAge(ctx context.Context, vantageID string) (time.Duration, error) {
	return 0, nil
}
func (f *fakeJobRepo) RecentSuccessFailureRates(ctx context.Context, vantageID string, window time.Duration) (int64, int64, error) {
	return 0, 0, nil
}

type fakeFactRepo struct {
	pendingSources int64
	activeClaims   int64
}

func (f *fakeFactRepo) InsertSourceIfAbsent(ctx context.Context, src *types.Source) (bool, error) {
	return true, nil
}
func (f *fakeFactRepo) ClaimNextPendingSource(ctx context.Context) (*types.Source, error) {
	return nil, nil
}
func (f *fakeFactRepo) MarkSourceDone(ctx context.Context, sourceID string) error  { return nil }
func (f *fakeFactRepo) MarkSourceError(ctx context.Context, sourceID, errText string) error {
	return nil
}
func (f *fakeFactRepo) SetSourceContentSHA256(ctx context.Context, sourceID, sha256 string) error {
	return nil
}
func (f *fakeFactRepo) CountPendingSources(ctx context.Context) (int64, error) {
	return f.pendingSources, nil
}
func (f *fakeFactRepo) GetOrCreateEntity(ctx context.Context, entityType, canonicalName string) (*types.Entity, error) {
	return nil, nil
}
func (f *fakeFactRepo) UpsertClaim(ctx context.Context, claim *types.Claim) (*types.Claim, error) {
	return claim, nil
}
func (f *fakeFactRepo) InsertEvidence(ctx context.Context, ev *types.Evidence) error { return nil }
func (f *fakeFactRepo) ActiveClaimsBySubjectPredicate(ctx context.Context, subjectEntityID, predicate string) ([]*types.Claim, error) {
	return nil, nil
}
func (f *fakeFactRepo) CardinalityOnePredicates(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (f *fakeFactRepo) SubjectsWithMultipleActiveValues(ctx context.Context, predicate string) (map[string][]*types.Claim, error) {
	return nil, nil
}
func (f *fakeFactRepo) OpenOrCreateContradiction(ctx context.Context, subjectEntityID, predicate string, memberClaimIDs []string) error {
	return nil
}
func (f *fakeFactRepo) CountActiveClaims(ctx context.Context) (int64, error) {
	return f.activeClaims, nil
}
func (f *fakeFactRepo) ListDoneUnconsolidated(ctx context.Context, cardRepo interfaces.CardRepository, cursorCardID string, limit int) ([]*types.Source, error) {
	return nil, nil
}
func (f *fakeFactRepo) ClaimsForSource(ctx context.Context, sourceID string) ([]*types.Claim, error) {
	return nil, nil
}

func TestTickRecordsSnapshotAndSkipsWhenDisabled(t *testing.T) {
	jobs := &fakeJobRepo{cfg: &types.ControllerConfig{VantageID: "v1", Enabled: false}}
	facts := &fakeFactRepo{}
	eng := New(jobs, facts, nil, nil, nil, "worker-1")

	if err := eng.Tick(context.Background(), "v1"); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	if len(jobs.snapshots) != 1 {
		t.Fatalf("expected 1 drive snapshot recorded even when disabled, got %d", len(jobs.snapshots))
	}
	if len(jobs.jobs) != 0 {
		t.Fatalf("expected no jobs enqueued while disabled, got %d", len(jobs.jobs))
	}
}

func TestTickEnqueuesSingletonsWhenEnabled(t *testing.T) {
	jobs := &fakeJobRepo{cfg: &types.ControllerConfig{
		VantageID: "v1", Enabled: true, MaxJobsPerTick: 1, MaxRunningJobs: 4,
		AllowedJobTypes: types.DefaultAllowedJobTypes(),
	}}
	facts := &fakeFactRepo{}
	eng := New(jobs, facts, nil, nil, nil, "worker-1")

	if err := eng.Tick(context.Background(), "v1"); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	if len(jobs.jobs) != len(tickSingletons) {
		t.Fatalf("expected %d singleton jobs enqueued, got %d", len(tickSingletons), len(jobs.jobs))
	}
}

func TestEnqueueSingletonsSkipsExisting(t *testing.T) {
	jobs := &fakeJobRepo{
		cfg: &types.ControllerConfig{VantageID: "v1", Enabled: true, AllowedJobTypes: types.DefaultAllowedJobTypes()},
		queuedRunning: map[string]bool{string(types.JobHeartbeat): true},
	}
	eng := New(jobs, &fakeFactRepo{}, nil, nil, nil, "worker-1")

	if err := eng.enqueueSingletonsIfAbsent(context.Background(), jobs.cfg, tickSingletons); err != nil {
		t.Fatalf("enqueueSingletonsIfAbsent error: %v", err)
	}
	for _, j := range jobs.jobs {
		if j.JobType == types.JobHeartbeat {
			t.Fatal("expected heartbeat to be skipped as already queued/running")
		}
	}
}

func TestShouldEnqueuePassGating(t *testing.T) {
	eng := New(&fakeJobRepo{}, &fakeFactRepo{}, nil, nil, nil, "worker-1")
	seedingEnabled := &types.ControllerConfig{AllowedJobTypes: types.DefaultAllowedJobTypes()}
	seedingDisabled := &types.ControllerConfig{AllowedJobTypes: types.JSONStringSlice{}}

	if eng.shouldEnqueuePass(types.JobReapStaleJobsV1, seedingEnabled, 100, 0, 0) {
		t.Fatal("reap should not fire below stale threshold")
	}
	if !eng.shouldEnqueuePass(types.JobReapStaleJobsV1, seedingEnabled, staleRunningSecondsDefault+1, 0, 0) {
		t.Fatal("reap should fire above stale threshold")
	}
	if !eng.shouldEnqueuePass(types.JobFactSeedFromChatLogV1, seedingEnabled, 0, 0, 0) {
		t.Fatal("seed should fire below backlog cap")
	}
	if eng.shouldEnqueuePass(types.JobFactSeedFromChatLogV1, seedingEnabled, 0, seedBacklogCapDefault, 0) {
		t.Fatal("seed should not fire at/above backlog cap")
	}
	if eng.shouldEnqueuePass(types.JobFactContradictionScanV1, seedingEnabled, 0, 0, 0) {
		t.Fatal("contradiction scan should not fire with no active claims")
	}
	if !eng.shouldEnqueuePass(types.JobFactContradictionScanV1, seedingEnabled, 0, 0, 1) {
		t.Fatal("contradiction scan should fire with active claims")
	}
	if !eng.shouldEnqueuePass(types.JobFactExtractV1, seedingEnabled, 0, 0, 0) {
		t.Fatal("extract should fire with no pending sources when seeding is enabled")
	}
	if eng.shouldEnqueuePass(types.JobFactExtractV1, seedingDisabled, 0, 0, 0) {
		t.Fatal("extract should not fire with no pending sources and seeding disabled")
	}
	if !eng.shouldEnqueuePass(types.JobFactExtractV1, seedingDisabled, 0, 3, 0) {
		t.Fatal("extract should fire with pending sources regardless of seeding")
	}
}
