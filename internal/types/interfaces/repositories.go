package interfaces

import (
	"context"
	"time"

	"github.com/vantageplatform/vantage-core/internal/types"
)

// JobRepository implements the Initiator's claim protocol (spec.md §4.K).
type JobRepository interface {
	GetControllerConfig(ctx context.Context, vantageID string) (*types.ControllerConfig, error)
	UpsertControllerConfig(ctx context.Context, cfg *types.ControllerConfig) error

	InsertDriveSnapshot(ctx context.Context, snap *types.DriveSnapshot) error

	// HasQueuedOrRunning reports whether a (vantage, job_type) instance is
	// already queued or running, for singleton duplicate-avoidance.
	HasQueuedOrRunning(ctx context.Context, vantageID string, jobType types.JobType) (bool, error)
	Enqueue(ctx context.Context, job *types.Job) error

	// ClaimNext runs the full claim transaction: per-vantage advisory lock,
	// running-count check, row-lock-skip select, transition to running, and
	// opening a JobRun — all inside one transaction, released before the
	// caller runs the job body (spec.md §4.K step 4, §5 ordering).
	ClaimNext(ctx context.Context, vantageID, workerID string, beforeDrives types.JSONMap) (*types.Job, *types.JobRun, error)

	FinishSucceeded(ctx context.Context, job *types.Job, run *types.JobRun, afterDrives, outcome types.JSONMap) error
	FinishFailed(ctx context.Context, job *types.Job, run *types.JobRun, afterDrives types.JSONMap, errText string) error

	// ReapStale transitions running rows whose lock is older than staleSeconds
	// back to queued (spec.md §4.K "Stale-lock reaper").
	ReapStale(ctx context.Context, vantageID string, staleSeconds int) (int64, error)

	CountByStatus(ctx context.Context, vantageID string, status types.JobStatus) (int64, error)
	OldestQueuedAge(ctx context.Context, vantageID string) (time.Duration, error)
	OldestRunningLockAge(ctx context.Context, vantageID string) (time.Duration, error)
	RecentSuccessFailureRates(ctx context.Context, vantageID string, window time.Duration) (successes, failures int64, err error)
}

// CardRepository implements the card engine's storage needs (spec.md §4.F).
type CardRepository interface {
	GetHead(ctx context.Context, vantageID, kind, topicKey string) (*types.CardHead, error)
	GetHeadByID(ctx context.Context, cardID string) (*types.CardHead, error)
	// UpsertWithRevision appends a revision then refreshes the head inside a
	// single transaction (spec.md §5 "a revision is appended before the head
	// is updated").
	UpsertWithRevision(ctx context.Context, head *types.CardHead, revision *types.CardRevision) error
	LinkIdempotent(ctx context.Context, link *types.CardLink) error
	HasLink(ctx context.Context, cardID, linkType, refID string) (bool, error)
	ListActiveNonSystem(ctx context.Context, vantageID string, limit int, cursor time.Time) ([]*types.CardHead, error)
	SignalsSince(ctx context.Context, cardID string, since time.Time) (reward, punish, use float64, err error)
	AppendSignal(ctx context.Context, signal *types.CardSignal) error
	// UpdateDecay writes strength/confidence/payload for card_decay_v1 without
	// touching updated_at (spec.md §4.F "never touch updated_at"), optionally
	// appending a revision row when the decay actually changed the card.
	UpdateDecay(ctx context.Context, cardID string, strength, confidence float64, payload types.JSONMap, revision *types.CardRevision) error
	DeleteCard(ctx context.Context, cardID string) error
}

// FactRepository implements the fact pipeline's storage needs (spec.md §4.E).
type FactRepository interface {
	InsertSourceIfAbsent(ctx context.Context, src *types.Source) (inserted bool, err error)
	ClaimNextPendingSource(ctx context.Context) (*types.Source, error)
	MarkSourceDone(ctx context.Context, sourceID string) error
	MarkSourceError(ctx context.Context, sourceID, errText string) error
	SetSourceContentSHA256(ctx context.Context, sourceID, sha256 string) error
	CountPendingSources(ctx context.Context) (int64, error)

	GetOrCreateEntity(ctx context.Context, entityType, canonicalName string) (*types.Entity, error)
	UpsertClaim(ctx context.Context, claim *types.Claim) (*types.Claim, error)
	InsertEvidence(ctx context.Context, ev *types.Evidence) error

	ActiveClaimsBySubjectPredicate(ctx context.Context, subjectEntityID, predicate string) ([]*types.Claim, error)
	CardinalityOnePredicates(ctx context.Context) ([]string, error)
	SubjectsWithMultipleActiveValues(ctx context.Context, predicate string) (map[string][]*types.Claim, error)
	OpenOrCreateContradiction(ctx context.Context, subjectEntityID, predicate string, memberClaimIDs []string) error
	CountActiveClaims(ctx context.Context) (int64, error)

	ListDoneUnconsolidated(ctx context.Context, cardRepo CardRepository, cursorCardID string, limit int) ([]*types.Source, error)
	ClaimsForSource(ctx context.Context, sourceID string) ([]*types.Claim, error)
}

// ThreadRepository implements the thread/chat-log surface (spec.md §6).
type ThreadRepository interface {
	CreateThread(ctx context.Context, thread *types.Thread) error
	GetThread(ctx context.Context, id string) (*types.Thread, error)
	ListThreads(ctx context.Context, userID string) ([]*types.Thread, error)
	RenameThread(ctx context.Context, id, title string) error
	ArchiveThread(ctx context.Context, id string) error
	DeleteThread(ctx context.Context, id string) error
	ReassignOwner(ctx context.Context, threadID, canonicalUserID string) error

	InsertChatLog(ctx context.Context, row *types.ChatLogRow) error
	ListMessages(ctx context.Context, threadID string, limit int) ([]*types.ChatLogRow, error)
	LastUserMessageAt(ctx context.Context, userID string) (*time.Time, error)
	// ListRecentUserMessages returns the newest `user`-sourced rows matching
	// vantageID (spec.md §4.E "fact_seed_from_chat_log_v1" vantage match:
	// 'default' accepts both null and 'default'), newest first.
	ListRecentUserMessages(ctx context.Context, vantageID string, limit int) ([]*types.ChatLogRow, error)
}

// AnswerTraceRepository persists and resolves AnswerTrace rows (spec.md §4.L).
type AnswerTraceRepository interface {
	Insert(ctx context.Context, trace *types.AnswerTrace) error
	Get(ctx context.Context, answerID string) (*types.AnswerTrace, error)
}

// IdentityRepository backs the canonicalization boundary (spec.md §1/§3).
type IdentityRepository interface {
	Resolve(ctx context.Context, vantageID, aliasUserID string) (string, error)
	Alias(ctx context.Context, vantageID, aliasUserID, canonicalUserID string) error
}

// PolicyRepository is the durable side of the per-vantage policy store
// (component D); the TTL cache sits in front of it.
type PolicyRepository interface {
	Get(ctx context.Context, vantageID string) (types.JSONMap, error)
	Upsert(ctx context.Context, vantageID string, policy types.JSONMap) error
}

// TelemetryRepository backs the idempotent event sink and timeseries query
// (component M).
type TelemetryRepository interface {
	IngestIdempotent(ctx context.Context, events []*types.TelemetryEvent) (inserted int, err error)
	Timeseries(ctx context.Context, metricKey, subjectType, subjectID string, from, to time.Time, bucket string) ([]types.TimeseriesBucket, error)
}
