package types

import "time"

// JobStatus tracks a Job through the Initiator's claim protocol
// (spec.md §3 Job, §4.K).
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// JobType enumerates the singleton and worker job types the Initiator runs.
type JobType string

const (
	JobHeartbeat               JobType = "heartbeat"
	JobSenseDrivesV1           JobType = "sense_drives_v1"
	JobEnqueuePassesV1         JobType = "enqueue_passes_v1"
	JobReapStaleJobsV1         JobType = "reap_stale_jobs_v1"
	JobCardDecayV1             JobType = "card_decay_v1"
	JobCardConsolidateKVV1     JobType = "card_consolidate_kv_v1"
	JobFactSeedFromChatLogV1   JobType = "fact_seed_from_chat_log_v1"
	JobFactDrivesV1            JobType = "fact_drives_v1"
	JobFactExtractV1           JobType = "fact_extract_v1"
	JobFactContradictionScanV1 JobType = "fact_contradiction_scan_v1"
)

// Job is a unit of work in the per-vantage queue (spec.md §3 Job).
type Job struct {
	JobID       string    `gorm:"primaryKey;size:64"`
	VantageID   string    `gorm:"index;size:64;not null"`
	JobType     JobType   `gorm:"size:64;index;not null"`
	Payload     JSONMap   `gorm:"type:jsonb"`
	Priority    int       `gorm:"not null;default:100"`
	Status      JobStatus `gorm:"size:16;index;not null"`
	Attempts    int       `gorm:"not null;default:0"`
	MaxAttempts int       `gorm:"not null;default:5"`
	ScheduledAt time.Time `gorm:"index;not null"`
	LockedBy    *string   `gorm:"size:128"`
	LockedAt    *time.Time
	LastError   *string   `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Job) TableName() string { return "vantage_initiator.job" }

// JobRun is the open/close record of one execution attempt of a Job
// (spec.md §3 JobRun).
type JobRun struct {
	RunID         string     `gorm:"primaryKey;size:64"`
	JobID         string     `gorm:"index;size:64;not null"`
	WorkerID      string     `gorm:"size:128;not null"`
	StartedAt     time.Time  `gorm:"not null"`
	FinishedAt    *time.Time
	BeforeDrives  JSONMap    `gorm:"type:jsonb"`
	AfterDrives   JSONMap    `gorm:"type:jsonb"`
	Outcome       JSONMap    `gorm:"type:jsonb"`
	Error         *string    `gorm:"type:text"`
}

func (JobRun) TableName() string { return "vantage_initiator.job_run" }

// DriveSnapshot is a point-in-time record of queue/work statistics
// (spec.md §3 DriveSnapshot).
type DriveSnapshot struct {
	SnapshotID string    `gorm:"primaryKey;size:64"`
	VantageID  string    `gorm:"index;size:64;not null"`
	Drives     JSONMap   `gorm:"type:jsonb"`
	Notes      string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

func (DriveSnapshot) TableName() string { return "vantage_initiator.drive_snapshot" }

// ControllerConfig is the per-vantage Initiator configuration
// (spec.md §3 ControllerConfig).
type ControllerConfig struct {
	VantageID           string          `gorm:"primaryKey;size:64"`
	Enabled             bool            `gorm:"not null;default:true"`
	TickSeconds         int             `gorm:"not null;default:10"`
	MaxJobsPerTick      int             `gorm:"not null;default:5"`
	MaxRunningJobs      int             `gorm:"not null;default:4"`
	DailyCostBudgetUSD  float64         `gorm:"not null;default:0"`
	AllowedJobTypes     JSONStringSlice `gorm:"type:jsonb"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (ControllerConfig) TableName() string { return "vantage_initiator.controller_config" }

// DefaultAllowedJobTypes is the in-memory allow-list used when a vantage has
// no ControllerConfig; it is not written to the database.
func DefaultAllowedJobTypes() JSONStringSlice {
	return JSONStringSlice{
		string(JobHeartbeat), string(JobSenseDrivesV1), string(JobEnqueuePassesV1),
		string(JobReapStaleJobsV1), string(JobCardDecayV1), string(JobCardConsolidateKVV1),
		string(JobFactSeedFromChatLogV1), string(JobFactDrivesV1), string(JobFactExtractV1),
		string(JobFactContradictionScanV1),
	}
}

// Allows reports whether jt is in the controller's allow-list.
func (c *ControllerConfig) Allows(jt JobType) bool {
	for _, a := range c.AllowedJobTypes {
		if a == string(jt) {
			return true
		}
	}
	return false
}
