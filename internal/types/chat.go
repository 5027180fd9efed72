package types

import "time"

// Thread is a conversation container owned by exactly one canonical user
// (spec.md §3 Thread).
type Thread struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"index;size:128;not null"`
	Title     string
	Archived  bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Thread) TableName() string { return "public.thread" }

// ChatLogRow is an immutable transcript row, also mirrored as a point in the
// memory_raw vector collection (spec.md §3 ChatLogRow).
type ChatLogRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	UserID        string `gorm:"index;size:128;not null"`
	UserIDAlias   string `gorm:"size:128"`
	Source        string `gorm:"size:32;not null"` // "user" | "assistant"
	Text          string `gorm:"type:text;not null"`
	Tags          JSONStringSlice `gorm:"type:jsonb"`
	ThreadID      *string `gorm:"size:64;index"`
	VantageID     string  `gorm:"size:64;index"`
	RequestID     string  `gorm:"size:128"`
	CreatedAt     time.Time `gorm:"index"`
}

func (ChatLogRow) TableName() string { return "public.chat_log" }

// AnswerTrace is the durable record keyed by the UUID emitted with a chat
// response; feedback resolves against it first (spec.md §3 AnswerTrace).
type AnswerTrace struct {
	AnswerID       string          `gorm:"primaryKey;size:64"`
	UserID         string          `gorm:"index;size:128;not null"`
	ThreadID       *string         `gorm:"size:64"`
	VantageID      string          `gorm:"size:64;index"`
	ModelID        string          `gorm:"size:128"`
	AnswerText     string          `gorm:"type:text"`
	AnswerTextHash string          `gorm:"size:64"`
	MemoryIDs      JSONStringSlice `gorm:"type:jsonb"`
	CreatedAt      time.Time       `gorm:"index"`
}

func (AnswerTrace) TableName() string { return "public.answer_trace" }
