package types

import "time"

// CardStatus is active or retired (spec.md §3 CardHead).
type CardStatus string

const (
	CardActive  CardStatus = "active"
	CardRetired CardStatus = "retired"
)

// SingletonTopicKey is the fixed topic_key for per-user singleton cards
// (gravity profile, vb-desire profile, style cards, consolidate cursor).
const SingletonTopicKey = "__singleton__"

// CardHead is the mutable head of a long-lived card artifact
// (spec.md §3 CardHead). Unique by (vantage_id, kind, topic_key).
type CardHead struct {
	CardID     string     `gorm:"primaryKey;size:64"`
	VantageID  string     `gorm:"size:64;index:idx_card_unique,unique;not null"`
	Kind       string     `gorm:"size:32;index:idx_card_unique,unique;not null"`
	TopicKey   string     `gorm:"size:256;index:idx_card_unique,unique;not null"`
	Summary    string     `gorm:"type:text"`
	Payload    JSONMap    `gorm:"type:jsonb"`
	Strength   float64    `gorm:"not null"`
	Confidence float64    `gorm:"not null"`
	Status     CardStatus `gorm:"size:16;index;not null"`
	UpdatedAt  time.Time
	CreatedAt  time.Time
}

func (CardHead) TableName() string { return "vantage_card.card_head" }

// CardRevision is the append-only revision log behind a CardHead
// (spec.md §3 CardRevision). A revision is always appended before the head
// is updated, per spec.md §5 ordering guarantees.
type CardRevision struct {
	RevisionID     string  `gorm:"primaryKey;size:64"`
	CardID         string  `gorm:"index;size:64;not null"`
	PrevRevisionID *string `gorm:"size:64"`
	Summary        string  `gorm:"type:text"`
	Payload        JSONMap `gorm:"type:jsonb"`
	Reason         string  `gorm:"size:128"`
	Delta          JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time
}

func (CardRevision) TableName() string { return "vantage_card.card_revision" }

// CardLink references a source/chat_log/claim id by id, never by pointer
// (spec.md §3 CardLink, §9 design note). Unique per (card_id, link_type, ref_id).
type CardLink struct {
	CardID   string `gorm:"primaryKey;size:64"`
	LinkType string `gorm:"primaryKey;size:32"`
	RefID    string `gorm:"primaryKey;size:64"`
	Note     string `gorm:"size:64"`
	CreatedAt time.Time
}

func (CardLink) TableName() string { return "vantage_card.card_link" }

// CardSignal is a reward/punish/correction/use signal consumed by decay
// (spec.md §3 CardSignal).
type SignalType string

const (
	SignalReward     SignalType = "reward"
	SignalPunish     SignalType = "punish"
	SignalCorrection SignalType = "correction"
	SignalUse        SignalType = "use"
)

type CardSignal struct {
	SignalID    string     `gorm:"primaryKey;size:64"`
	CardIDOrKey string     `gorm:"index;size:256;not null"`
	SignalType  SignalType `gorm:"size:16;index;not null"`
	Magnitude   float64    `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"index"`
}

func (CardSignal) TableName() string { return "vantage_card.card_signal" }
