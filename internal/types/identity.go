package types

import "time"

// UserAlias maps (vantage_id, alias_user_id) -> canonical_user_id. Identity
// aliasing's own store is an out-of-scope collaborator per spec.md §1; this
// table is the minimal shape the in-repo stub implementation needs.
type UserAlias struct {
	VantageID       string `gorm:"primaryKey;size:64"`
	AliasUserID     string `gorm:"primaryKey;size:128"`
	CanonicalUserID string `gorm:"size:128;index;not null"`
	CreatedAt       time.Time
}

func (UserAlias) TableName() string { return "vantage_identity.user_alias" }

// RAGPolicy is the per-vantage retrieval policy document (component D,
// spec.md §6 GET/POST /vantage/rag_policy).
type RAGPolicy struct {
	VantageID string    `gorm:"primaryKey;size:64"`
	Policy    JSONMap   `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (RAGPolicy) TableName() string { return "vantage_identity.rag_policy" }
