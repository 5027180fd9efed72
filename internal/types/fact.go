package types

import "time"

// SourceStatus tracks a Source through the fact pipeline (spec.md §3 Source).
type SourceStatus string

const (
	SourcePending    SourceStatus = "pending"
	SourceProcessing SourceStatus = "processing"
	SourceDone       SourceStatus = "done"
	SourceError      SourceStatus = "error"
)

// Source seeds the fact pipeline from an external record (a chat_log row).
type Source struct {
	SourceID       string       `gorm:"primaryKey;size:64"`
	SourceType     string       `gorm:"size:32;not null"`
	ExternalID     string       `gorm:"uniqueIndex;size:256;not null"` // "chat_log:<chat_log_id>"
	Title          string
	Content        string       `gorm:"type:text"`
	ContentSHA256  string       `gorm:"size:64"`
	Metadata       JSONMap      `gorm:"type:jsonb"`
	Status         SourceStatus `gorm:"size:16;index;not null"`
	ProcessedAt    *time.Time
	CreatedAt      time.Time `gorm:"index"`
}

func (Source) TableName() string { return "vantage_fact.source" }

// Cardinality describes whether a predicate accepts one or many active values.
type Cardinality string

const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// Entity is the subject of claims; the fact pipeline creates one "document"
// entity per source, named by the source's title.
type Entity struct {
	EntityID      string `gorm:"primaryKey;size:64"`
	EntityType    string `gorm:"size:32;index;not null"`
	CanonicalName string `gorm:"size:512;index"`
	CreatedAt     time.Time
}

func (Entity) TableName() string { return "vantage_fact.entity" }

// Predicate defines the cardinality constraint that drives contradiction
// detection (spec.md §3 Predicate).
type Predicate struct {
	Predicate   string      `gorm:"primaryKey;size:128"`
	Cardinality Cardinality `gorm:"size:8;not null"`
}

func (Predicate) TableName() string { return "vantage_fact.predicate" }

// ClaimStatus is active or retracted.
type ClaimStatus string

const (
	ClaimActive    ClaimStatus = "active"
	ClaimRetracted ClaimStatus = "retracted"
)

// Claim is a structured (subject, predicate, object) assertion extracted
// from a Source (spec.md §3 Claim).
type Claim struct {
	ClaimID         string      `gorm:"primaryKey;size:64"`
	SubjectEntityID string      `gorm:"index;size:64;not null"`
	Predicate       string      `gorm:"index;size:128;not null"`
	ObjectLiteral   string      `gorm:"type:jsonb;not null"`
	Qualifiers      string      `gorm:"type:jsonb"`
	Confidence      float64     `gorm:"not null"`
	Status          ClaimStatus `gorm:"size:16;index;not null"`
	CanonicalKey    string      `gorm:"uniqueIndex;size:64;not null"`
	UpdatedAt       time.Time
	CreatedAt       time.Time
}

func (Claim) TableName() string { return "vantage_fact.claim" }

// Evidence links a Claim to the Source span it was extracted from
// (spec.md §3 Evidence).
type Evidence struct {
	EvidenceID            string  `gorm:"primaryKey;size:64"`
	ClaimID               string  `gorm:"index;size:64;not null"`
	SourceID              string  `gorm:"index;size:64;not null"`
	SpanStart             *int
	SpanEnd               *int
	Snippet               *string `gorm:"type:text"`
	Extractor             string  `gorm:"size:64;not null"`
	ExtractorVersion      string  `gorm:"size:32;not null"`
	ExtractionConfidence  float64
	CreatedAt             time.Time
}

func (Evidence) TableName() string { return "vantage_fact.evidence" }

// ContradictionStatus is open or resolved.
type ContradictionStatus string

const (
	ContradictionOpen     ContradictionStatus = "open"
	ContradictionResolved ContradictionStatus = "resolved"
)

// Contradiction records that a cardinality-one predicate holds more than one
// distinct active value for a subject (spec.md §3 Contradiction).
type Contradiction struct {
	ContradictionID string              `gorm:"primaryKey;size:64"`
	SubjectEntityID string              `gorm:"index;size:64;not null"`
	Predicate       string              `gorm:"index;size:128;not null"`
	QualifierKey    string              `gorm:"size:64"`
	Status          ContradictionStatus `gorm:"size:16;index;not null"`
	Members         JSONStringSlice     `gorm:"type:jsonb"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Contradiction) TableName() string { return "vantage_fact.contradiction" }
