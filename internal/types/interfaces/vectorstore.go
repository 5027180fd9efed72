// Package interfaces declares the capability boundaries spec.md §1 treats
// as external collaborators: the vector store, the embedding/chat
// providers, and identity aliasing. Concrete adapters live under
// internal/repository/retriever and internal/models.
package interfaces

import "context"

// Point is one payload-bearing vector in a named collection.
type Point struct {
	ID      string
	Vector  []float32
	// NamedVectors is populated instead of Vector for collections with more
	// than one named vector; the first named vector is used by retrieval
	// (spec.md §4.H "Named-vector collections use the first named vector").
	NamedVectors map[string][]float32
	Payload      map[string]interface{}
}

// ScoredPoint is a Point annotated with a similarity score from a search.
type ScoredPoint struct {
	Point
	Score float64
}

// Filter is a minimal must/must-not payload filter, modeled after Qdrant's
// Filter shape (spec.md interface B: "named-collection point store with
// payload filters and scroll/search/upsert/delete").
type Filter struct {
	Must    []Condition
	MustNot []Condition
}

// Condition matches a payload field against a value, or accepts it when the
// field is absent (IsNullOrMissing), used by the memory_raw namespace
// back-compat affordance in spec.md §4.H.
type Condition struct {
	Key             string
	MatchValue      interface{}
	IsNullOrMissing bool
}

// SearchRequest parameterizes a vector search against one collection.
type SearchRequest struct {
	Collection    string
	Vector        []float32
	Limit         int
	ScoreThreshold float64
	Filter        *Filter
}

// ScrollRequest parameterizes a non-similarity paged read of a collection.
type ScrollRequest struct {
	Collection string
	Filter     *Filter
	Limit      int
}

// VectorStore is the named-collection point store the platform consumes
// (spec.md §1 interface B, §6 "Vector store adapter").
type VectorStore interface {
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, req SearchRequest) ([]ScoredPoint, error)
	Scroll(ctx context.Context, req ScrollRequest) ([]Point, error)
	Retrieve(ctx context.Context, collection string, ids []string) ([]Point, error)
	Delete(ctx context.Context, collection string, ids []string) error
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error
	EnsureCollection(ctx context.Context, collection string, dim int) error
	// ListCollections names every collection the store currently holds
	// (spec.md §4.H "corpus retrieval" default primary list when no policy
	// or env override names one).
	ListCollections(ctx context.Context) ([]string, error)
}
