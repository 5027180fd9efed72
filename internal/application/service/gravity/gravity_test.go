package gravity

import (
	"context"
	"testing"

	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type fakeVectorStore struct {
	points map[string][]interfaces.Point // collection -> points
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: map[string][]interfaces.Point{}}
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, points []interfaces.Point) error {
	for _, p := range points {
		replaced := false
		for i, existing := range f.points[collection] {
			if existing.ID == p.ID {
				f.points[collection][i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			f.points[collection] = append(f.points[collection], p)
		}
	}
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, req interfaces.SearchRequest) ([]interfaces.ScoredPoint, error) {
	return nil, nil
}

func (f *fakeVectorStore) Scroll(ctx context.Context, req interfaces.ScrollRequest) ([]interfaces.Point, error) {
	var out []interfaces.Point
	for _, p := range f.points[req.Collection] {
		if matchesFilter(p, req.Filter) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesFilter(p interfaces.Point, filter *interfaces.Filter) bool {
	if filter == nil {
		return true
	}
	for _, cond := range filter.Must {
		v, ok := p.Payload[cond.Key]
		if !ok || v != cond.MatchValue {
			return false
		}
	}
	return true
}

func (f *fakeVectorStore) Retrieve(ctx context.Context, collection string, ids []string) ([]interfaces.Point, error) {
	idSet := map[string]bool{}
	for _, id := range ids {
		idSet[id] = true
	}
	var out []interfaces.Point
	for _, p := range f.points[collection] {
		if idSet[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	idSet := map[string]bool{}
	for _, id := range ids {
		idSet[id] = true
	}
	var kept []interfaces.Point
	for _, p := range f.points[collection] {
		if !idSet[p.ID] {
			kept = append(kept, p)
		}
	}
	f.points[collection] = kept
	return nil
}

func (f *fakeVectorStore) DeleteByFilter(ctx context.Context, collection string, filter interfaces.Filter) error {
	return nil
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	return nil
}

func (f *fakeVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.points))
	for name := range f.points {
		names = append(names, name)
	}
	return names, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}
func (fakeEmbedder) Dimension() int { return 3 }

func TestComputeGravityMixesThreeSourcesAndClamps(t *testing.T) {
	store := newFakeVectorStore()
	store.points[MemoryCollection] = []interfaces.Point{
		{ID: "m1", Payload: map[string]interface{}{
			"user_id": "u1", "kind": "style_mode", "tags": []interface{}{"format:prose"},
		}},
		{ID: "m2", Payload: map[string]interface{}{
			"user_id": "u1", "tags": []interface{}{"vb_desire:explicit_request"},
			"feedback": map[string]interface{}{"positive_signals": 5.0, "negative_signals": 0.0},
		}},
	}
	svc := New(store, fakeEmbedder{})

	weights, err := svc.ComputeGravity(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ComputeGravity error: %v", err)
	}
	if weights["format:prose"] <= 0 {
		t.Fatalf("expected positive weight for format:prose, got %v", weights["format:prose"])
	}
	if weights["vb_desire:explicit_request"] <= 0 {
		t.Fatalf("expected positive weight for vb_desire:explicit_request, got %v", weights["vb_desire:explicit_request"])
	}
	for tag, w := range weights {
		if w < -1.0 || w > 1.0 {
			t.Fatalf("weight for %s out of [-1,1]: %v", tag, w)
		}
	}
}

func TestComputeMisalignmentNoOverlap(t *testing.T) {
	got := ComputeMisalignment([]string{"topic:unknown"}, map[string]float64{"topic:workout": 0.5})
	if got != 0.3 {
		t.Fatalf("expected 0.3 for no overlap, got %v", got)
	}
}

func TestComputeMisalignmentAllMisaligned(t *testing.T) {
	got := ComputeMisalignment([]string{"topic:workout"}, map[string]float64{"topic:workout": -0.2})
	if got != 1.0 {
		t.Fatalf("expected 1.0 when all overlapping tags are <= 0, got %v", got)
	}
}

func TestComputeMisalignmentEmptyInputs(t *testing.T) {
	if got := ComputeMisalignment(nil, map[string]float64{"a": 1}); got != 0.0 {
		t.Fatalf("expected 0.0 for empty query tags, got %v", got)
	}
	if got := ComputeMisalignment([]string{"a"}, nil); got != 0.0 {
		t.Fatalf("expected 0.0 for empty weights, got %v", got)
	}
}

func TestRebuildGravityWritesSingletonAndPrunesLegacy(t *testing.T) {
	store := newFakeVectorStore()
	store.points[MemoryCollection] = []interfaces.Point{
		{ID: "legacy-1", Payload: map[string]interface{}{"user_id": "u1", "kind": gravityKind}},
	}
	svc := New(store, fakeEmbedder{})

	if _, err := svc.RebuildGravity(context.Background(), "u1"); err != nil {
		t.Fatalf("RebuildGravity error: %v", err)
	}

	id := gravitySingletonID("u1")
	pts, _ := store.Retrieve(context.Background(), MemoryCollection, []string{id})
	if len(pts) != 1 {
		t.Fatalf("expected the singleton point to be written, got %d", len(pts))
	}

	legacyStillPresent, _ := store.Retrieve(context.Background(), MemoryCollection, []string{"legacy-1"})
	if len(legacyStillPresent) != 0 {
		t.Fatalf("expected legacy gravity_profile point to be pruned")
	}
}
