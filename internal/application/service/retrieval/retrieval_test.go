package retrieval

import (
	"context"
	"testing"

	"github.com/vantageplatform/vantage-core/internal/config"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

func vantageConfigStub() config.VantageConfig {
	return config.VantageConfig{}
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}
func (fakeEmbedder) Dimension() int { return 3 }

type fakeVectorStore struct {
	collections map[string][]interfaces.ScoredPoint
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, points []interfaces.Point) error {
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, req interfaces.SearchRequest) ([]interfaces.ScoredPoint, error) {
	var out []interfaces.ScoredPoint
	for _, p := range f.collections[req.Collection] {
		if !matchesFilter(p.Payload, req.Filter) {
			continue
		}
		if p.Score < req.ScoreThreshold {
			continue
		}
		out = append(out, p)
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func matchesFilter(payload map[string]interface{}, filter *interfaces.Filter) bool {
	if filter == nil {
		return true
	}
	for _, c := range filter.Must {
		if payload[c.Key] != c.MatchValue {
			return false
		}
	}
	for _, c := range filter.MustNot {
		if payload[c.Key] == c.MatchValue {
			return false
		}
	}
	return true
}

func (f *fakeVectorStore) Scroll(ctx context.Context, req interfaces.ScrollRequest) ([]interfaces.Point, error) {
	return nil, nil
}
func (f *fakeVectorStore) Retrieve(ctx context.Context, collection string, ids []string) ([]interfaces.Point, error) {
	return nil, nil
}
func (f *fakeVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	return nil
}
func (f *fakeVectorStore) DeleteByFilter(ctx context.Context, collection string, filter interfaces.Filter) error {
	return nil
}
func (f *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	return nil
}
func (f *fakeVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	return names, nil
}

type fakePolicyRepo struct {
	policy types.JSONMap
}

func (f *fakePolicyRepo) Get(ctx context.Context, vantageID string) (types.JSONMap, error) {
	return f.policy, nil
}
func (f *fakePolicyRepo) Upsert(ctx context.Context, vantageID string, policy types.JSONMap) error {
	f.policy = policy
	return nil
}

func TestInferQueryTagsFormatAndIntent(t *testing.T) {
	tags := toSet(InferQueryTags("Can you give me a bulleted outline explaining why this works?"))
	if !tags["format:skeleton"] {
		t.Fatalf("expected format:skeleton, got %v", tags)
	}
	if !tags["intent:explain"] {
		t.Fatalf("expected intent:explain, got %v", tags)
	}
	if !tags["vb_desire:explicit_request"] {
		t.Fatalf("expected vb_desire:explicit_request, got %v", tags)
	}
}

func TestIsBypassQuery(t *testing.T) {
	if !IsBypassQuery("echo model id please") {
		t.Fatalf("expected echo model id to bypass")
	}
	if IsBypassQuery("what is my favorite color") {
		t.Fatalf("expected a normal query not to bypass")
	}
}

func TestRetrievePersonalMemoryFiltersAndRescoresTags(t *testing.T) {
	store := &fakeVectorStore{collections: map[string][]interfaces.ScoredPoint{
		MemoryCollection: {
			{Point: interfaces.Point{ID: "m1", Payload: map[string]interface{}{
				"user_id": "u1", "text": "I like bulleted lists for workouts", "tags": []interface{}{"format:skeleton"},
			}}, Score: 0.5},
			{Point: interfaces.Point{ID: "m2", Payload: map[string]interface{}{
				"user_id": "u1", "text": "assistant reply", "source": "frontend/chat:assistant",
			}}, Score: 0.9},
			{Point: interfaces.Point{ID: "m3", Payload: map[string]interface{}{
				"user_id": "u1", "text": "preflight_check marker", "source": "frontend/chat:user",
			}}, Score: 0.8},
		},
	}}
	svc := New(store, fakeEmbedder{}, nil, nil, nil, vantageConfigStub())

	hits, err := svc.RetrievePersonalMemory(context.Background(), "u1", "default", "give me a bulleted list for my workout", 5, 0.1)
	if err != nil {
		t.Fatalf("RetrievePersonalMemory error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly 1 surviving hit (assistant + preflight excluded), got %d: %+v", len(hits), hits)
	}
	if hits[0].ID != "m1" {
		t.Fatalf("expected m1 to survive, got %s", hits[0].ID)
	}
	if hits[0].Score <= 0.5 {
		t.Fatalf("expected format:skeleton tag bonus to raise the score above base 0.5, got %v", hits[0].Score)
	}
}

func TestRetrieveCorpusUsesPolicyOverride(t *testing.T) {
	store := &fakeVectorStore{collections: map[string][]interfaces.ScoredPoint{
		"corpus_a": {{Point: interfaces.Point{ID: "a1", Payload: map[string]interface{}{}}, Score: 0.4}},
		"corpus_b": {{Point: interfaces.Point{ID: "b1", Payload: map[string]interface{}{}}, Score: 0.9}},
	}}
	policy := &fakePolicyRepo{policy: types.JSONMap{"corpus_primary": []interface{}{"corpus_b"}}}
	svc := New(store, fakeEmbedder{}, nil, policy, nil, vantageConfigStub())
	svc.DefaultPrimary = []string{"corpus_a"}

	hits, err := svc.RetrieveCorpus(context.Background(), "v1", "explain this", 5, 0.1)
	if err != nil {
		t.Fatalf("RetrieveCorpus error: %v", err)
	}
	if len(hits) != 1 || hits[0].Collection != "corpus_b" {
		t.Fatalf("expected the policy override to route to corpus_b only, got %+v", hits)
	}
}

func TestRetrieveBypassesIdentityQueries(t *testing.T) {
	svc := New(&fakeVectorStore{collections: map[string][]interfaces.ScoredPoint{}}, fakeEmbedder{}, nil, nil, nil, vantageConfigStub())
	composed, err := svc.Retrieve(context.Background(), "u1", "default", "echo model id", 5, 5, 0.1)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(composed.All()) != 0 {
		t.Fatalf("expected bypass query to skip retrieval, got %+v", composed)
	}
}
