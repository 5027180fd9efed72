package persona

import (
	"context"
	"testing"

	"github.com/vantageplatform/vantage-core/internal/application/service/retrieval"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type fakeVectorStore struct {
	points []interfaces.Point
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, points []interfaces.Point) error {
	return nil
}
func (f *fakeVectorStore) Search(ctx context.Context, req interfaces.SearchRequest) ([]interfaces.ScoredPoint, error) {
	return nil, nil
}
func (f *fakeVectorStore) Scroll(ctx context.Context, req interfaces.ScrollRequest) ([]interfaces.Point, error) {
	var out []interfaces.Point
	for _, p := range f.points {
		ok := true
		for _, c := range req.Filter.Must {
			if p.Payload[c.Key] != c.MatchValue {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
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
func (f *fakeVectorStore) ListCollections(ctx context.Context) ([]string, error) { return nil, nil }

func TestBuildSystemPromptIncludesPersonaAndMemory(t *testing.T) {
	store := &fakeVectorStore{points: []interfaces.Point{
		{ID: "c1", Payload: map[string]interface{}{
			"user_id": "u1", "source": styleCardSource, "kind": "style_mode", "text": "Prefers concise, skeleton-format answers.",
		}},
	}}
	svc := New(store, nil, "")

	composed := retrieval.Composed{Personal: []retrieval.Hit{
		{Collection: "memory_raw", ID: "m1", Score: 0.9, Payload: map[string]interface{}{"text": "User mentioned liking bullet points."}},
	}}

	prompt, err := svc.BuildSystemPrompt(context.Background(), "u1", composed, "[OVERLAY]", 0.1)
	if err != nil {
		t.Fatalf("BuildSystemPrompt error: %v", err)
	}
	if !contains(prompt, "Prefers concise") {
		t.Fatalf("expected persona card text in prompt, got: %s", prompt)
	}
	if !contains(prompt, "bullet points") {
		t.Fatalf("expected memory hit text in prompt, got: %s", prompt)
	}
	if !contains(prompt, "[OVERLAY]") {
		t.Fatalf("expected overlay text in prompt, got: %s", prompt)
	}
	if contains(prompt, "GRAVITY NOTICE") {
		t.Fatalf("did not expect a gravity notice below the misalignment threshold")
	}
}

func TestBuildSystemPromptAddsGravityNoticeAboveThreshold(t *testing.T) {
	svc := New(&fakeVectorStore{}, nil, "")
	prompt, err := svc.BuildSystemPrompt(context.Background(), "u1", retrieval.Composed{}, "", 0.5)
	if err != nil {
		t.Fatalf("BuildSystemPrompt error: %v", err)
	}
	if !contains(prompt, "GRAVITY NOTICE") {
		t.Fatalf("expected a gravity notice at or above threshold, got: %s", prompt)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
