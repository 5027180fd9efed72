package policy

import (
	"context"
	"testing"

	"github.com/vantageplatform/vantage-core/internal/types"
)

type fakePolicyRepo struct {
	docs map[string]types.JSONMap
}

func (f *fakePolicyRepo) Get(ctx context.Context, vantageID string) (types.JSONMap, error) {
	return f.docs[vantageID], nil
}

func (f *fakePolicyRepo) Upsert(ctx context.Context, vantageID string, policy types.JSONMap) error {
	if f.docs == nil {
		f.docs = map[string]types.JSONMap{}
	}
	f.docs[vantageID] = policy
	return nil
}

type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) InvalidatePolicyCache(vantageID string) {
	f.invalidated = append(f.invalidated, vantageID)
}

func TestUpsertInvalidatesCache(t *testing.T) {
	repo := &fakePolicyRepo{}
	cache := &fakeCache{}
	svc := New(repo, cache)

	policy := types.JSONMap{"corpus_primary": []string{"a"}}
	if err := svc.Upsert(context.Background(), "v1", policy); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "v1" {
		t.Fatalf("expected cache invalidation for v1, got %v", cache.invalidated)
	}

	got, err := svc.Get(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got["corpus_primary"] == nil {
		t.Fatalf("expected stored policy to round-trip, got %v", got)
	}
}

func TestGetRejectsEmptyVantageID(t *testing.T) {
	svc := New(&fakePolicyRepo{}, nil)
	if _, err := svc.Get(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty vantage_id")
	}
}
