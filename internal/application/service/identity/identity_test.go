package identity

import (
	"context"
	"testing"
)

type fakeIdentityRepo struct {
	aliases map[string]string
}

func (f *fakeIdentityRepo) Resolve(ctx context.Context, vantageID, aliasUserID string) (string, error) {
	if canonical, ok := f.aliases[vantageID+"|"+aliasUserID]; ok {
		return canonical, nil
	}
	return aliasUserID, nil
}

func (f *fakeIdentityRepo) Alias(ctx context.Context, vantageID, aliasUserID, canonicalUserID string) error {
	if f.aliases == nil {
		f.aliases = map[string]string{}
	}
	f.aliases[vantageID+"|"+aliasUserID] = canonicalUserID
	return nil
}

func TestResolveDefaultsToIdentityFunction(t *testing.T) {
	svc := New(&fakeIdentityRepo{})
	got, err := svc.Resolve(context.Background(), "v1", "alice")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != "alice" {
		t.Fatalf("expected identity-function default, got %q", got)
	}
}

func TestAliasThenResolve(t *testing.T) {
	repo := &fakeIdentityRepo{}
	svc := New(repo)
	if err := svc.Alias(context.Background(), "v1", "alice-sms", "alice"); err != nil {
		t.Fatalf("Alias error: %v", err)
	}
	got, err := svc.Resolve(context.Background(), "v1", "alice-sms")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != "alice" {
		t.Fatalf("expected canonical alice, got %q", got)
	}
}

func TestResolveRejectsEmptyAlias(t *testing.T) {
	svc := New(&fakeIdentityRepo{})
	if _, err := svc.Resolve(context.Background(), "v1", ""); err == nil {
		t.Fatal("expected error for empty alias_user_id")
	}
}
