package card

import (
	"context"
	"testing"
	"time"

	"github.com/vantageplatform/vantage-core/internal/types"
)

type fakeCardRepo struct {
	signalsReward, signalsPunish, signalsUse float64
	lastStrength, lastConfidence             float64
	lastPayload                              types.JSONMap
	updateCalls                              int
	revisionWritten                          bool
}

func (f *fakeCardRepo) GetHead(ctx context.Context, vantageID, kind, topicKey string) (*types.CardHead, error) {
	return nil, nil
}
func (f *fakeCardRepo) GetHeadByID(ctx context.Context, cardID string) (*types.CardHead, error) {
	return nil, nil
}
func (f *fakeCardRepo) UpsertWithRevision(ctx context.Context, head *types.CardHead, revision *types.CardRevision) error {
	return nil
}
func (f *fakeCardRepo) LinkIdempotent(ctx context.Context, link *types.CardLink) error { return nil }
func (f *fakeCardRepo) HasLink(ctx context.Context, cardID, linkType, refID string) (bool, error) {
	return false, nil
}
func (f *fakeCardRepo) ListActiveNonSystem(ctx context.Context, vantageID string, limit int, cursor time.Time) ([]*types.CardHead, error) {
	return nil, nil
}
func (f *fakeCardRepo) SignalsSince(ctx context.Context, cardID string, since time.Time) (float64, float64, float64, error) {
	return f.signalsReward, f.signalsPunish, f.signalsUse, nil
}
func (f *fakeCardRepo) AppendSignal(ctx context.Context, signal *types.CardSignal) error { return nil }
func (f *fakeCardRepo) UpdateDecay(ctx context.Context, cardID string, strength, confidence float64, payload types.JSONMap, revision *types.CardRevision) error {
	f.updateCalls++
	f.lastStrength = strength
	f.lastConfidence = confidence
	f.lastPayload = payload
	f.revisionWritten = revision != nil
	return nil
}
func (f *fakeCardRepo) DeleteCard(ctx context.Context, cardID string) error { return nil }

func TestDecayOneAppliesHalfLifeAndSignals(t *testing.T) {
	repo := &fakeCardRepo{signalsReward: 2, signalsPunish: 0, signalsUse: 1}
	svc := New(repo, nil)

	card := &types.CardHead{
		CardID:     "c1",
		Strength:   0.8,
		Confidence: 0.8,
		UpdatedAt:  time.Now().UTC().Add(-45 * 24 * time.Hour),
		Payload:    types.JSONMap{},
	}

	changed, err := svc.DecayOne(context.Background(), card)
	if err != nil {
		t.Fatalf("DecayOne error: %v", err)
	}
	if !changed {
		t.Fatalf("expected decay after one half-life with signals to change the card")
	}
	if repo.updateCalls != 1 {
		t.Fatalf("expected exactly one UpdateDecay call, got %d", repo.updateCalls)
	}
	if !repo.revisionWritten {
		t.Fatalf("expected a revision to be written when the card changed")
	}
	// factor(45 days, 45-day half-life) = 0.5; delta = min(0.2,0.02*1)+min(0.2,0.05*2) = 0.02+0.1 = 0.12
	wantStrength := round3(clamp01(0.8*0.5 + 0.12))
	if repo.lastStrength != wantStrength {
		t.Fatalf("strength = %v, want %v", repo.lastStrength, wantStrength)
	}
	if _, ok := repo.lastPayload[decayPayloadKey]; !ok {
		t.Fatalf("expected payload to carry last_decay_at")
	}
}

// TestDecayOneMatchesDocumentedScenario exercises spec.md §8 scenario 3
// verbatim: strength=0.80, no signals, half_life_days=45, after 45 simulated
// days becomes strength≈0.40; re-run with 0 elapsed is a no-op.
func TestDecayOneMatchesDocumentedScenario(t *testing.T) {
	repo := &fakeCardRepo{}
	svc := New(repo, nil)

	card := &types.CardHead{
		CardID:     "c3",
		Strength:   0.8,
		Confidence: 0.8,
		UpdatedAt:  time.Now().UTC().Add(-45 * 24 * time.Hour),
		Payload:    types.JSONMap{"half_life_days": 45.0},
	}

	changed, err := svc.DecayOne(context.Background(), card)
	if err != nil {
		t.Fatalf("DecayOne error: %v", err)
	}
	if !changed {
		t.Fatalf("expected strength to decay after 45 days at a 45-day half-life")
	}
	if repo.lastStrength < 0.39 || repo.lastStrength > 0.41 {
		t.Fatalf("strength = %v, want ≈0.40", repo.lastStrength)
	}

	card.Strength = repo.lastStrength
	card.Confidence = repo.lastConfidence
	card.Payload = repo.lastPayload
	card.UpdatedAt = time.Now().UTC()
	repo.updateCalls = 0
	repo.revisionWritten = false

	changed, err = svc.DecayOne(context.Background(), card)
	if err != nil {
		t.Fatalf("DecayOne error: %v", err)
	}
	if changed {
		t.Fatalf("expected no-op decay with 0 elapsed time")
	}
}

func TestDecayOneSkipsNoopWithinMinInterval(t *testing.T) {
	repo := &fakeCardRepo{}
	svc := New(repo, nil)

	card := &types.CardHead{
		CardID:     "c2",
		Strength:   0.5,
		Confidence: 0.5,
		UpdatedAt:  time.Now().UTC().Add(-10 * time.Minute),
		Payload:    types.JSONMap{},
	}

	changed, err := svc.DecayOne(context.Background(), card)
	if err != nil {
		t.Fatalf("DecayOne error: %v", err)
	}
	if changed {
		t.Fatalf("expected no-op decay within min_interval_minutes with no signals")
	}
	if repo.updateCalls != 1 {
		t.Fatalf("expected the cursor to still be rewritten, got %d calls", repo.updateCalls)
	}
	if repo.revisionWritten {
		t.Fatalf("no-op decay must not write a revision")
	}
}
