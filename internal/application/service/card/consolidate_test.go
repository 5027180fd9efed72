package card

import (
	"context"
	"testing"
	"time"

	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// fakeConsolidateCardRepo is an in-memory CardRepository keyed by
// kind+topicKey, enough to drive applyClaimToCard/ConsolidateKV without a
// real database.
type fakeConsolidateCardRepo struct {
	heads []*types.CardHead
	links []*types.CardLink
}

func (f *fakeConsolidateCardRepo) GetHead(ctx context.Context, vantageID, kind, topicKey string) (*types.CardHead, error) {
	for _, h := range f.heads {
		if h.VantageID == vantageID && h.Kind == kind && h.TopicKey == topicKey {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeConsolidateCardRepo) GetHeadByID(ctx context.Context, cardID string) (*types.CardHead, error) {
	for _, h := range f.heads {
		if h.CardID == cardID {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeConsolidateCardRepo) UpsertWithRevision(ctx context.Context, head *types.CardHead, revision *types.CardRevision) error {
	if head.CardID == "" {
		head.CardID = idgenStubCardID(head.VantageID, head.Kind, head.TopicKey)
	}
	for _, h := range f.heads {
		if h.CardID == head.CardID {
			*h = *head
			return nil
		}
	}
	stored := *head
	f.heads = append(f.heads, &stored)
	return nil
}

func (f *fakeConsolidateCardRepo) LinkIdempotent(ctx context.Context, link *types.CardLink) error {
	for _, l := range f.links {
		if l.CardID == link.CardID && l.LinkType == link.LinkType && l.RefID == link.RefID {
			return nil
		}
	}
	stored := *link
	f.links = append(f.links, &stored)
	return nil
}

func (f *fakeConsolidateCardRepo) HasLink(ctx context.Context, cardID, linkType, refID string) (bool, error) {
	for _, l := range f.links {
		if l.CardID == cardID && l.LinkType == linkType && l.RefID == refID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConsolidateCardRepo) ListActiveNonSystem(ctx context.Context, vantageID string, limit int, cursor time.Time) ([]*types.CardHead, error) {
	return nil, nil
}

func (f *fakeConsolidateCardRepo) SignalsSince(ctx context.Context, cardID string, since time.Time) (float64, float64, float64, error) {
	return 0, 0, 0, nil
}

func (f *fakeConsolidateCardRepo) AppendSignal(ctx context.Context, signal *types.CardSignal) error {
	return nil
}

func (f *fakeConsolidateCardRepo) UpdateDecay(ctx context.Context, cardID string, strength, confidence float64, payload types.JSONMap, revision *types.CardRevision) error {
	return nil
}

func (f *fakeConsolidateCardRepo) DeleteCard(ctx context.Context, cardID string) error { return nil }

func idgenStubCardID(vantageID, kind, topicKey string) string {
	return "card:" + vantageID + ":" + kind + ":" + topicKey
}

// fakeConsolidateFactRepo serves ClaimsForSource/ListDoneUnconsolidated with
// fixtures; every other FactRepository method is unused by the card package.
type fakeConsolidateFactRepo struct {
	claimsBySource map[string][]*types.Claim
}

func (f *fakeConsolidateFactRepo) InsertSourceIfAbsent(ctx context.Context, src *types.Source) (bool, error) {
	return false, nil
}
func (f *fakeConsolidateFactRepo) ClaimNextPendingSource(ctx context.Context) (*types.Source, error) {
	return nil, nil
}
func (f *fakeConsolidateFactRepo) MarkSourceDone(ctx context.Context, sourceID string) error {
	return nil
}
func (f *fakeConsolidateFactRepo) MarkSourceError(ctx context.Context, sourceID, errText string) error {
	return nil
}
func (f *fakeConsolidateFactRepo) SetSourceContentSHA256(ctx context.Context, sourceID, sha256 string) error {
	return nil
}
func (f *fakeConsolidateFactRepo) CountPendingSources(ctx context.Context) (int64, error) {
	return 0, nil
}
func (f *fakeConsolidateFactRepo) GetOrCreateEntity(ctx context.Context, entityType, canonicalName string) (*types.Entity, error) {
	return nil, nil
}
func (f *fakeConsolidateFactRepo) UpsertClaim(ctx context.Context, claim *types.Claim) (*types.Claim, error) {
	return claim, nil
}
func (f *fakeConsolidateFactRepo) InsertEvidence(ctx context.Context, ev *types.Evidence) error {
	return nil
}
func (f *fakeConsolidateFactRepo) ActiveClaimsBySubjectPredicate(ctx context.Context, subjectEntityID, predicate string) ([]*types.Claim, error) {
	return nil, nil
}
func (f *fakeConsolidateFactRepo) CardinalityOnePredicates(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (f *fakeConsolidateFactRepo) SubjectsWithMultipleActiveValues(ctx context.Context, predicate string) (map[string][]*types.Claim, error) {
	return nil, nil
}
func (f *fakeConsolidateFactRepo) OpenOrCreateContradiction(ctx context.Context, subjectEntityID, predicate string, memberClaimIDs []string) error {
	return nil
}
func (f *fakeConsolidateFactRepo) CountActiveClaims(ctx context.Context) (int64, error) {
	return 0, nil
}
func (f *fakeConsolidateFactRepo) ListDoneUnconsolidated(ctx context.Context, cardRepo interfaces.CardRepository, cursorCardID string, limit int) ([]*types.Source, error) {
	return nil, nil
}
func (f *fakeConsolidateFactRepo) ClaimsForSource(ctx context.Context, sourceID string) ([]*types.Claim, error) {
	return f.claimsBySource[sourceID], nil
}

// TestApplyClaimToCardCreatesBrandNewPrefCard exercises spec.md §8 scenario 1
// ("Seed → extract → consolidate"): a first-touch "Coffee: yes" claim should
// land on a brand-new pref card with strength≈0.50, confidence≈0.70, and
// links to source, chat_log, and claim.
func TestApplyClaimToCardCreatesBrandNewPrefCard(t *testing.T) {
	cards := &fakeConsolidateCardRepo{}
	svc := New(cards, nil)

	src := &types.Source{
		SourceID: "src1",
		Metadata: types.JSONMap{"chat_log_id": "log1"},
	}
	claim := &types.Claim{ClaimID: "claim1", Predicate: "attr.coffee", ObjectLiteral: `"yes"`}

	if err := svc.applyClaimToCard(context.Background(), "v1", "u1", "pref", "coffee", claim, src); err != nil {
		t.Fatalf("applyClaimToCard error: %v", err)
	}

	if len(cards.heads) != 1 {
		t.Fatalf("expected exactly one card to be created, got %d", len(cards.heads))
	}
	head := cards.heads[0]
	if head.Strength < 0.49 || head.Strength > 0.51 {
		t.Fatalf("strength = %v, want ≈0.50", head.Strength)
	}
	if head.Confidence < 0.69 || head.Confidence > 0.71 {
		t.Fatalf("confidence = %v, want ≈0.70", head.Confidence)
	}
	counts := extractValueCounts(head.Payload["value_counts"])
	if counts["yes"] != 1 {
		t.Fatalf("value_counts[yes] = %d, want 1", counts["yes"])
	}

	wantLinks := map[string]string{"source": "src1", "claim": "claim1", "chat_log": "log1"}
	if len(cards.links) != len(wantLinks) {
		t.Fatalf("expected %d links, got %d: %+v", len(wantLinks), len(cards.links), cards.links)
	}
	for _, l := range cards.links {
		if l.CardID != head.CardID {
			t.Fatalf("link %+v points at the wrong card", l)
		}
		if wantLinks[l.LinkType] != l.RefID {
			t.Fatalf("link %s/%s, want ref %s", l.LinkType, l.RefID, wantLinks[l.LinkType])
		}
	}
}

// TestApplyClaimToCardOmitsChatLogLinkWithoutMetadata confirms the chat_log
// link is only added when the source actually carries chat_log_id.
func TestApplyClaimToCardOmitsChatLogLinkWithoutMetadata(t *testing.T) {
	cards := &fakeConsolidateCardRepo{}
	svc := New(cards, nil)

	src := &types.Source{SourceID: "src2"}
	claim := &types.Claim{ClaimID: "claim2", Predicate: "attr.mood", ObjectLiteral: `"calm"`}

	if err := svc.applyClaimToCard(context.Background(), "v1", "u1", "pref", "mood", claim, src); err != nil {
		t.Fatalf("applyClaimToCard error: %v", err)
	}
	for _, l := range cards.links {
		if l.LinkType == "chat_log" {
			t.Fatalf("expected no chat_log link without chat_log_id metadata, got %+v", l)
		}
	}
}

// TestConsolidateSourceSeedsTwoPrefCards exercises the full "Coffee:
// yes\nMood: calm" scenario end to end through consolidateSource.
func TestConsolidateSourceSeedsTwoPrefCards(t *testing.T) {
	cards := &fakeConsolidateCardRepo{}
	facts := &fakeConsolidateFactRepo{claimsBySource: map[string][]*types.Claim{
		"src1": {
			{ClaimID: "c_coffee", Predicate: "attr.coffee", ObjectLiteral: `"yes"`},
			{ClaimID: "c_mood", Predicate: "attr.mood", ObjectLiteral: `"calm"`},
		},
	}}
	svc := New(cards, facts)

	src := &types.Source{SourceID: "src1", Metadata: types.JSONMap{"chat_log_id": "log1"}}
	note, err := svc.consolidateSource(context.Background(), "v1", "u1", src)
	if err != nil {
		t.Fatalf("consolidateSource error: %v", err)
	}
	if note != "ok" {
		t.Fatalf("note = %q, want ok", note)
	}
	if len(cards.heads) != 2 {
		t.Fatalf("expected 2 pref cards (coffee, mood), got %d", len(cards.heads))
	}
	for _, h := range cards.heads {
		if h.Kind != "pref" {
			t.Fatalf("expected kind=pref, got %s", h.Kind)
		}
	}
}

// TestConsolidateSourceSkipsIgnoredAndNonAttrClaims confirms
// ignoredAttrKeys and non-"attr." predicates never produce cards.
func TestConsolidateSourceSkipsIgnoredAndNonAttrClaims(t *testing.T) {
	cards := &fakeConsolidateCardRepo{}
	facts := &fakeConsolidateFactRepo{claimsBySource: map[string][]*types.Claim{
		"src1": {
			{ClaimID: "c1", Predicate: "attr.seedmemory", ObjectLiteral: `"x"`},
			{ClaimID: "c2", Predicate: "rel.knows", ObjectLiteral: `"someone"`},
		},
	}}
	svc := New(cards, facts)

	note, err := svc.consolidateSource(context.Background(), "v1", "u1", &types.Source{SourceID: "src1"})
	if err != nil {
		t.Fatalf("consolidateSource error: %v", err)
	}
	if note != "skip:ignored_attr_keys" {
		t.Fatalf("note = %q, want skip:ignored_attr_keys", note)
	}
	if len(cards.heads) != 0 {
		t.Fatalf("expected no cards created, got %d", len(cards.heads))
	}
}
