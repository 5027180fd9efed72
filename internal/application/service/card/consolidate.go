// Package card implements the card engine (spec.md §4.F): KV-claim
// consolidation into stable per-user topic cards, cursor bookkeeping, and
// incremental signal-aware decay.
package card

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// ignoredAttrKeys are harness-noise attr keys excluded from pref cards
// (spec.md §4.F "card_consolidate_kv_v1").
var ignoredAttrKeys = map[string]bool{
	"return_exactly": true,
	"say_exactly":    true,
	"seedmemory":     true,
	"seed_note":      true,
	"threadctx":      true,
	"audit":          true,
}

const cursorConsolidateKind = "system"
const cursorConsolidateTopic = "consolidate_kv_v2_cursor"

// Service drives card_consolidate_kv_v1 and card_decay_v1.
type Service struct {
	Cards interfaces.CardRepository
	Facts interfaces.FactRepository
}

func New(cards interfaces.CardRepository, facts interfaces.FactRepository) *Service {
	return &Service{Cards: cards, Facts: facts}
}

// ConsolidateKV runs one card_consolidate_kv_v1 pass for a vantage, folding
// claims from newest `done` sources not yet linked to the cursor card
// (spec.md §4.F).
func (s *Service) ConsolidateKV(ctx context.Context, vantageID, canonicalUserID string, limit int) (processed int, err error) {
	cursorCard, err := s.Cards.GetHead(ctx, vantageID, cursorConsolidateKind, cursorConsolidateTopic)
	if err != nil {
		return 0, fmt.Errorf("load consolidate cursor: %w", err)
	}
	var cursorCardID string
	if cursorCard != nil {
		cursorCardID = cursorCard.CardID
	}

	sources, err := s.Facts.ListDoneUnconsolidated(ctx, s.Cards, cursorCardID, limit)
	if err != nil {
		return 0, fmt.Errorf("list unconsolidated sources: %w", err)
	}

	var lastCreatedAt time.Time
	for _, src := range sources {
		note, procErr := s.consolidateSource(ctx, vantageID, canonicalUserID, src)
		if procErr != nil {
			return processed, fmt.Errorf("consolidate source %s: %w", src.SourceID, procErr)
		}
		if err := s.Cards.LinkIdempotent(ctx, &types.CardLink{
			CardID:   s.cursorCardID(cursorCard, vantageID),
			LinkType: "source",
			RefID:    src.SourceID,
			Note:     note,
		}); err != nil {
			return processed, fmt.Errorf("link cursor to source: %w", err)
		}
		processed++
		if src.CreatedAt.After(lastCreatedAt) {
			lastCreatedAt = src.CreatedAt
		}
	}

	if processed > 0 {
		if err := s.advanceCursor(ctx, vantageID, cursorCard, lastCreatedAt, processed); err != nil {
			return processed, fmt.Errorf("advance cursor: %w", err)
		}
	}
	return processed, nil
}

func (s *Service) cursorCardID(cursorCard *types.CardHead, vantageID string) string {
	if cursorCard != nil {
		return cursorCard.CardID
	}
	return idgen.TopicCardID(vantageID, cursorConsolidateKind, cursorConsolidateTopic)
}

func (s *Service) advanceCursor(ctx context.Context, vantageID string, cursorCard *types.CardHead, lastCreatedAt time.Time, batch int) error {
	head := cursorCard
	if head == nil {
		head = &types.CardHead{
			VantageID: vantageID,
			Kind:      cursorConsolidateKind,
			TopicKey:  cursorConsolidateTopic,
			Payload:   types.JSONMap{},
			Strength:  1.0,
			Confidence: 1.0,
		}
	}
	payload := head.Payload
	if payload == nil {
		payload = types.JSONMap{}
	}
	payload["last_source_created_at"] = lastCreatedAt.UTC().Format(time.RFC3339)
	payload["last_batch_size"] = batch
	head.Payload = payload
	head.Summary = fmt.Sprintf("consolidate_kv_v2 cursor: %d sources in last batch", batch)

	revision := &types.CardRevision{
		Summary: head.Summary,
		Payload: payload,
		Reason:  "consolidate_kv_v2_cursor_advance",
	}
	return s.Cards.UpsertWithRevision(ctx, head, revision)
}

// consolidateSource folds one source's claims into the relevant pref/audit
// cards, returning the cursor-link note.
func (s *Service) consolidateSource(ctx context.Context, vantageID, canonicalUserID string, src *types.Source) (string, error) {
	claims, err := s.Facts.ClaimsForSource(ctx, src.SourceID)
	if err != nil {
		return "", err
	}
	if len(claims) == 0 {
		return "skip:no_doc_entity", nil
	}

	var attrClaims []*types.Claim
	for _, c := range claims {
		if strings.HasPrefix(c.Predicate, "attr.") {
			attrClaims = append(attrClaims, c)
		}
	}
	if len(attrClaims) == 0 {
		return "skip:no_attr_claims", nil
	}

	processedAny := false
	for _, claim := range attrClaims {
		attrKey := strings.TrimPrefix(claim.Predicate, "attr.")
		kind := "pref"
		if attrKey == "audit" {
			kind = "audit"
		} else if ignoredAttrKeys[attrKey] {
			continue
		}

		if err := s.applyClaimToCard(ctx, vantageID, canonicalUserID, kind, attrKey, claim, src); err != nil {
			return "", err
		}
		processedAny = true
	}

	if !processedAny {
		return "skip:ignored_attr_keys", nil
	}
	return "ok", nil
}

func (s *Service) applyClaimToCard(ctx context.Context, vantageID, canonicalUserID, kind, attrKey string, claim *types.Claim, src *types.Source) error {
	topicKey := fmt.Sprintf("user/%s/%s/%s", canonicalUserID, kind, attrKey)
	head, err := s.Cards.GetHead(ctx, vantageID, kind, topicKey)
	if err != nil {
		return err
	}

	val := unquoteJSONLiteral(claim.ObjectLiteral)

	payload := types.JSONMap{}
	oldStrength, oldConfidence := 0.5, 0.5
	var prevValue string
	if head != nil {
		if head.Payload != nil {
			payload = head.Payload
		}
		oldStrength = head.Strength
		oldConfidence = head.Confidence
		if cv, ok := payload["current_value"].(string); ok {
			prevValue = cv
		}
	}

	counts := extractValueCounts(payload["value_counts"])
	counts[val]++
	payload["value_counts"] = countsToMap(counts)
	payload["current_value"] = val
	payload["last_seen_at"] = time.Now().UTC().Format(time.RFC3339)

	totalN := 0
	topN := 0
	for _, n := range counts {
		totalN += n
		if n > topN {
			topN = n
		}
	}
	if totalN < 1 {
		totalN = 1
	}
	pTop := float64(topN) / float64(totalN)

	strengthTarget := clamp01(0.50 + 0.35*math.Min(1, float64(totalN-1)/10))
	newStrength := math.Max(oldStrength, strengthTarget)

	confTarget := clamp01(0.30 + 0.40*pTop + 0.30*math.Min(1, float64(totalN-1)/5))
	newConfidence := clamp01(0.7*oldConfidence + 0.3*confTarget)
	if prevValue != "" && prevValue != val {
		newConfidence *= 0.85
	}

	if head == nil {
		head = &types.CardHead{VantageID: vantageID, Kind: kind, TopicKey: topicKey}
		// A brand-new card has no prior confidence to blend from.
		newConfidence = confTarget
	}
	head.Payload = payload
	head.Strength = round3(newStrength)
	head.Confidence = round3(clamp01(newConfidence))
	head.Summary = fmt.Sprintf("%s/%s: %s\nseen: %s", kind, attrKey, val, topHistogram(counts, 5))

	revision := &types.CardRevision{
		Summary: head.Summary,
		Payload: payload,
		Reason:  "consolidate_kv_v2",
		Delta:   types.JSONMap{"value": val, "source_id": src.SourceID},
	}
	if err := s.Cards.UpsertWithRevision(ctx, head, revision); err != nil {
		return err
	}

	links := []types.CardLink{
		{CardID: head.CardID, LinkType: "source", RefID: src.SourceID},
		{CardID: head.CardID, LinkType: "claim", RefID: claim.ClaimID},
	}
	if chatLogID, ok := src.Metadata["chat_log_id"].(string); ok && chatLogID != "" {
		links = append(links, types.CardLink{CardID: head.CardID, LinkType: "chat_log", RefID: chatLogID})
	}
	for _, l := range links {
		lnk := l
		if err := s.Cards.LinkIdempotent(ctx, &lnk); err != nil {
			return err
		}
	}
	return nil
}

func unquoteJSONLiteral(literal string) string {
	s := strings.TrimSpace(literal)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func extractValueCounts(raw interface{}) map[string]int {
	counts := map[string]int{}
	switch v := raw.(type) {
	case map[string]int:
		for k, n := range v {
			counts[k] = n
		}
	case map[string]interface{}:
		for k, n := range v {
			switch num := n.(type) {
			case float64:
				counts[k] = int(num)
			case int:
				counts[k] = num
			}
		}
	}
	return counts
}

func countsToMap(counts map[string]int) map[string]interface{} {
	out := make(map[string]interface{}, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}

func topHistogram(counts map[string]int, n int) string {
	type kv struct {
		K string
		V int
	}
	kvs := make([]kv, 0, len(counts))
	for k, v := range counts {
		kvs = append(kvs, kv{k, v})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].V != kvs[j].V {
			return kvs[i].V > kvs[j].V
		}
		return kvs[i].K < kvs[j].K
	})
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	parts := make([]string, 0, len(kvs))
	for _, e := range kvs {
		parts = append(parts, fmt.Sprintf("%s=%d", e.K, e.V))
	}
	return strings.Join(parts, ", ")
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
