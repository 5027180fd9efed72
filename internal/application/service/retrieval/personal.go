package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/vantageplatform/vantage-core/internal/application/service/gravity"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

const (
	personalScanMultiplier = 8
	personalScanFloor      = 40
)

// excludedPersonalSources are sources retrieve_personal_memory never
// surfaces as episodic memory: assistant chat, the gravity/vb-desire daemon
// points, and memory_card style cards.
var excludedPersonalSources = []string{
	"frontend/chat:assistant",
	"gravity_daemon",
	"vb_desire_daemon",
	"memory_card",
}

// promptyMarkers flags instrumentation/test prompts that were logged as
// "frontend/chat:user" but should never be surfaced as real memory.
var promptyMarkers = []string{
	"reply with only", "return exactly", "echo ", "one token", "no punctuation",
	"answer in one sentence", "debug", "preflight_", "memtest:", "memoryseed:", "seedmemory:",
}

var queryTestPrefixes = []string{
	"say exactly:", "return exactly:", "reply with only", "reply with exactly",
	"echo decision", "echo model", "echo threadctx", "memtest:", "memoryseed:",
	"preflight_", "preflight:",
}

var textTestPrefixes = []string{
	"return exactly:", "reply with only", "reply with exactly",
	"echo decision", "echo model", "echo threadctx", "memtest:", "memoryseed:",
	"preflight_", "preflight:",
}

// RetrievePersonalMemory searches memory_raw for episodic hits relevant to
// a user's query, filters out system/instrumentation noise, and rescores
// the survivors with feedback, tag-alignment, and gravity-alignment
// adjustments (spec.md §4.H "personal retrieval").
func (s *Service) RetrievePersonalMemory(ctx context.Context, userID, vantageID, query string, topK int, scoreThreshold float64) ([]Hit, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	vec, err := s.Embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed personal memory query: %w", err)
	}

	queryTags := InferQueryTags(q)
	queryTagSet := toSet(queryTags)

	var gravityWeights map[string]float64
	var vbDesireBias map[string]float64
	if s.Gravity != nil && userID != "" {
		gravityWeights, _ = s.Gravity.LoadGravityProfile(ctx, userID)
		if profile, _ := s.Gravity.LoadVBDesireProfile(ctx, userID); profile != nil {
			vbDesireBias = gravity.VBDesireBiasMap(profile)
		}
	}
	misalignment := 0.0
	if len(gravityWeights) > 0 {
		misalignment = gravity.ComputeMisalignment(queryTags, gravityWeights)
	}

	vid := strings.TrimSpace(vantageID)
	if vid == "" {
		vid = "default"
	}

	var must []interfaces.Condition
	if userID != "" {
		must = append(must, interfaces.Condition{Key: "user_id", MatchValue: userID})
	}
	var mustNot []interfaces.Condition
	for _, src := range excludedPersonalSources {
		mustNot = append(mustNot, interfaces.Condition{Key: "source", MatchValue: src})
	}

	limit := topK * personalScanMultiplier
	if limit < personalScanFloor {
		limit = personalScanFloor
	}

	hits, err := s.Vectors.Search(ctx, interfaces.SearchRequest{
		Collection:     MemoryCollection,
		Vector:         vec,
		Limit:          limit,
		ScoreThreshold: scoreThreshold,
		Filter:         &interfaces.Filter{Must: must, MustNot: mustNot},
	})
	if err != nil {
		return nil, fmt.Errorf("search memory_raw: %w", err)
	}

	qNorm := strings.ToLower(q)
	seenIDs := map[string]bool{}
	seenTexts := map[string]bool{}
	results := make([]Hit, 0, len(hits))

	for _, h := range hits {
		if seenIDs[h.ID] {
			continue
		}
		seenIDs[h.ID] = true

		payload := h.Payload
		if payload == nil {
			payload = map[string]interface{}{}
		}

		// The store has no server-side IsEmpty-OR-match filter for
		// vantage_id (spec.md §4.H "back-compat with legacy points with
		// missing vantage_id"); enforce the namespace here instead.
		pv, _ := payload["vantage_id"].(string)
		if !(pv == vid || ((pv == "" || payload["vantage_id"] == nil) && vid == "default")) {
			continue
		}

		txt := strings.TrimSpace(stringField(payload, "text"))
		txtLow := strings.ToLower(txt)

		queryIsTest := hasAnyPrefix(qNorm, queryTestPrefixes...) || strings.Contains(qNorm, "echo model id")

		src := stringField(payload, "source")
		if !queryIsTest && src != "memory_card" && hasAnyPrefix(txtLow, textTestPrefixes...) {
			continue
		}

		if txtLow == qNorm {
			continue
		}
		if txtLow != "" {
			if seenTexts[txtLow] {
				continue
			}
			seenTexts[txtLow] = true
		}

		if src == "frontend/chat:user" && containsAny(txtLow, promptyMarkers...) {
			continue
		}

		payloadTags := toSet(tagsOf(payload))

		feedbackBonus := clamp(0.05*feedbackNetSignal(payload), -0.5, 0.5)

		tagBonus := 0.0
		if queryTagSet["format:skeleton"] {
			if payloadTags["format:skeleton"] {
				tagBonus += 0.15
			} else if payloadTags["format:prose"] {
				tagBonus -= 0.10
			}
		}
		if queryTagSet["format:prose"] {
			if payloadTags["format:prose"] {
				tagBonus += 0.15
			} else if payloadTags["format:skeleton"] {
				tagBonus -= 0.10
			}
		}
		for tag := range queryTagSet {
			if strings.HasPrefix(tag, "topic:") && payloadTags[tag] {
				tagBonus += 0.08
			}
		}
		for _, intentTag := range intentTags {
			if queryTagSet[intentTag] && payloadTags[intentTag] {
				tagBonus += 0.04
			}
		}

		gravityBonus := 0.0
		if len(gravityWeights) > 0 {
			for tag := range payloadTags {
				if w, ok := gravityWeights[tag]; ok && w != 0 {
					gravityBonus += 0.08 * w
				}
			}
			switch {
			case misalignment > 0.5:
				gravityBonus *= 0.3
			case misalignment > 0.2:
				gravityBonus *= 0.6
			}
		}

		vbBonus := 0.0
		if len(vbDesireBias) > 0 {
			for tag := range payloadTags {
				vbBonus += vbDesireBias[tag]
			}
			vbBonus = clamp(vbBonus, -0.25, 0.25)
		}

		results = append(results, Hit{
			Collection: MemoryCollection,
			ID:         h.ID,
			Score:      h.Score + feedbackBonus + tagBonus + gravityBonus + vbBonus,
			Payload:    payload,
		})
	}

	sortHitsDesc(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

var intentTags = []string{
	"intent:explain", "intent:instruct", "intent:summarize", "intent:analyze",
	"intent:compare", "intent:reflect", "intent:generate", "intent:rewrite", "intent:evaluate",
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func stringField(payload map[string]interface{}, key string) string {
	v, _ := payload[key].(string)
	return v
}

// feedbackNetSignal reads payload.feedback.positive_signals/negative_signals
// and returns their difference (spec.md §4.H "+0.05·(pos−neg) from feedback
// counts, clamped to ±0.5"). Counts round-trip a vector store's JSON as
// float64, so both numeric and pre-decoded int forms are tolerated.
func feedbackNetSignal(payload map[string]interface{}) float64 {
	fb, _ := payload["feedback"].(map[string]interface{})
	if fb == nil {
		return 0
	}
	return numberField(fb, "positive_signals") - numberField(fb, "negative_signals")
}

func numberField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func toSet(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}

// tagsOf reads payload["tags"] union payload["user_tags"], tolerating the
// []interface{} shape a vector store round-trips JSON arrays as.
func tagsOf(payload map[string]interface{}) []string {
	var out []string
	for _, key := range []string{"tags", "user_tags"} {
		switch v := payload[key].(type) {
		case []interface{}:
			for _, item := range v {
				out = append(out, fmt.Sprint(item))
			}
		case []string:
			out = append(out, v...)
		}
	}
	return out
}

func sortHitsDesc(hits []Hit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

