// Package gravity computes and persists each user's gravity profile and
// VB-desire profile: deterministic singleton points in the memory_raw
// vector collection, ported from original_source/rag_engine/gravity.py and
// vb_desire_profile.py (spec.md §4.H "Gravity profile").
package gravity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// MemoryCollection is the vector collection every profile reads from and
// writes its singleton point into.
const MemoryCollection = "memory_raw"

const (
	gravityKind    = "gravity_profile"
	vbDesireKind   = "vb_desire_profile"
	singletonTopic = "__singleton__"
	scrollPageSize = 5000
)

// Service computes gravity/vb-desire profiles from a user's memory_raw
// points and writes the deterministic singleton back.
type Service struct {
	Vectors  interfaces.VectorStore
	Embedder interfaces.Embedder
}

func New(vectors interfaces.VectorStore, embedder interfaces.Embedder) *Service {
	return &Service{Vectors: vectors, Embedder: embedder}
}

func (s *Service) loadUserMemories(ctx context.Context, userID string) ([]map[string]interface{}, error) {
	var out []map[string]interface{}
	points, err := s.Vectors.Scroll(ctx, interfaces.ScrollRequest{
		Collection: MemoryCollection,
		Filter: &interfaces.Filter{
			Must: []interfaces.Condition{{Key: "user_id", MatchValue: userID}},
		},
		Limit: scrollPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("scroll memory_raw for %s: %w", userID, err)
	}
	for _, p := range points {
		if p.Payload != nil {
			out = append(out, p.Payload)
		}
	}
	return out, nil
}

func tagsOf(mem map[string]interface{}) []string {
	raw, _ := mem["tags"].([]interface{})
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

func feedbackCounts(mem map[string]interface{}) (pos, neg int) {
	fb, _ := mem["feedback"].(map[string]interface{})
	if fb == nil {
		return 0, 0
	}
	toInt := func(v interface{}) int {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		default:
			return 0
		}
	}
	return toInt(fb["positive_signals"]), toInt(fb["negative_signals"])
}

// extractStyleModeSignals ports extract_style_mode_signals: style_mode cards
// contribute a strong +0.6 per tag.
func extractStyleModeSignals(memories []map[string]interface{}) map[string]float64 {
	w := map[string]float64{}
	for _, mem := range memories {
		if kind, _ := mem["kind"].(string); kind != "style_mode" {
			continue
		}
		for _, t := range tagsOf(mem) {
			w[t] += 0.6
		}
	}
	return w
}

// extractPreferenceSignals ports extract_preference_signals: medium-strong
// +0.4 per tag on preference/identity cards.
func extractPreferenceSignals(memories []map[string]interface{}) map[string]float64 {
	w := map[string]float64{}
	wanted := map[string]bool{"user_preference": true, "assistant_identity": true, "preference": true}
	for _, mem := range memories {
		kind, _ := mem["kind"].(string)
		if !wanted[kind] {
			continue
		}
		for _, t := range tagsOf(mem) {
			w[t] += 0.4
		}
	}
	return w
}

// extractLongtermVBSignals ports extract_longterm_vb_signals: vb_ontology
// tags are a strong identity indicator (cap 0.5), vb_stance is medium (cap 0.3).
func extractLongtermVBSignals(memories []map[string]interface{}) map[string]float64 {
	counts := map[string]int{}
	for _, mem := range memories {
		for _, t := range tagsOf(mem) {
			if strings.HasPrefix(t, "vb_ontology:") || strings.HasPrefix(t, "vb_stance:") {
				counts[t]++
			}
		}
	}
	w := map[string]float64{}
	for t, c := range counts {
		switch {
		case strings.HasPrefix(t, "vb_ontology:"):
			w[t] = minF(0.5, 0.1*float64(c))
		case strings.HasPrefix(t, "vb_stance:"):
			w[t] = minF(0.3, 0.05*float64(c))
		}
	}
	return w
}

// extractLongtermTagFrequencies ports extract_longterm_tag_frequencies: weak
// influence (scale 0.2) from the overall tag frequency distribution.
func extractLongtermTagFrequencies(memories []map[string]interface{}) map[string]float64 {
	counts := map[string]int{}
	total := 0
	for _, mem := range memories {
		for _, t := range tagsOf(mem) {
			counts[t]++
			total++
		}
	}
	w := map[string]float64{}
	if total == 0 {
		return w
	}
	for t, c := range counts {
		w[t] = (float64(c) / float64(total)) * 0.2
	}
	return w
}

// extractReinforcedPatterns ports extract_reinforced_patterns: ±0.05 per
// feedback signal per tag plus +0.08 per vb_desire tag, clamped to ±0.3.
func extractReinforcedPatterns(memories []map[string]interface{}) map[string]float64 {
	w := map[string]float64{}
	for _, mem := range memories {
		tags := tagsOf(mem)
		pos, neg := feedbackCounts(mem)
		if pos != 0 || neg != 0 {
			delta := 0.05 * float64(pos-neg)
			for _, t := range tags {
				w[t] += delta
			}
		}
		for _, t := range tags {
			if strings.HasPrefix(t, "vb_desire:") {
				w[t] += 0.08
			}
		}
	}
	for t, v := range w {
		w[t] = clamp(v, -0.3, 0.3)
	}
	return w
}

// extractStatisticalBehavior ports extract_statistical_behavior: tag
// frequency over the last 200 memories, scaled to ±0.15.
func extractStatisticalBehavior(memories []map[string]interface{}) map[string]float64 {
	if len(memories) == 0 {
		return map[string]float64{}
	}
	recent := memories
	if len(memories) > 200 {
		recent = memories[len(memories)-200:]
	}
	counts := map[string]int{}
	total := 0
	for _, mem := range recent {
		for _, t := range tagsOf(mem) {
			counts[t]++
			total++
		}
	}
	w := map[string]float64{}
	if total == 0 {
		return w
	}
	for t, c := range counts {
		w[t] = (float64(c) / float64(total)) * 0.15
	}
	return w
}

// ComputeGravity ports compute_gravity verbatim: identity core (55%) +
// reinforced patterns (30%) + recent statistical behavior (15%), clamped to
// [-1, 1].
func (s *Service) ComputeGravity(ctx context.Context, userID string) (map[string]float64, error) {
	memories, err := s.loadUserMemories(ctx, userID)
	if err != nil {
		return nil, err
	}

	identityCore := map[string]float64{}
	for _, m := range []map[string]float64{
		extractStyleModeSignals(memories),
		extractPreferenceSignals(memories),
		extractLongtermVBSignals(memories),
		extractLongtermTagFrequencies(memories),
	} {
		for t, v := range m {
			identityCore[t] = v
		}
	}
	reinforced := extractReinforcedPatterns(memories)
	statBehavior := extractStatisticalBehavior(memories)

	gravity := map[string]float64{}
	for _, mix := range []struct {
		weights map[string]float64
		factor  float64
	}{
		{identityCore, 0.55},
		{reinforced, 0.30},
		{statBehavior, 0.15},
	} {
		for t, v := range mix.weights {
			gravity[t] += v * mix.factor
		}
	}
	for t, v := range gravity {
		gravity[t] = clamp(v, -1.0, 1.0)
	}
	return gravity, nil
}

// ComputeMisalignment ports compute_misalignment verbatim: 0.3 if the query
// tags share no overlap with the gravity profile, else the fraction of the
// overlap whose weight is <= 0.
func ComputeMisalignment(queryTags []string, weights map[string]float64) float64 {
	if len(weights) == 0 || len(queryTags) == 0 {
		return 0.0
	}
	var overlap []string
	for _, t := range queryTags {
		if _, ok := weights[t]; ok {
			overlap = append(overlap, t)
		}
	}
	if len(overlap) == 0 {
		return 0.3
	}
	misaligned := 0
	for _, t := range overlap {
		if weights[t] <= 0 {
			misaligned++
		}
	}
	frac := float64(misaligned) / float64(len(overlap))
	return clamp(frac, 0, 1)
}

func gravitySingletonID(userID string) string {
	return idgen.SingletonCardID(userID, gravityKind)
}

// RebuildGravity recomputes the profile and writes/dedupes the singleton
// point (spec.md §6 "POST /gravity/rebuild").
func (s *Service) RebuildGravity(ctx context.Context, userID string) (map[string]float64, error) {
	weights, err := s.ComputeGravity(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.writeGravityCard(ctx, userID, weights); err != nil {
		return nil, err
	}
	return weights, nil
}

func (s *Service) writeGravityCard(ctx context.Context, userID string, weights map[string]float64) error {
	id := gravitySingletonID(userID)
	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := now
	if existing, err := s.Vectors.Retrieve(ctx, MemoryCollection, []string{id}); err == nil && len(existing) > 0 {
		if c, ok := existing[0].Payload["created_at"].(string); ok && c != "" {
			createdAt = c
		}
	}

	text := fmt.Sprintf("Gravity profile for %s", userID)
	vec, err := s.Embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed gravity profile text: %w", err)
	}

	asInterface := make(map[string]interface{}, len(weights))
	for t, w := range weights {
		asInterface[t] = w
	}

	point := interfaces.Point{
		ID:     id,
		Vector: vec,
		Payload: map[string]interface{}{
			"kind":            gravityKind,
			"topic_key":       singletonTopic,
			"user_id":         userID,
			"weights":         asInterface,
			"tags":            []interface{}{"gravity", "system"},
			"base_importance": 1.0,
			"created_at":      createdAt,
			"updated_at":      now,
			"source":          "gravity_daemon",
			"text":            text,
		},
	}
	if err := s.Vectors.Upsert(ctx, MemoryCollection, []interfaces.Point{point}); err != nil {
		return fmt.Errorf("upsert gravity profile: %w", err)
	}

	deleted, err := s.pruneLegacySingletons(ctx, userID, gravityKind, id)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Infof(ctx, "gravity: deduped %d legacy gravity_profile points for user %s", deleted, userID)
	}
	return nil
}

// pruneLegacySingletons deletes every memory_raw point of the given kind for
// userID except keepID, the way _dedupe_gravity_profile/_dedupe_vb_desire_profile do.
func (s *Service) pruneLegacySingletons(ctx context.Context, userID, kind, keepID string) (int, error) {
	points, err := s.Vectors.Scroll(ctx, interfaces.ScrollRequest{
		Collection: MemoryCollection,
		Filter: &interfaces.Filter{
			Must: []interfaces.Condition{
				{Key: "user_id", MatchValue: userID},
				{Key: "kind", MatchValue: kind},
			},
		},
		Limit: 256,
	})
	if err != nil {
		return 0, fmt.Errorf("scroll legacy %s points for %s: %w", kind, userID, err)
	}
	var legacy []string
	for _, p := range points {
		if p.ID != keepID {
			legacy = append(legacy, p.ID)
		}
	}
	if len(legacy) == 0 {
		return 0, nil
	}
	if err := s.Vectors.Delete(ctx, MemoryCollection, legacy); err != nil {
		return 0, fmt.Errorf("delete legacy %s points for %s: %w", kind, userID, err)
	}
	return len(legacy), nil
}

// LoadGravityProfile loads the gravity_profile singleton's weight map, or an
// empty map if it hasn't been built yet.
func (s *Service) LoadGravityProfile(ctx context.Context, userID string) (map[string]float64, error) {
	id := gravitySingletonID(userID)
	points, err := s.Vectors.Retrieve(ctx, MemoryCollection, []string{id})
	if err != nil {
		return nil, fmt.Errorf("retrieve gravity profile for %s: %w", userID, err)
	}
	if len(points) == 0 {
		return map[string]float64{}, nil
	}
	raw, _ := points[0].Payload["weights"].(map[string]interface{})
	out := make(map[string]float64, len(raw))
	for t, v := range raw {
		if f, ok := v.(float64); ok {
			out[t] = f
		}
	}
	return out, nil
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
