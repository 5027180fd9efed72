package gravity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

const vbDesireScanLimit = 5000

type bucket struct {
	count, pos, neg float64
}

// scoreBucket ports _score_bucket: (pos-neg)/max(2, count+2), a smoothed
// score that keeps small samples from being extreme. The result is not
// clamped, so summed feedback larger than count+2 yields a magnitude above 1.
func scoreBucket(b bucket) float64 {
	denom := b.count + 2.0
	if denom < 2.0 {
		denom = 2.0
	}
	return (b.pos - b.neg) / denom
}

// BucketRow is one scored entry in a vb-desire request_patterns bucket.
type BucketRow struct {
	Key                string  `json:"key"`
	Count              int     `json:"count"`
	PositiveFeedback   int     `json:"positive_feedback"`
	NegativeFeedback   int     `json:"negative_feedback"`
	Score              float64 `json:"score"`
}

func topN(buckets map[string]*bucket, n int) []BucketRow {
	rows := make([]BucketRow, 0, len(buckets))
	for k, b := range buckets {
		rows = append(rows, BucketRow{
			Key:              k,
			Count:            int(b.count),
			PositiveFeedback: int(b.pos),
			NegativeFeedback: int(b.neg),
			Score:            round4(scoreBucket(*b)),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Count > rows[j].Count
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

// InferredPreferences ports _infer_preferences's output shape.
type InferredPreferences struct {
	PreferredAnswerLength     string            `json:"preferred_answer_length"`
	PreferredDensity          string            `json:"preferred_density"`
	PreferredFormatDefault    string            `json:"preferred_format_default"`
	PreferredFormatOverrides  map[string]string `json:"preferred_format_overrides"`
	Avoidances                []string          `json:"avoidances"`
}

func inferPreferences(intents, formats, topics []BucketRow) InferredPreferences {
	out := InferredPreferences{
		PreferredAnswerLength:    "unspecified",
		PreferredDensity:         "unspecified",
		PreferredFormatDefault:   "unspecified",
		PreferredFormatOverrides: map[string]string{},
	}
	if len(formats) > 0 {
		best := formats[0].Key
		if idx := strings.Index(best, ":"); idx >= 0 {
			out.PreferredFormatDefault = best[idx+1:]
		} else {
			out.PreferredFormatDefault = best
		}
	}
	for _, r := range intents {
		if r.Key == "intent:summarize" && r.Score > 0 {
			out.PreferredAnswerLength = "short"
		}
		if r.Key == "intent:analyze" && r.Score > 0 {
			out.PreferredDensity = "high"
		}
		if r.Score < -0.1 {
			out.Avoidances = append(out.Avoidances, r.Key)
		}
	}
	if len(out.Avoidances) > 5 {
		out.Avoidances = out.Avoidances[:5]
	}
	for _, t := range topics {
		if t.Key == "topic:workout" && out.PreferredFormatDefault == "skeleton" {
			out.PreferredFormatOverrides["workout"] = "skeleton"
		}
	}
	return out
}

// VBDesireProfile is the payload shape of the vb_desire_profile singleton.
type VBDesireProfile struct {
	Kind            string                 `json:"kind"`
	TopicKey        string                 `json:"topic_key"`
	UserID          string                 `json:"user_id"`
	Tags            []string               `json:"tags"`
	SourceStats     map[string]interface{} `json:"source_stats"`
	RequestPatterns map[string]interface{} `json:"request_patterns"`
	Inferred        InferredPreferences    `json:"inferred_preferences"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
	Source          string                 `json:"source"`
	Text            string                 `json:"text"`
}

// BuildVBDesireProfile ports build_vb_desire_profile verbatim: scans a
// user's memory_raw points and buckets intent/format/topic tags by
// feedback-weighted score.
func (s *Service) BuildVBDesireProfile(ctx context.Context, userID string) (*VBDesireProfile, error) {
	points, err := s.Vectors.Scroll(ctx, interfaces.ScrollRequest{
		Collection: MemoryCollection,
		Filter: &interfaces.Filter{
			Must: []interfaces.Condition{{Key: "user_id", MatchValue: userID}},
		},
		Limit: vbDesireScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("scroll memory_raw for vb_desire %s: %w", userID, err)
	}

	intents := map[string]*bucket{}
	formats := map[string]*bucket{}
	topics := map[string]*bucket{}

	totalUtterances := 0
	totalFeedbackEvents := 0

	for _, p := range points {
		if p.Payload == nil {
			continue
		}
		tags := tagsOf(p.Payload)
		pos, neg := feedbackCounts(p.Payload)
		if pos != 0 || neg != 0 {
			totalFeedbackEvents += pos + neg
		}
		totalUtterances++

		for _, t := range tags {
			switch {
			case strings.HasPrefix(t, "intent:"):
				incBucket(intents, t, pos, neg)
			case strings.HasPrefix(t, "format:"):
				incBucket(formats, t, pos, neg)
			case strings.HasPrefix(t, "topic:"):
				incBucket(topics, t, pos, neg)
			}
		}
	}

	intentsTop := topN(intents, 5)
	formatsTop := topN(formats, 5)
	topicsTop := topN(topics, 5)
	inferred := inferPreferences(intentsTop, formatsTop, topicsTop)

	now := time.Now().UTC().Format(time.RFC3339)
	profile := &VBDesireProfile{
		Kind:     vbDesireKind,
		TopicKey: singletonTopic,
		UserID:   userID,
		Tags:     []string{"card", "vb_profile", "desire"},
		SourceStats: map[string]interface{}{
			"total_utterances":       totalUtterances,
			"total_feedback_events":  totalFeedbackEvents,
			"sample_limit":           vbDesireScanLimit,
		},
		RequestPatterns: map[string]interface{}{
			"by_intent": intentsTop,
			"by_format": formatsTop,
			"by_topic":  topicsTop,
		},
		Inferred:  inferred,
		CreatedAt: now,
		UpdatedAt: now,
		Source:    "vb_desire_daemon",
		Text:      fmt.Sprintf("VB desire profile for %s", userID),
	}
	return profile, nil
}

func incBucket(buckets map[string]*bucket, key string, pos, neg int) {
	b, ok := buckets[key]
	if !ok {
		b = &bucket{}
		buckets[key] = b
	}
	b.count++
	b.pos += float64(pos)
	b.neg += float64(neg)
}

func vbDesireSingletonID(userID string) string {
	return idgen.SingletonCardID(userID, vbDesireKind)
}

// RebuildVBDesire recomputes and writes the vb_desire_profile singleton,
// pruning legacy duplicates (spec.md §6 "POST /vb_desire/rebuild").
func (s *Service) RebuildVBDesire(ctx context.Context, userID string) (*VBDesireProfile, error) {
	profile, err := s.BuildVBDesireProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.writeVBDesireCard(ctx, userID, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) writeVBDesireCard(ctx context.Context, userID string, profile *VBDesireProfile) error {
	id := vbDesireSingletonID(userID)
	if existing, err := s.Vectors.Retrieve(ctx, MemoryCollection, []string{id}); err == nil && len(existing) > 0 {
		if c, ok := existing[0].Payload["created_at"].(string); ok && c != "" {
			profile.CreatedAt = c
		}
	}

	vec, err := s.Embedder.Embed(ctx, profile.Text)
	if err != nil {
		return fmt.Errorf("embed vb_desire profile text: %w", err)
	}

	payload := map[string]interface{}{
		"kind":             profile.Kind,
		"topic_key":        profile.TopicKey,
		"user_id":          profile.UserID,
		"tags":             toInterfaceSlice(profile.Tags),
		"source_stats":     profile.SourceStats,
		"request_patterns": profile.RequestPatterns,
		"inferred_preferences": map[string]interface{}{
			"preferred_answer_length":    profile.Inferred.PreferredAnswerLength,
			"preferred_density":          profile.Inferred.PreferredDensity,
			"preferred_format_default":   profile.Inferred.PreferredFormatDefault,
			"preferred_format_overrides": profile.Inferred.PreferredFormatOverrides,
			"avoidances":                 toInterfaceSlice(profile.Inferred.Avoidances),
		},
		"created_at": profile.CreatedAt,
		"updated_at": profile.UpdatedAt,
		"source":     profile.Source,
		"text":       profile.Text,
	}

	point := interfaces.Point{ID: id, Vector: vec, Payload: payload}
	if err := s.Vectors.Upsert(ctx, MemoryCollection, []interfaces.Point{point}); err != nil {
		return fmt.Errorf("upsert vb_desire profile: %w", err)
	}

	deleted, err := s.pruneLegacySingletons(ctx, userID, vbDesireKind, id)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Infof(ctx, "vb_desire: deduped %d legacy vb_desire_profile points for user %s", deleted, userID)
	}
	return nil
}

// LoadVBDesireProfile loads the singleton's raw payload, or nil if it
// hasn't been built yet.
func (s *Service) LoadVBDesireProfile(ctx context.Context, userID string) (map[string]interface{}, error) {
	id := vbDesireSingletonID(userID)
	points, err := s.Vectors.Retrieve(ctx, MemoryCollection, []string{id})
	if err != nil {
		return nil, fmt.Errorf("retrieve vb_desire profile for %s: %w", userID, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return points[0].Payload, nil
}

// VBDesireBiasMap ports vb_desire_bias_map verbatim: small per-tag nudges
// from a user's desire profile, clamped to ±0.25.
func VBDesireBiasMap(profile map[string]interface{}) map[string]float64 {
	bias := map[string]float64{}
	rp, _ := profile["request_patterns"].(map[string]interface{})
	if rp == nil {
		return bias
	}
	var rows []map[string]interface{}
	for _, key := range []string{"by_intent", "by_format", "by_topic"} {
		if list, ok := rp[key].([]interface{}); ok {
			for _, item := range list {
				if m, ok := item.(map[string]interface{}); ok {
					rows = append(rows, m)
				}
			}
		} else if list, ok := rp[key].([]BucketRow); ok {
			for _, r := range list {
				rows = append(rows, map[string]interface{}{"key": r.Key, "score": r.Score})
			}
		}
	}

	for _, r := range rows {
		k, _ := r["key"].(string)
		if k == "" {
			continue
		}
		score, _ := r["score"].(float64)
		score = clamp(score, -1, 1)

		switch {
		case strings.HasPrefix(k, "format:"):
			bias[k] += 0.12 * score
		case strings.HasPrefix(k, "topic:"):
			bias[k] += 0.10 * score
		case strings.HasPrefix(k, "intent:"):
			bias[k] += 0.06 * score
		}
	}
	for k := range bias {
		bias[k] = clamp(bias[k], -0.25, 0.25)
	}
	return bias
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
