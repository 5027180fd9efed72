package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

var ignoredCorpusCollections = map[string]bool{MemoryCollection: true}

type policyCacheEntry struct {
	at     time.Time
	policy types.JSONMap
}

// policyCache is the in-process fallback used when Service.Redis is nil.
var policyCache sync.Map // vantageID -> policyCacheEntry

func policyCacheKey(vantageID string) string {
	return "vantage:rag_policy:" + vantageID
}

// InvalidatePolicyCache evicts a vantage's cached rag_policy document so
// the next retrieval re-fetches it, satisfying policy.CacheInvalidator.
func (s *Service) InvalidatePolicyCache(vantageID string) {
	policyCache.Delete(vantageID)
	if s.Redis != nil {
		if err := s.Redis.Del(context.Background(), policyCacheKey(vantageID)).Err(); err != nil {
			logger.Warnf(context.Background(), "retrieval: evict redis rag_policy cache for %s: %v", vantageID, err)
		}
	}
}

// ragPolicy fetches a vantage's rag_policy document, caching it for
// PolicyTTL seconds the way get_rag_policy does (spec.md §4.H "per-vantage
// overrides ... RAG_POLICY_TTL_SECONDS"). Prefers the shared redis cache
// when one is configured so every server instance sees the same TTL
// window; falls back to an in-process map otherwise.
func (s *Service) ragPolicy(ctx context.Context, vantageID string) types.JSONMap {
	if s.Policy == nil {
		return nil
	}
	ttl := s.PolicyTTL
	if ttl > 0 {
		if pol, ok := s.ragPolicyCacheGet(ctx, vantageID); ok {
			return pol
		}
	}
	pol, err := s.Policy.Get(ctx, vantageID)
	if err != nil {
		return nil
	}
	if ttl > 0 {
		s.ragPolicyCacheSet(ctx, vantageID, pol, time.Duration(ttl)*time.Second)
	}
	return pol
}

func (s *Service) ragPolicyCacheGet(ctx context.Context, vantageID string) (types.JSONMap, bool) {
	if s.Redis != nil {
		raw, err := s.Redis.Get(ctx, policyCacheKey(vantageID)).Bytes()
		if err == nil {
			var pol types.JSONMap
			if json.Unmarshal(raw, &pol) == nil {
				return pol, true
			}
		}
		return nil, false
	}
	if v, ok := policyCache.Load(vantageID); ok {
		entry := v.(policyCacheEntry)
		if time.Since(entry.at) <= time.Duration(s.PolicyTTL)*time.Second {
			return entry.policy, true
		}
	}
	return nil, false
}

func (s *Service) ragPolicyCacheSet(ctx context.Context, vantageID string, pol types.JSONMap, ttl time.Duration) {
	if s.Redis != nil {
		if raw, err := json.Marshal(pol); err == nil {
			if err := s.Redis.Set(ctx, policyCacheKey(vantageID), raw, ttl).Err(); err != nil {
				logger.Warnf(ctx, "retrieval: set redis rag_policy cache for %s: %v", vantageID, err)
			}
		}
		return
	}
	policyCache.Store(vantageID, policyCacheEntry{at: time.Now(), policy: pol})
}

func stringListFromAny(v interface{}) ([]string, bool) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s := strings.TrimSpace(fmt.Sprint(item))
		if s != "" {
			out = append(out, s)
		}
	}
	return out, true
}

// availableCorpusCollections lists every non-memory_raw collection the
// store currently holds (list_collections / _available_corpus_collections).
func (s *Service) availableCorpusCollections(ctx context.Context) map[string]bool {
	names, err := s.Vectors.ListCollections(ctx)
	out := map[string]bool{}
	if err != nil {
		return out
	}
	for _, n := range names {
		if !ignoredCorpusCollections[n] {
			out[n] = true
		}
	}
	return out
}

// RetrieveCorpus searches curated corpus collections for a query, honoring
// per-vantage primary/fallback overrides and topic-keyed overrides from
// rag_policy (spec.md §4.H "corpus retrieval").
func (s *Service) RetrieveCorpus(ctx context.Context, vantageID, query string, topK int, scoreThreshold float64) ([]Hit, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	vec, err := s.Embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed corpus query: %w", err)
	}

	queryTagSet := toSet(InferQueryTags(q))

	vid := strings.TrimSpace(vantageID)
	if vid == "" {
		vid = "default"
	}

	effPrimary := append([]string{}, s.DefaultPrimary...)
	effFallback := append([]string{}, s.DefaultFallback...)
	available := s.availableCorpusCollections(ctx)
	if len(effPrimary) == 0 {
		names := make([]string, 0, len(available))
		for n := range available {
			names = append(names, n)
		}
		sort.Strings(names)
		effPrimary = names
	}

	pol := s.ragPolicy(ctx, vid)
	if list, ok := stringListFromAny(pol["corpus_primary"]); ok {
		effPrimary = list
	}
	if list, ok := stringListFromAny(pol["corpus_fallback"]); ok {
		effFallback = list
	}

	if overrides, ok := pol["topic_overrides"].(map[string]interface{}); ok {
		tags := make([]string, 0, len(queryTagSet))
		for t := range queryTagSet {
			tags = append(tags, t)
		}
		sort.Strings(tags)
		for _, t := range tags {
			if !strings.HasPrefix(t, "topic:") {
				continue
			}
			ov, ok := overrides[t].(map[string]interface{})
			if !ok {
				continue
			}
			if list, ok := stringListFromAny(ov["corpus_primary"]); ok {
				effPrimary = list
			}
			if list, ok := stringListFromAny(ov["corpus_fallback"]); ok {
				effFallback = list
			}
			break
		}
	}

	effPrimary = dedupeKeepOrder(effPrimary, ignoredCorpusCollections)
	skipFallback := map[string]bool{MemoryCollection: true}
	for _, c := range effPrimary {
		skipFallback[c] = true
	}
	effFallback = dedupeKeepOrder(effFallback, skipFallback)

	if len(available) > 0 {
		effPrimary = filterAvailable(effPrimary, available)
		effFallback = filterAvailable(effFallback, available)
	}

	var hitsAll []Hit
	for _, coll := range effPrimary {
		hitsAll = append(hitsAll, s.searchCorpusCollection(ctx, coll, vec, topK, scoreThreshold, queryTagSet)...)
	}
	if len(hitsAll) < topK {
		for _, coll := range effFallback {
			hitsAll = append(hitsAll, s.searchCorpusCollection(ctx, coll, vec, topK, scoreThreshold, queryTagSet)...)
			if len(hitsAll) >= topK {
				break
			}
		}
	}

	sortHitsDesc(hitsAll)
	if len(hitsAll) > topK {
		hitsAll = hitsAll[:topK]
	}
	return hitsAll, nil
}

func (s *Service) searchCorpusCollection(ctx context.Context, collection string, vec []float32, limit int, threshold float64, queryTagSet map[string]bool) []Hit {
	hits, err := s.Vectors.Search(ctx, interfaces.SearchRequest{
		Collection:     collection,
		Vector:         vec,
		Limit:          limit,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return nil
	}
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		payload := h.Payload
		if payload == nil {
			payload = map[string]interface{}{}
		}
		payloadTags := toSet(tagsOf(payload))

		tagBonus := 0.0
		if queryTagSet["format:skeleton"] {
			if payloadTags["format:skeleton"] {
				tagBonus += 0.05
			} else if payloadTags["format:prose"] {
				tagBonus -= 0.02
			}
		}
		if queryTagSet["format:prose"] {
			if payloadTags["format:prose"] {
				tagBonus += 0.05
			} else if payloadTags["format:skeleton"] {
				tagBonus -= 0.02
			}
		}
		if queryTagSet["tone:meta"] && payloadTags["tone:meta"] {
			tagBonus += 0.05
		}
		for _, intentTag := range intentTags {
			if queryTagSet[intentTag] && payloadTags[intentTag] {
				tagBonus += 0.05
			}
		}

		out = append(out, Hit{Collection: collection, ID: h.ID, Score: h.Score + tagBonus, Payload: payload})
	}
	return out
}

func filterAvailable(names []string, available map[string]bool) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if available[n] {
			out = append(out, n)
		}
	}
	return out
}
