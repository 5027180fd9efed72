// Package retrieval implements component H: query tagging, personal memory
// retrieval against memory_raw, corpus retrieval across curated
// collections, and the personal-then-corpus composition the chat path
// feeds to the model, ported from
// original_source/rag_engine/retriever_unified.py and retriever.py.
package retrieval

import (
	"github.com/redis/go-redis/v9"

	"github.com/vantageplatform/vantage-core/internal/application/service/gravity"
	"github.com/vantageplatform/vantage-core/internal/config"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// MemoryCollection is the episodic/personal-memory collection; it is never
// treated as a corpus collection (spec.md §4.H "IGNORED = {memory_raw}").
const MemoryCollection = "memory_raw"

// Hit is one scored retrieval result, personal or corpus.
type Hit struct {
	Collection string
	ID         string
	Score      float64
	Payload    map[string]interface{}
}

// Service wires the vector store, embedder, gravity profiles, and the
// per-vantage rag_policy store into the retrieval pipeline.
type Service struct {
	Vectors  interfaces.VectorStore
	Embedder interfaces.Embedder
	Gravity  *gravity.Service
	Policy   interfaces.PolicyRepository
	// Redis, when non-nil, backs the rag_policy TTL cache so every process
	// serving a vantage shares one cache instead of each holding its own
	// in-memory copy (spec.md §4.H "RAG_POLICY_TTL_SECONDS"). Nil falls
	// back to an in-process cache, which is sufficient for a single
	// server instance or tests.
	Redis *redis.Client

	DefaultPrimary  []string
	DefaultFallback []string
	PolicyTTL       int // seconds; 0 disables caching
}

// New builds a retrieval Service from the resolved config's corpus
// defaults and policy TTL (spec.md §4.H, §6 rag_policy). redisClient may be
// nil, in which case the policy cache falls back to an in-process map.
func New(vectors interfaces.VectorStore, embedder interfaces.Embedder, grav *gravity.Service, policy interfaces.PolicyRepository, redisClient *redis.Client, cfg config.VantageConfig) *Service {
	return &Service{
		Vectors:         vectors,
		Embedder:        embedder,
		Gravity:         grav,
		Policy:          policy,
		Redis:           redisClient,
		DefaultPrimary:  cfg.CorpusPrimary,
		DefaultFallback: cfg.CorpusFallback,
		PolicyTTL:       cfg.RAGPolicyTTLSeconds,
	}
}

func dedupeKeepOrder(xs []string, skip map[string]bool) []string {
	out := make([]string, 0, len(xs))
	seen := map[string]bool{}
	for _, x := range xs {
		if x == "" || seen[x] || (skip != nil && skip[x]) {
			continue
		}
		seen[x] = true
		out = append(out, x)
	}
	return out
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
