// Package policy wraps the per-vantage rag_policy CRUD surface
// (spec.md §6 GET/POST /vantage/rag_policy), grounded on
// repository.policyRepository. The retrieval engine keeps its own
// read-side TTL cache of this document (spec.md §4.H); writes here must
// invalidate that cache so a policy update takes effect without waiting
// out RAG_POLICY_TTL_SECONDS.
package policy

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// CacheInvalidator lets the policy service evict a vantage's cached
// rag_policy document after a write, without the policy package depending
// on the retrieval package directly.
type CacheInvalidator interface {
	InvalidatePolicyCache(vantageID string)
}

// Service is the CRUD wrapper around the durable rag_policy store.
type Service struct {
	Repo  interfaces.PolicyRepository
	Cache CacheInvalidator
}

func New(repo interfaces.PolicyRepository, cache CacheInvalidator) *Service {
	return &Service{Repo: repo, Cache: cache}
}

// Get returns a vantage's rag_policy document, or nil if none is on file
// (the retrieval engine then falls back to its configured defaults).
func (s *Service) Get(ctx context.Context, vantageID string) (types.JSONMap, error) {
	vantageID = strings.TrimSpace(vantageID)
	if vantageID == "" {
		return nil, apperrors.NewBadRequestError("vantage_id is required")
	}
	policy, err := s.Repo.Get(ctx, vantageID)
	if err != nil {
		return nil, fmt.Errorf("get rag policy: %w", err)
	}
	return policy, nil
}

// Upsert replaces a vantage's rag_policy document and invalidates the
// retrieval engine's cached copy.
func (s *Service) Upsert(ctx context.Context, vantageID string, policy types.JSONMap) error {
	vantageID = strings.TrimSpace(vantageID)
	if vantageID == "" {
		return apperrors.NewBadRequestError("vantage_id is required")
	}
	if err := s.Repo.Upsert(ctx, vantageID, policy); err != nil {
		return fmt.Errorf("upsert rag policy: %w", err)
	}
	if s.Cache != nil {
		s.Cache.InvalidatePolicyCache(vantageID)
	}
	return nil
}
