// Package identity implements the canonicalization boundary every write
// path must cross before touching facts, cards, or memory (spec.md §1
// "every write must canonicalize (vantage_id, alias_user_id) before use").
// Grounded on repository.identityRepository; the legacy "sync wrapper
// around async" resolve_canonical_user_id is deliberately modeled as
// uniformly async here per spec.md §9's redesign note, not reproduced.
package identity

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// Service canonicalizes aliased user ids and records new aliases.
type Service struct {
	Repo interfaces.IdentityRepository
}

func New(repo interfaces.IdentityRepository) *Service {
	return &Service{Repo: repo}
}

// Resolve maps (vantage_id, alias_user_id) to its canonical user id. An
// alias with no recorded mapping resolves to itself (the repository's
// identity-function default), so every caller gets a canonical id even on
// a brand-new user's first message.
func (s *Service) Resolve(ctx context.Context, vantageID, aliasUserID string) (string, error) {
	vantageID = strings.TrimSpace(vantageID)
	aliasUserID = strings.TrimSpace(aliasUserID)
	if aliasUserID == "" {
		return "", apperrors.NewBadRequestError("alias_user_id is required")
	}
	if vantageID == "" {
		vantageID = "default"
	}
	canonical, err := s.Repo.Resolve(ctx, vantageID, aliasUserID)
	if err != nil {
		return "", fmt.Errorf("resolve canonical user id: %w", err)
	}
	return canonical, nil
}

// Alias records that aliasUserID now maps to canonicalUserID for this
// vantage, merging an external identity into an existing canonical user
// (spec.md §1 "cards keyed by alias are a bug" — this is how a caller
// avoids that bug after a cross-channel identity merge).
func (s *Service) Alias(ctx context.Context, vantageID, aliasUserID, canonicalUserID string) error {
	vantageID = strings.TrimSpace(vantageID)
	aliasUserID = strings.TrimSpace(aliasUserID)
	canonicalUserID = strings.TrimSpace(canonicalUserID)
	if aliasUserID == "" || canonicalUserID == "" {
		return apperrors.NewBadRequestError("alias_user_id and canonical_user_id are required")
	}
	if vantageID == "" {
		vantageID = "default"
	}
	if err := s.Repo.Alias(ctx, vantageID, aliasUserID, canonicalUserID); err != nil {
		return fmt.Errorf("alias identity: %w", err)
	}
	return nil
}
