package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type identityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository builds the canonicalization boundary's storage
// adapter (spec.md §1 "every component receives a canonical_user_id").
func NewIdentityRepository(db *gorm.DB) interfaces.IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) Resolve(ctx context.Context, vantageID, aliasUserID string) (string, error) {
	var alias types.UserAlias
	err := r.db.WithContext(ctx).
		Where("vantage_id = ? AND alias_user_id = ?", vantageID, aliasUserID).
		First(&alias).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No alias on file: the alias id is already canonical (spec.md §1
		// "identity resolution is the identity function until a mapping
		// is recorded").
		return aliasUserID, nil
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "resolve identity", err)
	}
	return alias.CanonicalUserID, nil
}

func (r *identityRepository) Alias(ctx context.Context, vantageID, aliasUserID, canonicalUserID string) error {
	alias := types.UserAlias{
		VantageID:       vantageID,
		AliasUserID:     aliasUserID,
		CanonicalUserID: canonicalUserID,
		CreatedAt:       time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(onConflictUpdateCanonical()).Create(&alias).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "alias identity", err)
	}
	return nil
}
