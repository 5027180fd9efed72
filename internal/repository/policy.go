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

type policyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository builds the durable side of the per-vantage policy
// store (component D, spec.md §4.D); the redis TTL cache wraps this.
func NewPolicyRepository(db *gorm.DB) interfaces.PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) Get(ctx context.Context, vantageID string) (types.JSONMap, error) {
	var row types.RAGPolicy
	err := r.db.WithContext(ctx).Where("vantage_id = ?", vantageID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "get rag policy", err)
	}
	return row.Policy, nil
}

func (r *policyRepository) Upsert(ctx context.Context, vantageID string, policy types.JSONMap) error {
	row := types.RAGPolicy{VantageID: vantageID, Policy: policy, UpdatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).Clauses(onConflictUpdatePolicy()).Create(&row).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "upsert rag policy", err)
	}
	return nil
}
