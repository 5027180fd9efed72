package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type answerTraceRepository struct {
	db *gorm.DB
}

// NewAnswerTraceRepository builds the answer-trace storage adapter
// (spec.md §4.L, feedback resolution path).
func NewAnswerTraceRepository(db *gorm.DB) interfaces.AnswerTraceRepository {
	return &answerTraceRepository{db: db}
}

func (r *answerTraceRepository) Insert(ctx context.Context, trace *types.AnswerTrace) error {
	if trace.CreatedAt.IsZero() {
		trace.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(trace).Error; err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "insert answer trace", err)
	}
	return nil
}

func (r *answerTraceRepository) Get(ctx context.Context, answerID string) (*types.AnswerTrace, error) {
	var trace types.AnswerTrace
	err := r.db.WithContext(ctx).Where("answer_id = ?", answerID).First(&trace).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("answer trace %q not found", answerID))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "get answer trace", err)
	}
	return &trace, nil
}
