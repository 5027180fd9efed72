package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository builds the card engine's storage adapter (spec.md §4.F).
func NewCardRepository(db *gorm.DB) interfaces.CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) GetHead(ctx context.Context, vantageID, kind, topicKey string) (*types.CardHead, error) {
	var head types.CardHead
	err := r.db.WithContext(ctx).
		Where("vantage_id = ? AND kind = ? AND topic_key = ?", vantageID, kind, topicKey).
		First(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "get card head", err)
	}
	return &head, nil
}

func (r *cardRepository) GetHeadByID(ctx context.Context, cardID string) (*types.CardHead, error) {
	var head types.CardHead
	err := r.db.WithContext(ctx).Where("card_id = ?", cardID).First(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("card %q not found", cardID))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "get card head by id", err)
	}
	return &head, nil
}

// UpsertWithRevision appends the revision row then saves the head inside one
// transaction, matching spec.md §5's "revision-before-head" ordering.
func (r *cardRepository) UpsertWithRevision(ctx context.Context, head *types.CardHead, revision *types.CardRevision) error {
	now := time.Now().UTC()
	if head.CardID == "" {
		head.CardID = idgen.New()
	}
	if head.Status == "" {
		head.Status = types.CardActive
	}
	head.UpdatedAt = now
	if revision.RevisionID == "" {
		revision.RevisionID = idgen.New()
	}
	revision.CardID = head.CardID
	revision.CreatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(revision).Error; err != nil {
			return fmt.Errorf("append card revision: %w", err)
		}
		if err := tx.Save(head).Error; err != nil {
			return fmt.Errorf("save card head: %w", err)
		}
		return nil
	})
}

// UpdateDecay persists card_decay_v1's result via a column-scoped update so
// gorm's hook never touches updated_at, distinguishing decay passes from
// real revisions in ListActiveNonSystem's updated_at cursor.
func (r *cardRepository) UpdateDecay(ctx context.Context, cardID string, strength, confidence float64, payload types.JSONMap, revision *types.CardRevision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if revision != nil {
			if revision.RevisionID == "" {
				revision.RevisionID = idgen.New()
			}
			revision.CardID = cardID
			if revision.CreatedAt.IsZero() {
				revision.CreatedAt = time.Now().UTC()
			}
			if err := tx.Create(revision).Error; err != nil {
				return fmt.Errorf("append decay revision: %w", err)
			}
		}
		err := tx.Model(&types.CardHead{}).
			Where("card_id = ?", cardID).
			UpdateColumns(map[string]interface{}{
				"strength":   strength,
				"confidence": confidence,
				"payload":    payload,
			}).Error
		if err != nil {
			return fmt.Errorf("update decayed card: %w", err)
		}
		return nil
	})
}

func (r *cardRepository) LinkIdempotent(ctx context.Context, link *types.CardLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Clauses(onConflictDoNothing("card_id", "link_type", "ref_id")).Create(link).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "link card idempotent", err)
	}
	return nil
}

func (r *cardRepository) HasLink(ctx context.Context, cardID, linkType, refID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.CardLink{}).
		Where("card_id = ? AND link_type = ? AND ref_id = ?", cardID, linkType, refID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindInternal, "check card link", err)
	}
	return count > 0, nil
}

// systemCardKind is the card_head.kind reserved for cursor/bookkeeping
// singleton cards (e.g. the consolidate_kv_v2 cursor); card_decay_v1 never
// touches them.
const systemCardKind = "system"

func (r *cardRepository) ListActiveNonSystem(ctx context.Context, vantageID string, limit int, cursor time.Time) ([]*types.CardHead, error) {
	var heads []*types.CardHead
	err := r.db.WithContext(ctx).
		Where("vantage_id = ? AND status = ? AND kind <> ? AND updated_at > ?",
			vantageID, types.CardActive, systemCardKind, cursor).
		Order("updated_at asc").
		Limit(limit).
		Find(&heads).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "list active cards", err)
	}
	return heads, nil
}

func (r *cardRepository) SignalsSince(ctx context.Context, cardID string, since time.Time) (float64, float64, float64, error) {
	type row struct {
		SignalType types.SignalType
		Total      float64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&types.CardSignal{}).
		Select("signal_type, sum(magnitude) as total").
		Where("card_id_or_key = ? AND created_at >= ?", cardID, since).
		Group("signal_type").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, 0, apperrors.Wrap(apperrors.KindInternal, "aggregate card signals", err)
	}
	var reward, punish, use float64
	for _, rw := range rows {
		switch rw.SignalType {
		case types.SignalReward:
			reward = rw.Total
		case types.SignalPunish, types.SignalCorrection:
			punish += rw.Total
		case types.SignalUse:
			use = rw.Total
		}
	}
	return reward, punish, use, nil
}

func (r *cardRepository) AppendSignal(ctx context.Context, signal *types.CardSignal) error {
	if signal.SignalID == "" {
		signal.SignalID = idgen.New()
	}
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(signal).Error; err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "append card signal", err)
	}
	return nil
}

func (r *cardRepository) DeleteCard(ctx context.Context, cardID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("card_id = ?", cardID).Delete(&types.CardLink{}).Error; err != nil {
			return err
		}
		if err := tx.Where("card_id = ?", cardID).Delete(&types.CardRevision{}).Error; err != nil {
			return err
		}
		if err := tx.Where("card_id_or_key = ?", cardID).Delete(&types.CardSignal{}).Error; err != nil {
			return err
		}
		if err := tx.Where("card_id = ?", cardID).Delete(&types.CardHead{}).Error; err != nil {
			return err
		}
		return nil
	})
}
