package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type factRepository struct {
	db *gorm.DB
}

// NewFactRepository builds the fact pipeline's storage adapter (spec.md §4.E).
func NewFactRepository(db *gorm.DB) interfaces.FactRepository {
	return &factRepository{db: db}
}

func (r *factRepository) InsertSourceIfAbsent(ctx context.Context, src *types.Source) (bool, error) {
	if src.SourceID == "" {
		src.SourceID = idgen.New()
	}
	if src.Status == "" {
		src.Status = types.SourcePending
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).Clauses(onConflictDoNothing("external_id")).Create(src)
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.KindInternal, "insert source if absent", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ClaimNextPendingSource grabs one pending source and flips it to processing
// under a row lock, mirroring the Initiator's claim protocol for worker job
// bodies that iterate over source backlog (spec.md §4.E "fact_extract_v1").
func (r *factRepository) ClaimNextPendingSource(ctx context.Context) (*types.Source, error) {
	var src types.Source
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Set("gorm:query_option", "FOR UPDATE SKIP LOCKED").
			Where("status = ?", types.SourcePending).
			Order("created_at asc").
			First(&src).Error
		if err != nil {
			return err
		}
		src.Status = types.SourceProcessing
		return tx.Save(&src).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "claim next pending source", err)
	}
	return &src, nil
}

func (r *factRepository) MarkSourceDone(ctx context.Context, sourceID string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&types.Source{}).
		Where("source_id = ?", sourceID).
		Updates(map[string]interface{}{"status": types.SourceDone, "processed_at": now}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "mark source done", err)
	}
	return nil
}

func (r *factRepository) MarkSourceError(ctx context.Context, sourceID, errText string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&types.Source{}).
		Where("source_id = ?", sourceID).
		Updates(map[string]interface{}{"status": types.SourceError, "processed_at": now, "metadata": types.JSONMap{"last_error": errText}}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "mark source error", err)
	}
	return nil
}

func (r *factRepository) SetSourceContentSHA256(ctx context.Context, sourceID, sha256 string) error {
	err := r.db.WithContext(ctx).Model(&types.Source{}).
		Where("source_id = ?", sourceID).
		Update("content_sha256", sha256).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "set source content sha256", err)
	}
	return nil
}

func (r *factRepository) CountPendingSources(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.Source{}).
		Where("status = ?", types.SourcePending).Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "count pending sources", err)
	}
	return count, nil
}

func (r *factRepository) GetOrCreateEntity(ctx context.Context, entityType, canonicalName string) (*types.Entity, error) {
	var entity types.Entity
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND canonical_name = ?", entityType, canonicalName).
		First(&entity).Error
	if err == nil {
		return &entity, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.KindInternal, "lookup entity", err)
	}
	entity = types.Entity{
		EntityID:      idgen.New(),
		EntityType:    entityType,
		CanonicalName: canonicalName,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(onConflictDoNothing("entity_type", "canonical_name")).Create(&entity).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "create entity", err)
	}
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND canonical_name = ?", entityType, canonicalName).
		First(&entity).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "reload entity after create", err)
	}
	return &entity, nil
}

// UpsertClaim inserts a new claim or reconfirms an existing one by
// canonical_key, bumping confidence/updated_at without creating a duplicate
// active row (spec.md §4.E "claim upsert by canonical key").
func (r *factRepository) UpsertClaim(ctx context.Context, claim *types.Claim) (*types.Claim, error) {
	if claim.ClaimID == "" {
		claim.ClaimID = idgen.New()
	}
	if claim.Status == "" {
		claim.Status = types.ClaimActive
	}
	now := time.Now().UTC()
	claim.UpdatedAt = now
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}

	var existing types.Claim
	err := r.db.WithContext(ctx).Where("canonical_key = ?", claim.CanonicalKey).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(claim).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "insert claim", err)
		}
		return claim, nil
	case err != nil:
		return nil, apperrors.Wrap(apperrors.KindInternal, "lookup claim by canonical key", err)
	default:
		existing.Confidence = claim.Confidence
		existing.Status = types.ClaimActive
		existing.UpdatedAt = now
		if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "reconfirm claim", err)
		}
		return &existing, nil
	}
}

func (r *factRepository) InsertEvidence(ctx context.Context, ev *types.Evidence) error {
	if ev.EvidenceID == "" {
		ev.EvidenceID = idgen.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "insert evidence", err)
	}
	return nil
}

func (r *factRepository) ActiveClaimsBySubjectPredicate(ctx context.Context, subjectEntityID, predicate string) ([]*types.Claim, error) {
	var claims []*types.Claim
	err := r.db.WithContext(ctx).
		Where("subject_entity_id = ? AND predicate = ? AND status = ?", subjectEntityID, predicate, types.ClaimActive).
		Order("updated_at desc").
		Find(&claims).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "list active claims", err)
	}
	return claims, nil
}

func (r *factRepository) CardinalityOnePredicates(ctx context.Context) ([]string, error) {
	var preds []string
	err := r.db.WithContext(ctx).Model(&types.Predicate{}).
		Where("cardinality = ?", types.CardinalityOne).
		Pluck("predicate", &preds).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "list cardinality-one predicates", err)
	}
	return preds, nil
}

// SubjectsWithMultipleActiveValues finds, for a cardinality-one predicate,
// every subject holding more than one distinct active object_literal
// (spec.md §4.E "contradiction detection").
func (r *factRepository) SubjectsWithMultipleActiveValues(ctx context.Context, predicate string) (map[string][]*types.Claim, error) {
	var subjectIDs []string
	err := r.db.WithContext(ctx).Model(&types.Claim{}).
		Select("subject_entity_id").
		Where("predicate = ? AND status = ?", predicate, types.ClaimActive).
		Group("subject_entity_id").
		Having("count(distinct object_literal) > 1").
		Pluck("subject_entity_id", &subjectIDs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "find contradictory subjects", err)
	}
	if len(subjectIDs) == 0 {
		return map[string][]*types.Claim{}, nil
	}
	var claims []*types.Claim
	err = r.db.WithContext(ctx).
		Where("predicate = ? AND status = ? AND subject_entity_id IN ?", predicate, types.ClaimActive, subjectIDs).
		Find(&claims).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "load contradictory claims", err)
	}
	out := make(map[string][]*types.Claim, len(subjectIDs))
	for _, c := range claims {
		out[c.SubjectEntityID] = append(out[c.SubjectEntityID], c)
	}
	return out, nil
}

func (r *factRepository) OpenOrCreateContradiction(ctx context.Context, subjectEntityID, predicate string, memberClaimIDs []string) error {
	var existing types.Contradiction
	err := r.db.WithContext(ctx).
		Where("subject_entity_id = ? AND predicate = ? AND status = ?", subjectEntityID, predicate, types.ContradictionOpen).
		First(&existing).Error
	now := time.Now().UTC()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c := types.Contradiction{
			ContradictionID: idgen.New(),
			SubjectEntityID: subjectEntityID,
			Predicate:       predicate,
			Status:          types.ContradictionOpen,
			Members:         types.JSONStringSlice(memberClaimIDs),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "create contradiction", err)
		}
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "lookup open contradiction", err)
	}
	existing.Members = types.JSONStringSlice(memberClaimIDs)
	existing.UpdatedAt = now
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "update contradiction members", err)
	}
	return nil
}

func (r *factRepository) CountActiveClaims(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.Claim{}).
		Where("status = ?", types.ClaimActive).Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "count active claims", err)
	}
	return count, nil
}

// ListDoneUnconsolidated returns sources already processed into claims but
// not yet folded into the card consolidation cursor, keyed by the card
// engine's cursor card (spec.md §4.F "card_consolidate_kv_v1"). Since the
// consolidation cursor lives on a card, not a source, this walks done
// sources newer than the cursor's creation time.
func (r *factRepository) ListDoneUnconsolidated(ctx context.Context, cardRepo interfaces.CardRepository, cursorCardID string, limit int) ([]*types.Source, error) {
	var since time.Time
	if cursorCardID != "" {
		cursor, err := cardRepo.GetHeadByID(ctx, cursorCardID)
		if err == nil && cursor != nil {
			if ts, ok := cursor.Payload["last_source_created_at"].(string); ok {
				if parsed, perr := time.Parse(time.RFC3339, ts); perr == nil {
					since = parsed
				}
			}
		}
	}
	var sources []*types.Source
	q := r.db.WithContext(ctx).Where("status = ?", types.SourceDone)
	if !since.IsZero() {
		q = q.Where("created_at > ?", since)
	}
	err := q.Order("created_at asc").Limit(limit).Find(&sources).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "list unconsolidated sources", err)
	}
	return sources, nil
}

func (r *factRepository) ClaimsForSource(ctx context.Context, sourceID string) ([]*types.Claim, error) {
	var claimIDs []string
	err := r.db.WithContext(ctx).Model(&types.Evidence{}).
		Select("claim_id").
		Where("source_id = ?", sourceID).
		Pluck("claim_id", &claimIDs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "list claim ids for source", err)
	}
	if len(claimIDs) == 0 {
		return nil, nil
	}
	var claims []*types.Claim
	err = r.db.WithContext(ctx).Where("claim_id IN ? AND status = ?", claimIDs, types.ClaimActive).Find(&claims).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "load claims for source", err)
	}
	return claims, nil
}
