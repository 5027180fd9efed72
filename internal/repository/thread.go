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

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository builds the thread/chat-log storage adapter (spec.md §6).
func NewThreadRepository(db *gorm.DB) interfaces.ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) CreateThread(ctx context.Context, thread *types.Thread) error {
	if thread.ID == "" {
		thread.ID = idgen.New()
	}
	now := time.Now().UTC()
	thread.CreatedAt, thread.UpdatedAt = now, now
	if err := r.db.WithContext(ctx).Create(thread).Error; err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "create thread", err)
	}
	return nil
}

func (r *threadRepository) GetThread(ctx context.Context, id string) (*types.Thread, error) {
	var thread types.Thread
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("thread %q not found", id))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "get thread", err)
	}
	return &thread, nil
}

func (r *threadRepository) ListThreads(ctx context.Context, userID string) ([]*types.Thread, error) {
	var threads []*types.Thread
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND archived = ?", userID, false).
		Order("updated_at desc").
		Find(&threads).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "list threads", err)
	}
	return threads, nil
}

func (r *threadRepository) RenameThread(ctx context.Context, id, title string) error {
	err := r.db.WithContext(ctx).Model(&types.Thread{}).Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "rename thread", err)
	}
	return nil
}

func (r *threadRepository) ArchiveThread(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&types.Thread{}).Where("id = ?", id).
		Updates(map[string]interface{}{"archived": true, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "archive thread", err)
	}
	return nil
}

func (r *threadRepository) DeleteThread(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", id).Delete(&types.ChatLogRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&types.Thread{}).Error; err != nil {
			return err
		}
		return nil
	})
}

func (r *threadRepository) ReassignOwner(ctx context.Context, threadID, canonicalUserID string) error {
	err := r.db.WithContext(ctx).Model(&types.Thread{}).Where("id = ?", threadID).
		Updates(map[string]interface{}{"user_id": canonicalUserID, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "reassign thread owner", err)
	}
	return nil
}

func (r *threadRepository) InsertChatLog(ctx context.Context, row *types.ChatLogRow) error {
	if row.ID == "" {
		row.ID = idgen.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "insert chat log row", err)
	}
	return nil
}

func (r *threadRepository) ListMessages(ctx context.Context, threadID string, limit int) ([]*types.ChatLogRow, error) {
	var rows []*types.ChatLogRow
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "list thread messages", err)
	}
	return rows, nil
}

func (r *threadRepository) ListRecentUserMessages(ctx context.Context, vantageID string, limit int) ([]*types.ChatLogRow, error) {
	var rows []*types.ChatLogRow
	q := r.db.WithContext(ctx).Where("source = ?", "user")
	if vantageID == "default" {
		q = q.Where("vantage_id = ? OR vantage_id = ? OR vantage_id IS NULL OR vantage_id = ''", vantageID, "default")
	} else {
		q = q.Where("vantage_id = ?", vantageID)
	}
	err := q.Order("created_at desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "list recent user messages", err)
	}
	return rows, nil
}

func (r *threadRepository) LastUserMessageAt(ctx context.Context, userID string) (*time.Time, error) {
	var row types.ChatLogRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND source = ?", userID, "user").
		Order("created_at desc").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "last user message time", err)
	}
	return &row.CreatedAt, nil
}
