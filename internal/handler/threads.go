package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

func threadFilter(threadID string) interfaces.Filter {
	return interfaces.Filter{Must: []interfaces.Condition{{Key: "thread_id", MatchValue: threadID}}}
}

type newThreadRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Title     string `json:"title"`
	VantageID string `json:"vantage_id"`
}

// CreateThread handles POST /threads/new (spec.md §6).
func (s *Server) CreateThread(c *gin.Context) {
	var req newThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	vid := req.VantageID
	if vid == "" {
		vid = "default"
	}
	canonicalUserID := s.resolveCanonicalUser(c.Request.Context(), vid, req.UserID)

	thread := &types.Thread{
		ID:        idgen.New(),
		UserID:    canonicalUserID,
		Title:     req.Title,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.Threads.CreateThread(c.Request.Context(), thread); err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "create thread", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": thread.ID})
}

// ListThreads handles GET /threads/list/{user_id}: non-archived, newest first.
func (s *Server) ListThreads(c *gin.Context) {
	userID := c.Param("user_id")
	threads, err := s.Threads.ListThreads(c.Request.Context(), userID)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "list threads", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// ThreadMessages handles GET /threads/{id}/messages.
func (s *Server) ThreadMessages(c *gin.Context) {
	id := c.Param("id")
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	msgs, err := s.Threads.ListMessages(c.Request.Context(), id, limit)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "list thread messages", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type renameThreadRequest struct {
	Title string `json:"title" binding:"required"`
}

// RenameThread handles POST /threads/{id}/rename.
func (s *Server) RenameThread(c *gin.Context) {
	id := c.Param("id")
	var req renameThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	if _, err := s.Threads.GetThread(c.Request.Context(), id); err != nil {
		c.Error(apperrors.NewNotFoundError("thread not found"))
		return
	}
	if err := s.Threads.RenameThread(c.Request.Context(), id, req.Title); err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "rename thread", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ArchiveThread handles POST /threads/{id}/archive.
func (s *Server) ArchiveThread(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.Threads.GetThread(c.Request.Context(), id); err != nil {
		c.Error(apperrors.NewNotFoundError("thread not found"))
		return
	}
	if err := s.Threads.ArchiveThread(c.Request.Context(), id); err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "archive thread", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteThread handles DELETE /threads/{id}: transcript + thread + vector
// points for the thread.
func (s *Server) DeleteThread(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.Threads.GetThread(c.Request.Context(), id); err != nil {
		c.Error(apperrors.NewNotFoundError("thread not found"))
		return
	}
	if s.Vectors != nil {
		if err := s.Vectors.DeleteByFilter(c.Request.Context(), "memory_raw", threadFilter(id)); err != nil {
			c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "delete thread memory points", err))
			return
		}
	}
	if err := s.Threads.DeleteThread(c.Request.Context(), id); err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "delete thread", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
