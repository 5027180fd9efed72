package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

func userFilter(userID string) interfaces.Filter {
	return interfaces.Filter{Must: []interfaces.Condition{{Key: "user_id", MatchValue: userID}}}
}

// ExportUser handles GET /user/{id}/export: every thread, its transcript,
// and the user's memory_raw points (spec.md §6 "Export and privacy deletion").
func (s *Server) ExportUser(c *gin.Context) {
	userID := c.Param("id")

	threads, err := s.Threads.ListThreads(c.Request.Context(), userID)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "list threads for export", err))
		return
	}

	type threadExport struct {
		Thread   *types.Thread        `json:"thread"`
		Messages []*types.ChatLogRow  `json:"messages"`
	}
	exported := make([]threadExport, 0, len(threads))
	for _, t := range threads {
		msgs, err := s.Threads.ListMessages(c.Request.Context(), t.ID, 10000)
		if err != nil {
			c.Error(apperrors.Wrap(apperrors.KindInternal, "list thread messages for export", err))
			return
		}
		exported = append(exported, threadExport{Thread: t, Messages: msgs})
	}

	var memories []interfaces.Point
	if s.Vectors != nil {
		memories, err = s.Vectors.Scroll(c.Request.Context(), interfaces.ScrollRequest{
			Collection: "memory_raw",
			Filter:     &interfaces.Filter{Must: userFilter(userID).Must},
			Limit:      10000,
		})
		if err != nil {
			c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "scroll memory for export", err))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"threads": exported, "memories": memories})
}

// DeleteUserData handles DELETE /user/{id}/data: delete every thread,
// transcript, and memory point owned by this user.
func (s *Server) DeleteUserData(c *gin.Context) {
	userID := c.Param("id")

	threads, err := s.Threads.ListThreads(c.Request.Context(), userID)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "list threads for deletion", err))
		return
	}
	for _, t := range threads {
		if err := s.Threads.DeleteThread(c.Request.Context(), t.ID); err != nil {
			c.Error(apperrors.Wrap(apperrors.KindInternal, "delete thread", err))
			return
		}
	}
	if s.Vectors != nil {
		if err := s.Vectors.DeleteByFilter(c.Request.Context(), "memory_raw", userFilter(userID)); err != nil {
			c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "delete user memory points", err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteUserRecent handles DELETE /user/{id}/recent?minutes=N: delete only
// memory points created within the trailing N minutes (default 60).
func (s *Server) DeleteUserRecent(c *gin.Context) {
	userID := c.Param("id")
	minutes := 60
	if v := c.Query("minutes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minutes = n
		}
	}
	if s.Vectors == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("vector store unavailable"))
		return
	}
	cutoff := time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)

	filter := userFilter(userID)
	points, err := s.Vectors.Scroll(c.Request.Context(), interfaces.ScrollRequest{
		Collection: "memory_raw",
		Filter:     &filter,
		Limit:      10000,
	})
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "scroll recent memory", err))
		return
	}

	var toDelete []string
	for _, p := range points {
		createdStr, _ := p.Payload["created_at"].(string)
		if createdStr == "" {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, createdStr)
		if err != nil || createdAt.Before(cutoff) {
			continue
		}
		toDelete = append(toDelete, p.ID)
	}
	if len(toDelete) > 0 {
		if err := s.Vectors.Delete(c.Request.Context(), "memory_raw", toDelete); err != nil {
			c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "delete recent memory points", err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": len(toDelete)})
}
