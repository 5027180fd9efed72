package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vantageplatform/vantage-core/internal/application/service/retrieval"
	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type logRequest struct {
	UserID    string   `json:"user_id" binding:"required"`
	Text      string   `json:"text" binding:"required"`
	Source    string   `json:"source" binding:"required"`
	ThreadID  string   `json:"thread_id"`
	VantageID string   `json:"vantage_id"`
	Tags      []string `json:"tags"`
}

// PostLog ingests one chat message: persists it to the relational
// transcript, tags it, embeds it into memory_raw (spec.md §6 "POST /log").
func (s *Server) PostLog(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}

	vid := req.VantageID
	if vid == "" {
		vid = "default"
	}
	canonicalUserID := s.resolveCanonicalUser(c.Request.Context(), vid, req.UserID)

	tags := req.Tags
	if len(tags) == 0 {
		tags = retrieval.InferQueryTags(req.Text)
	}

	row := &types.ChatLogRow{
		ID:          idgen.New(),
		UserID:      canonicalUserID,
		UserIDAlias: req.UserID,
		Source:      req.Source,
		Text:        req.Text,
		Tags:        types.JSONStringSlice(tags),
		VantageID:   vid,
		RequestID:   c.Writer.Header().Get("X-Request-Id"),
		CreatedAt:   time.Now().UTC(),
	}
	if req.ThreadID != "" {
		row.ThreadID = &req.ThreadID
	}

	if err := s.Threads.InsertChatLog(c.Request.Context(), row); err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "insert chat log", err))
		return
	}

	if s.Retrieval != nil && s.Retrieval.Embedder != nil && s.Retrieval.Vectors != nil {
		vec, err := s.Retrieval.Embedder.Embed(c.Request.Context(), req.Text)
		if err != nil {
			c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "embed chat log text", err))
			return
		}
		payload := map[string]interface{}{
			"kind":       "chat_message",
			"user_id":    canonicalUserID,
			"vantage_id": vid,
			"source":     req.Source,
			"text":       req.Text,
			"tags":       toInterfaceSlice(tags),
			"created_at": row.CreatedAt.Format(time.RFC3339),
		}
		if req.ThreadID != "" {
			payload["thread_id"] = req.ThreadID
		}
		point := interfaces.Point{ID: row.ID, Vector: vec, Payload: payload}
		if err := s.Retrieval.Vectors.Upsert(c.Request.Context(), retrieval.MemoryCollection, []interfaces.Point{point}); err != nil {
			c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "upsert memory point", err))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"chat_log_id": row.ID, "memory_id": row.ID})
}

func toInterfaceSlice(xs []string) []interface{} {
	out := make([]interface{}, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
