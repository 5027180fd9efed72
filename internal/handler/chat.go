package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/application/service/vantage"
)

type ragQueryRequest struct {
	UserID    string   `json:"user_id" binding:"required"`
	Message   string   `json:"message" binding:"required"`
	ThreadID  string   `json:"thread_id"`
	VantageID string   `json:"vantage_id"`
	Y         *float64 `json:"y"`
	R         *float64 `json:"r"`
	Ctrl      *float64 `json:"c"`
	Sup       *float64 `json:"s"`
}

// RAGQueryHandler handles POST /rag/query and POST /vantage/query
// (spec.md §4.L, §6).
func (s *Server) RAGQueryHandler(c *gin.Context) {
	var req ragQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	if s.RAGQuery == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("chat path unavailable"))
		return
	}

	canonicalUserID := s.resolveCanonicalUser(c.Request.Context(), req.VantageID, req.UserID)
	limits := vantage.NormalizeLimits(req.Y, req.R, req.Ctrl, req.Sup)
	routing := vantage.DefaultRouting()

	result, err := s.RAGQuery.Query(c.Request.Context(), canonicalUserID, req.ThreadID, req.VantageID, req.Message, limits, routing)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "chat query", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"answer_id":  result.AnswerID,
		"text":       result.Text,
		"memory_ids": result.MemoryIDs,
	})
}

type ragFeedbackRequest struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	VantageID string `json:"vantage_id"`
	AnswerID  string `json:"answer_id"`
	Message   string `json:"message" binding:"required"`
}

// RAGFeedbackHandler handles POST /rag/feedback and POST /vantage/feedback.
func (s *Server) RAGFeedbackHandler(c *gin.Context) {
	var req ragFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	if s.RAGQuery == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("chat path unavailable"))
		return
	}

	result, err := s.RAGQuery.Feedback(c.Request.Context(), req.UserID, req.ThreadID, req.VantageID, req.AnswerID, req.Message)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "chat feedback", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sentiment":      result.Sentiment,
		"tag":            result.Tag,
		"memory_updated": result.MemoryUpdated,
	})
}
