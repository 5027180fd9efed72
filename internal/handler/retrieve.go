package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vantageplatform/vantage-core/internal/application/service/retrieval"
	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type retrieveRequest struct {
	Query          string  `json:"query" binding:"required"`
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
	Collection     string  `json:"collection"`
	VantageID      string  `json:"vantage_id"`
}

// Retrieve handles POST /retrieve: a vector search across one named
// collection, or every non-ignored collection when none is given
// (spec.md §6 "Vector search across one or all non-ignored collections").
func (s *Server) Retrieve(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	if s.Retrieval == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("retrieval engine unavailable"))
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}

	if req.Collection != "" {
		vec, err := s.Retrieval.Embedder.Embed(c.Request.Context(), req.Query)
		if err != nil {
			c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "embed query", err))
			return
		}
		hits, err := s.Retrieval.Vectors.Search(c.Request.Context(), interfaces.SearchRequest{
			Collection:     req.Collection,
			Vector:         vec,
			Limit:          topK,
			ScoreThreshold: req.ScoreThreshold,
		})
		if err != nil {
			c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "vector search", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"hits": hits})
		return
	}

	hits, err := s.Retrieval.RetrieveCorpus(c.Request.Context(), req.VantageID, req.Query, topK, req.ScoreThreshold)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "corpus retrieve", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

type retrieveMemoryRequest struct {
	Query          string  `json:"query" binding:"required"`
	UserID         string  `json:"user_id"`
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
	VantageID      string  `json:"vantage_id"`
}

// RetrieveMemory handles POST /retrieve_memory: personal memory search.
func (s *Server) RetrieveMemory(c *gin.Context) {
	var req retrieveMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	if s.Retrieval == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("retrieval engine unavailable"))
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 8
	}
	canonicalUserID := s.resolveCanonicalUser(c.Request.Context(), req.VantageID, req.UserID)
	hits, err := s.Retrieval.RetrievePersonalMemory(c.Request.Context(), canonicalUserID, req.VantageID, req.Query, topK, req.ScoreThreshold)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "personal memory retrieve", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

type memoryFeedbackRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	MemoryID string `json:"memory_id" binding:"required"`
	Signal   string `json:"signal" binding:"required"`
	Tag      string `json:"tag"`
}

// MemoryFeedback handles POST /memory_feedback: attach a positive/negative
// signal (and optional tag) to a memory point's payload.
func (s *Server) MemoryFeedback(c *gin.Context) {
	var req memoryFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	if req.Signal != "positive" && req.Signal != "negative" {
		c.Error(apperrors.NewBadRequestError("signal must be \"positive\" or \"negative\""))
		return
	}
	if s.Retrieval == nil || s.Retrieval.Vectors == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("vector store unavailable"))
		return
	}

	points, err := s.Retrieval.Vectors.Retrieve(c.Request.Context(), retrieval.MemoryCollection, []string{req.MemoryID})
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "retrieve memory point", err))
		return
	}
	if len(points) == 0 {
		c.Error(apperrors.NewNotFoundError("memory point not found"))
		return
	}
	point := points[0]
	if point.Payload == nil {
		point.Payload = map[string]interface{}{}
	}
	fb, _ := point.Payload["feedback"].(map[string]interface{})
	if fb == nil {
		fb = map[string]interface{}{}
	}
	key := "positive_signals"
	if req.Signal == "negative" {
		key = "negative_signals"
	}
	fb[key] = asFloatPayload(fb[key]) + 1
	point.Payload["feedback"] = fb

	if req.Tag != "" {
		userTags, _ := point.Payload["user_tags"].([]interface{})
		userTags = append(userTags, req.Tag)
		point.Payload["user_tags"] = userTags
	}

	if err := s.Retrieval.Vectors.Upsert(c.Request.Context(), retrieval.MemoryCollection, []interfaces.Point{point}); err != nil {
		c.Error(apperrors.Wrap(apperrors.KindUpstreamUnavailable, "upsert memory feedback", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func asFloatPayload(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
