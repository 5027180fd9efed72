package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types"
)

// GetRAGPolicy handles GET /vantage/rag_policy (spec.md §6).
func (s *Server) GetRAGPolicy(c *gin.Context) {
	vantageID := c.DefaultQuery("vantage_id", "default")
	if s.Policy == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("policy store unavailable"))
		return
	}
	pol, err := s.Policy.Get(c.Request.Context(), vantageID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vantage_id": vantageID, "policy": pol})
}

type ragPolicyRequest struct {
	VantageID string        `json:"vantage_id"`
	Policy    types.JSONMap `json:"policy" binding:"required"`
}

// PostRAGPolicy handles POST /vantage/rag_policy.
func (s *Server) PostRAGPolicy(c *gin.Context) {
	var req ragPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	vantageID := req.VantageID
	if vantageID == "" {
		vantageID = "default"
	}
	if s.Policy == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("policy store unavailable"))
		return
	}
	if err := s.Policy.Upsert(c.Request.Context(), vantageID, req.Policy); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
