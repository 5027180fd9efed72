package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
)

type userIDRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// GravityRebuild handles POST /gravity/rebuild: recompute the gravity
// singleton card (spec.md §6).
func (s *Server) GravityRebuild(c *gin.Context) {
	var req userIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	if s.Gravity == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("gravity engine unavailable"))
		return
	}
	weights, err := s.Gravity.RebuildGravity(c.Request.Context(), req.UserID)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "rebuild gravity profile", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"weights": weights})
}

// VBDesireRebuild handles POST /vb_desire/rebuild.
func (s *Server) VBDesireRebuild(c *gin.Context) {
	var req userIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	if s.Gravity == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("gravity engine unavailable"))
		return
	}
	profile, err := s.Gravity.RebuildVBDesire(c.Request.Context(), req.UserID)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "rebuild vb_desire profile", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// Temporal handles GET /temporal/{user_id}: seconds since last user message
// plus its gap bucket.
func (s *Server) Temporal(c *gin.Context) {
	userID := c.Param("user_id")
	if s.RAGQuery == nil {
		c.Error(apperrors.NewUpstreamUnavailableError("chat path unavailable"))
		return
	}
	status, err := s.RAGQuery.Temporal(c.Request.Context(), userID)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "temporal status", err))
		return
	}
	c.JSON(http.StatusOK, status)
}
