package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/types"
)

// ListCards handles GET /cards/{user_id}: active, non-system cards for a
// vantage, least recently updated first (spec.md §6).
func (s *Server) ListCards(c *gin.Context) {
	userID := c.Param("user_id")
	vantageID := c.DefaultQuery("vantage_id", "default")
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	_ = userID // cards are scoped by vantage, not by the requesting alias
	cards, err := s.Cards.ListActiveNonSystem(c.Request.Context(), vantageID, limit, time.Time{})
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "list cards", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

type upsertCardRequest struct {
	Kind              string         `json:"kind" binding:"required"`
	TopicKey          string         `json:"topic_key"`
	Text              string         `json:"text"`
	Payload           types.JSONMap  `json:"payload"`
	IfMatchUpdatedAt  *time.Time     `json:"if_match_updated_at"`
	VantageID         string         `json:"vantage_id"`
}

// UpsertCard handles POST /cards/{user_id}: create or update a card
// artifact, enforcing optimistic concurrency via if_match_updated_at
// (spec.md §7 "Conflict ... card if_match_updated_at mismatch -> 409").
func (s *Server) UpsertCard(c *gin.Context) {
	var req upsertCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(err.Error()))
		return
	}
	vantageID := req.VantageID
	if vantageID == "" {
		vantageID = "default"
	}
	topicKey := req.TopicKey
	if topicKey == "" {
		topicKey = types.SingletonTopicKey
	}

	existing, err := s.Cards.GetHead(c.Request.Context(), vantageID, req.Kind, topicKey)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "get card head", err))
		return
	}
	if existing != nil && req.IfMatchUpdatedAt != nil && !existing.UpdatedAt.Equal(*req.IfMatchUpdatedAt) {
		c.Error(apperrors.NewConflictError("card was modified concurrently"))
		return
	}

	now := time.Now().UTC()
	var head *types.CardHead
	if existing != nil {
		head = existing
		head.Summary = req.Text
		head.Payload = req.Payload
		head.UpdatedAt = now
	} else {
		head = &types.CardHead{
			CardID:     idgen.TopicCardID(vantageID, req.Kind, topicKey),
			VantageID:  vantageID,
			Kind:       req.Kind,
			TopicKey:   topicKey,
			Summary:    req.Text,
			Payload:    req.Payload,
			Strength:   1.0,
			Confidence: 1.0,
			Status:     types.CardActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	revision := &types.CardRevision{
		RevisionID: idgen.New(),
		CardID:     head.CardID,
		Summary:    req.Text,
		Payload:    req.Payload,
		Reason:     "manual_edit",
		CreatedAt:  now,
	}
	if existing != nil {
		revision.PrevRevisionID = &existing.CardID
	}

	if err := s.Cards.UpsertWithRevision(c.Request.Context(), head, revision); err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "upsert card", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"card_id": head.CardID, "updated_at": head.UpdatedAt})
}

// DeleteCard handles DELETE /cards/{user_id}/{card_id}: singleton cards
// (topic_key "__singleton__") are delete-locked (spec.md §8 "Singleton
// delete ... returns 403").
func (s *Server) DeleteCard(c *gin.Context) {
	cardID := c.Param("card_id")
	head, err := s.Cards.GetHeadByID(c.Request.Context(), cardID)
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "get card", err))
		return
	}
	if head == nil {
		c.Error(apperrors.NewNotFoundError("card not found"))
		return
	}
	if head.TopicKey == types.SingletonTopicKey {
		c.Error(apperrors.NewForbiddenError("singleton cards cannot be deleted"))
		return
	}
	if err := s.Cards.DeleteCard(c.Request.Context(), cardID); err != nil {
		c.Error(apperrors.Wrap(apperrors.KindInternal, "delete card", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
