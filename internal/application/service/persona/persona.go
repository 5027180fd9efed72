// Package persona composes a user's singleton identity/style cards, their
// gravity and vb-desire profiles, and retrieved memory into the system
// prompt handed to the chat adapter (spec.md §4.J), grounded on how
// original_source/rag_engine/app.py assembles its system message from
// memory_card points plus the vantage overlay.
package persona

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vantageplatform/vantage-core/internal/application/service/gravity"
	"github.com/vantageplatform/vantage-core/internal/application/service/retrieval"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

const (
	// styleCardSource marks memory_raw points that are identity/style
	// cards rather than ordinary logged memory; personal retrieval excludes
	// them, so they reach the prompt only through this package.
	styleCardSource      = "memory_card"
	defaultBasePrompt    = "You are a helpful, direct assistant."
	misalignmentNoticeAt = 0.4
)

// Service builds system prompts from persona cards, gravity/desire
// profiles, and composed retrieval hits.
type Service struct {
	Vectors   interfaces.VectorStore
	Gravity   *gravity.Service
	BasePrompt string
}

// New builds a persona Service; basePrompt falls back to a generic
// assistant preamble when empty.
func New(vectors interfaces.VectorStore, grav *gravity.Service, basePrompt string) *Service {
	if basePrompt == "" {
		basePrompt = defaultBasePrompt
	}
	return &Service{Vectors: vectors, Gravity: grav, BasePrompt: basePrompt}
}

// loadStyleCards scrolls memory_raw for a user's memory_card-sourced
// points (identity/style/preference cards persisted as vector points,
// distinct from the postgres-backed pref/audit cards in vantage_card).
func (s *Service) loadStyleCards(ctx context.Context, userID string) ([]map[string]interface{}, error) {
	if userID == "" {
		return nil, nil
	}
	points, err := s.Vectors.Scroll(ctx, interfaces.ScrollRequest{
		Collection: retrieval.MemoryCollection,
		Filter: &interfaces.Filter{
			Must: []interfaces.Condition{
				{Key: "user_id", MatchValue: userID},
				{Key: "source", MatchValue: styleCardSource},
			},
		},
		Limit: 200,
	})
	if err != nil {
		return nil, fmt.Errorf("scroll style cards for %s: %w", userID, err)
	}
	cards := make([]map[string]interface{}, 0, len(points))
	for _, p := range points {
		if p.Payload != nil {
			cards = append(cards, p.Payload)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		return fmt.Sprint(cards[i]["kind"]) < fmt.Sprint(cards[j]["kind"])
	})
	return cards, nil
}

// BuildSystemPrompt composes the base prompt, persona/style cards,
// gravity-misalignment notice, the vantage overlay, and retrieved memory
// into one system message (spec.md §4.L step 4 "compose prompt").
func (s *Service) BuildSystemPrompt(ctx context.Context, userID string, composed retrieval.Composed, overlay string, misalignment float64) (string, error) {
	var b strings.Builder
	b.WriteString(s.BasePrompt)
	b.WriteString("\n\n")

	cards, err := s.loadStyleCards(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(cards) > 0 {
		b.WriteString("[PERSONA]\n")
		for _, c := range cards {
			if text, ok := c["text"].(string); ok && text != "" {
				b.WriteString("- ")
				b.WriteString(text)
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	if misalignment >= misalignmentNoticeAt {
		b.WriteString(fmt.Sprintf(
			"[GRAVITY NOTICE] This query diverges from the user's established tendencies (misalignment=%.2f). Answer what was asked; do not assume the divergence is a mistake.\n\n",
			misalignment,
		))
	}

	if overlay != "" {
		b.WriteString(overlay)
		b.WriteString("\n")
	}

	if hits := composed.All(); len(hits) > 0 {
		b.WriteString("[MEMORY]\n")
		for _, h := range hits {
			text := stringField(h.Payload, "text")
			if text == "" {
				continue
			}
			b.WriteString(fmt.Sprintf("- (%s) %s\n", h.Collection, text))
		}
	}

	return b.String(), nil
}

func stringField(payload map[string]interface{}, key string) string {
	v, _ := payload[key].(string)
	return v
}
