package card

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vantageplatform/vantage-core/internal/types"
)

const (
	defaultHalfLifeDays       = 45.0
	confidenceHalfLifeScale   = 4.0
	confidenceHalfLifeFloor   = 180.0
	defaultSignalWindowDays   = 180.0
	defaultMinIntervalMinutes = 60.0
	decayPayloadKey           = "last_decay_at"
	decayPageSize             = 500
)

// DecayOne runs one card_decay_v1 pass for a single non-system card
// (spec.md §4.F "card_decay_v1"): incremental, signal-aware strength and
// confidence decay keyed off payload.last_decay_at. It never touches
// updated_at, so repeated decay passes don't mask real card activity.
func (s *Service) DecayOne(ctx context.Context, card *types.CardHead) (changed bool, err error) {
	now := time.Now().UTC()

	payload := card.Payload
	if payload == nil {
		payload = types.JSONMap{}
	}

	lastDecay := card.UpdatedAt
	if raw, ok := payload[decayPayloadKey].(string); ok && raw != "" {
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			lastDecay = t
		}
	}
	if lastDecay.IsZero() {
		lastDecay = now
	}

	signalWindowDays := defaultSignalWindowDays
	if w, ok := payload["signal_window_days"].(float64); ok && w > 0 {
		signalWindowDays = w
	}
	signalsSince := lastDecay
	if windowFloor := now.AddDate(0, 0, -int(signalWindowDays)); signalsSince.Before(windowFloor) {
		signalsSince = windowFloor
	}

	reward, punish, use, err := s.Cards.SignalsSince(ctx, card.CardID, signalsSince)
	if err != nil {
		return false, fmt.Errorf("load signals for card %s: %w", card.CardID, err)
	}

	dtDays := now.Sub(lastDecay).Hours() / 24.0
	if dtDays < 0 {
		dtDays = 0
	}

	halfLife := defaultHalfLifeDays
	if hl, ok := payload["half_life_days"].(float64); ok && hl > 0 {
		halfLife = hl
	}

	minIntervalMinutes := defaultMinIntervalMinutes
	if m, ok := payload["min_interval_minutes"].(float64); ok && m > 0 {
		minIntervalMinutes = m
	}
	minIntervalDays := minIntervalMinutes / 1440.0

	factor := math.Pow(0.5, dtDays/halfLife)
	delta := math.Min(0.20, 0.02*use) + math.Min(0.20, 0.05*reward) - math.Min(0.30, 0.07*punish)
	newStrength := round3(clamp01(card.Strength*factor + delta))

	confHalfLife := math.Max(halfLife*confidenceHalfLifeScale, confidenceHalfLifeFloor)
	confFactor := math.Pow(0.5, dtDays/confHalfLife)
	confDelta := math.Min(0.10, 0.01*reward) - math.Min(0.15, 0.02*punish)
	newConfidence := round3(clamp01(card.Confidence*confFactor + confDelta))

	signaled := reward > 0 || punish > 0 || use > 0
	unchanged := newStrength == card.Strength && newConfidence == card.Confidence

	payload[decayPayloadKey] = now.Format(time.RFC3339)

	if unchanged && !signaled && dtDays < minIntervalDays {
		if err := s.Cards.UpdateDecay(ctx, card.CardID, card.Strength, card.Confidence, payload, nil); err != nil {
			return false, fmt.Errorf("rewrite decay cursor for card %s: %w", card.CardID, err)
		}
		return false, nil
	}

	var revision *types.CardRevision
	if !unchanged {
		revision = &types.CardRevision{
			Summary: card.Summary,
			Payload: payload,
			Reason:  "decay_v1",
			Delta: types.JSONMap{
				"dt_days": round3(dtDays),
				"factor":  round3(factor),
				"reward":  reward,
				"punish":  punish,
				"use":     use,
			},
		}
	}
	if err := s.Cards.UpdateDecay(ctx, card.CardID, newStrength, newConfidence, payload, revision); err != nil {
		return false, fmt.Errorf("save decayed card %s: %w", card.CardID, err)
	}
	return !unchanged, nil
}

// DecayAll runs card_decay_v1 over every active non-system card for a
// vantage, paging by updated_at, and returns how many cards actually
// changed strength or confidence.
func (s *Service) DecayAll(ctx context.Context, vantageID string) (decayed int, total int, err error) {
	cursor := time.Time{}
	for {
		cards, lerr := s.Cards.ListActiveNonSystem(ctx, vantageID, decayPageSize, cursor)
		if lerr != nil {
			return decayed, total, fmt.Errorf("list active cards: %w", lerr)
		}
		if len(cards) == 0 {
			return decayed, total, nil
		}
		for _, c := range cards {
			changed, derr := s.DecayOne(ctx, c)
			if derr != nil {
				return decayed, total, derr
			}
			if changed {
				decayed++
			}
			total++
			if c.UpdatedAt.After(cursor) {
				cursor = c.UpdatedAt
			}
		}
		if len(cards) < decayPageSize {
			return decayed, total, nil
		}
	}
}
