package initiator

import (
	"context"
	"time"

	"github.com/vantageplatform/vantage-core/internal/logger"
)

// Run drives the tick loop for one vantage until ctx is cancelled,
// sleeping tickInterval between ticks (spec.md §5 "one or more Initiator
// workers that run an infinite tick loop").
func (e *Engine) Run(ctx context.Context, vantageID string, tickInterval time.Duration) {
	if tickInterval <= 0 {
		tickInterval = 10 * time.Second
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		if err := e.Tick(ctx, vantageID); err != nil {
			logger.Errorf(ctx, "initiator: tick failed for vantage %s: %v", vantageID, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
