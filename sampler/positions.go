package sampler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/heitortanoue/fanet-harness/telemetry"
)

// PositionSource reports the current simulated location of each node,
// keyed by target name. The mn-telemetry file reader implements this.
type PositionSource interface {
	Positions() (map[string]telemetry.Position, error)
}

// PushPositions periodically reads the position source and posts each
// node's location to its /position endpoint, keeping the drones' idea of
// where they are in step with the mobility simulation. Nodes missing from
// the source are skipped silently; they may not have moved yet.
func PushPositions(ctx context.Context, src PositionSource, targets []Target, interval time.Duration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		positions, err := src.Positions()
		if err != nil {
			log.Warn("position source read failed", zap.Error(err))
			continue
		}
		for _, t := range targets {
			pos, ok := positions[t.Name]
			if !ok {
				continue
			}
			if err := t.Client.PushPosition(ctx, pos); err != nil {
				log.Warn("position push failed",
					zap.String("node", t.Name), zap.Error(err))
			}
		}
	}
}
