package syncer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs an incremental pass immediately and then on every tick.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(engine *Engine, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Scheduler{engine: engine, interval: interval, logger: logger}
}

// Run blocks until ctx is done. A tick that finds a pass in progress is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.engine.Run(ctx, ModeIncremental); err != nil {
			switch {
			case errors.Is(err, ErrSyncInProgress):
				s.logger.Info("sync pass still running, skipping tick")
			case ctx.Err() != nil:
				return nil
			default:
				s.logger.Warn("sync pass failed", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
