package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/socdash/internal/engine"
)

// DefaultInterval is the pause between two scheduled cycles.
const DefaultInterval = 30 * time.Second

// Cycler runs one checker cycle.
type Cycler interface {
	RunCycle(ctx context.Context, trigger engine.Trigger) (engine.CycleResult, error)
}

// Scheduler runs cycles in the background. It sleeps the full Interval after
// every attempt, so slow cycles push the next one back instead of piling up.
type Scheduler struct {
	Logger   *zap.Logger
	Cycler   Cycler
	Interval time.Duration
}

func New(logger *zap.Logger, c Cycler, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	return &Scheduler{Logger: logger, Cycler: c, Interval: interval}
}

// Run does an immediate pass, then one pass per interval until ctx is
// cancelled. A zero interval disables the loop.
func (s *Scheduler) Run(ctx context.Context) {
	if s.Interval == 0 {
		s.Logger.Info("scheduler_disabled")
		return
	}
	s.Logger.Info("scheduler_started", zap.Duration("interval", s.Interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler_stopped")
			return
		case <-timer.C:
			s.runOnce(ctx)
			timer.Reset(s.Interval)
		}
	}
}

// runOnce starts a cycle unless ctx is already cancelled. A started cycle is
// detached from ctx and always runs to completion; shutdown only stops the
// loop between cycles.
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("scheduler_cycle_panic", zap.String("panic", fmt.Sprint(r)))
		}
	}()

	res, err := s.Cycler.RunCycle(context.WithoutCancel(ctx), engine.TriggerScheduled)
	if err != nil {
		s.Logger.Warn("scheduler_cycle_error", zap.Error(err))
		return
	}
	s.Logger.Debug("scheduler_cycle_done",
		zap.Int("checked", res.Checked),
		zap.Int("emitted", res.Emitted),
	)
}
