package timer

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTickInterval is the cadence of the scheduler loop.
const DefaultTickInterval = time.Second

// Scheduler drives the registry's tick on a fixed cadence.
type Scheduler struct {
	registry *Registry
	interval time.Duration
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler ticking the registry at the given
// interval (DefaultTickInterval if zero).
func NewScheduler(registry *Registry, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		registry: registry,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the tick loop until Stop is called. Blocking; run it on its
// own goroutine.
func (s *Scheduler) Start() error {
	s.log.Info("Scheduler starting", "tick_interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("Scheduler shutting down")
			return nil
		case <-ticker.C:
			s.registry.Tick(s.ctx)
		}
	}
}

// Stop requests a graceful shutdown of the tick loop.
func (s *Scheduler) Stop() {
	s.log.Info("Scheduler stop requested")
	s.cancel()
}
