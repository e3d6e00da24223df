package core

import (
	"context"
	"log/slog"
	"time"

	"rallynav/pkg/config"
	"rallynav/pkg/gps"
	"rallynav/pkg/logging"
)

// Ticker is the route engine's clock input.
type Ticker interface {
	Tick(now time.Time, fix *gps.Fix) bool
}

// PositionSink is an interface for consumers of the position stream.
type PositionSink interface {
	Update(f *gps.Fix)
	UpdateState(s gps.State)
}

// Scheduler manages the central heartbeat and scheduled jobs.
type Scheduler struct {
	cfg    *config.Config
	pos    gps.Client
	engine Ticker
	sink   PositionSink
	jobs   []Job

	lastFix time.Time
	now     func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(cfg *config.Config, pos gps.Client, engine Ticker, sink PositionSink) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		pos:    pos,
		engine: engine,
		sink:   sink,
		jobs:   []Job{},
		now:    time.Now,
	}
}

// AddJob registers a job.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start runs the main loop. It blocks until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	interval := s.cfg.Ticker.Interval.Std()
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "interval", interval, "jobs", len(s.jobs))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	state := s.pos.State()
	if s.sink != nil {
		s.sink.UpdateState(state)
	}

	// A fix is delivered once; repeats of the same report become timer ticks
	var fix *gps.Fix
	if state == gps.StateActive {
		f, err := s.pos.Latest(ctx)
		if err != nil {
			logging.Trace("No position fix", "error", err)
		} else if f.Time.After(s.lastFix) {
			s.lastFix = f.Time
			fix = &f
		}
	}

	if fix != nil && s.sink != nil {
		s.sink.Update(fix)
	}

	s.engine.Tick(now, fix)

	for _, job := range s.jobs {
		if job.ShouldFire(fix) {
			// Fire and forget
			go job.Run(ctx, fix)
		}
	}
}
