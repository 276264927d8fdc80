// Package autoplan runs the schedule optimizer on a cron cadence.
package autoplan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/tasks"
)

// cronParser accepts standard five-field expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// sourceName attributes auto-optimize runs in broadcast events. The client
// id stays empty so every connected client receives them.
const sourceName = "auto-optimize"

// Optimizer is the slice of the tasks service the planner drives.
type Optimizer interface {
	Optimize(ctx context.Context, req tasks.OptimizeRequest, src events.Source) (*tasks.OptimizeResult, error)
}

// Config controls the background optimization cadence.
type Config struct {
	// Enabled gates the planner; a disabled planner starts and stops as a
	// no-op.
	Enabled bool
	// Schedule is a five-field cron expression.
	Schedule string
	// Algorithm runs each cycle; empty uses the service default.
	Algorithm string
}

// Planner triggers implicit, non-forced optimization runs on a cron
// schedule.
type Planner struct {
	optimizer Optimizer
	schedule  cron.Schedule
	spec      string
	algorithm string
	clock     core.Clock
	quit      chan any
	running   atomic.Bool
	stopOnce  sync.Once
}

// Option configures optional planner dependencies.
type Option func(*Planner)

// WithClock replaces the system clock.
func WithClock(clock core.Clock) Option {
	return func(p *Planner) { p.clock = clock }
}

// New parses the configured schedule and builds the planner. A disabled
// config skips parsing and yields a planner whose Start returns
// immediately.
func New(optimizer Optimizer, cfg Config, opts ...Option) (*Planner, error) {
	p := &Planner{
		optimizer: optimizer,
		spec:      cfg.Schedule,
		algorithm: cfg.Algorithm,
		clock:     core.SystemClock{},
		quit:      make(chan any),
	}
	for _, opt := range opts {
		opt(p)
	}
	if !cfg.Enabled {
		return p, nil
	}
	schedule, err := cronParser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse auto-optimize schedule %q: %w", cfg.Schedule, err)
	}
	p.schedule = schedule
	return p, nil
}

// Enabled reports whether the planner will do anything when started.
func (p *Planner) Enabled() bool { return p.schedule != nil }

// Start runs the cron loop until the context is canceled or Stop is
// called. A disabled planner returns immediately.
func (p *Planner) Start(ctx context.Context) {
	if p.schedule == nil {
		return
	}
	p.running.Store(true)
	defer p.running.Store(false)

	timer := time.NewTimer(p.wait())
	defer timer.Stop()
	logger.Info(ctx, "Auto-optimize planner started", "schedule", p.spec, "algorithm", p.algorithm)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case <-timer.C:
			p.runOnce(ctx)
			timer.Reset(p.wait())
		}
	}
}

// Stop terminates the loop. Safe to call more than once.
func (p *Planner) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
}

// IsRunning reports whether the loop is active.
func (p *Planner) IsRunning() bool { return p.running.Load() }

// NextRun returns the first firing time after now, or the zero time when
// the planner is disabled.
func (p *Planner) NextRun(now time.Time) time.Time {
	if p.schedule == nil {
		return time.Time{}
	}
	return p.schedule.Next(now)
}

func (p *Planner) wait() time.Duration {
	now := p.clock.Now()
	return p.schedule.Next(now).Sub(now)
}

// runOnce targets every task without force. Per-task placement failures
// live in the result; only structural errors reach the log as failures.
func (p *Planner) runOnce(ctx context.Context) {
	res, err := p.optimizer.Optimize(ctx, tasks.OptimizeRequest{Algorithm: p.algorithm}, events.Source{UserName: sourceName})
	if err != nil {
		logger.Error(ctx, "Auto-optimize run failed", "err", err)
		return
	}
	logger.Info(ctx, "Auto-optimize run finished",
		"runId", res.RunID,
		"scheduled", res.Summary.ScheduledCount,
		"failed", res.Summary.FailedCount,
	)
}
