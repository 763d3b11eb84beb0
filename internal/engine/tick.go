// Package engine provides the migration simulation and the tick loop that
// drives it.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TicksPerYear is how many ticks make a year at the default monthly step.
const TicksPerYear = 12

// Engine drives a simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	MaxTicks uint64        // Stop once Tick reaches this; 0 = run until stopped
	Interval time.Duration // Pause between ticks; 0 = as fast as possible

	// Callbacks, populated during setup.
	OnTick func(tick uint64) // Every tick
	OnYear func(tick uint64) // Every TicksPerYear ticks

	stop     chan struct{}
	stopOnce sync.Once
}

// NewEngine creates an engine starting after tick start.
func NewEngine(start uint64) *Engine {
	return &Engine{
		Tick: start,
		stop: make(chan struct{}),
	}
}

// Run starts the tick loop. It blocks until MaxTicks is reached, Stop is
// called or ctx is cancelled, and returns ctx.Err() in the last case.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("simulation engine started", "tick", e.Tick, "max_ticks", e.MaxTicks, "interval", e.Interval)

	var pace <-chan time.Time
	if e.Interval > 0 {
		ticker := time.NewTicker(e.Interval)
		defer ticker.Stop()
		pace = ticker.C
	}

	for e.MaxTicks == 0 || e.Tick < e.MaxTicks {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine cancelled", "tick", e.Tick)
			return ctx.Err()
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.Tick)
			return nil
		default:
		}

		e.step()

		if pace == nil {
			continue
		}
		select {
		case <-ctx.Done():
			slog.Info("simulation engine cancelled", "tick", e.Tick)
			return ctx.Err()
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.Tick)
			return nil
		case <-pace:
		}
	}

	slog.Info("simulation engine finished", "tick", e.Tick)
	return nil
}

// Stop halts the loop after the current tick. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// step advances the engine by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}

	if e.Tick%TicksPerYear == 0 && e.OnYear != nil {
		e.OnYear(e.Tick)
	}
}
