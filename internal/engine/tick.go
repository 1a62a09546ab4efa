// Package engine provides the tick-based simulation loop.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Engine drives a Simulation forward on a schedule, standing in for a host
// animation loop. Only the Run goroutine touches the Simulation; everyone
// else reads copies through Latest or a subscription.
type Engine struct {
	Interval time.Duration // Base tick interval at speed 1 (0 = as fast as possible)
	MaxTicks uint64        // Stop after this tick even if unfinished (0 = no cap)

	// OnTick is called from the Run goroutine after every tick.
	OnTick func(snap Snapshot)

	sim *Simulation

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	latest  Snapshot
	recent  []Event
	subs    map[int]chan Summary
	nextSub int
	done    bool // Run has returned; new subscriptions start closed

	stopOnce sync.Once
	stop     chan struct{}
}

// NewEngine creates an engine for sim with default settings.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Interval: 16 * time.Millisecond,
		sim:      sim,
		speed:    1.0,
		latest:   sim.Snapshot(),
		recent:   append([]Event(nil), sim.Events...),
		subs:     make(map[int]chan Summary),
		stop:     make(chan struct{}),
	}
}

// Run advances the simulation until it finishes, MaxTicks is reached, Stop
// is called, or ctx is cancelled. Only the last returns an error.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.done = false
	e.mu.Unlock()
	e.setRunning(true)
	defer e.setRunning(false)
	defer e.closeSubscribers()

	slog.Info("simulation engine started", "tick", e.sim.Tick, "speed", e.Speed())

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine cancelled", "tick", e.sim.Tick)
			return ctx.Err()
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.sim.Tick)
			return nil
		default:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused; sleep briefly and check again.
			if err := e.wait(ctx, 100*time.Millisecond); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		snap := e.step()

		if snap.Finished {
			slog.Info("simulation finished", "tick", humanize.Comma(int64(snap.Tick)))
			return nil
		}
		if e.MaxTicks > 0 && snap.Tick >= e.MaxTicks {
			slog.Info("tick cap reached", "tick", humanize.Comma(int64(snap.Tick)))
			return nil
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			if err := e.wait(ctx, target-elapsed); err != nil {
				return err
			}
		}
	}
}

// step advances the simulation by one tick and publishes the result.
func (e *Engine) step() Snapshot {
	snap := e.sim.AdvanceOneTick()

	e.mu.Lock()
	e.latest = snap
	e.recent = append(e.recent, snap.Events...)
	if len(e.recent) > maxEvents {
		e.recent = e.recent[len(e.recent)-maxEvents:]
	}
	summary := snap.Summary()
	for _, ch := range e.subs {
		select {
		case ch <- summary:
		default:
			// Slow subscriber; drop rather than stall the simulation.
		}
	}
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(snap)
	}
	return snap
}

func (e *Engine) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stop:
		return nil
	case <-t.C:
		return nil
	}
}

// Stop halts the run loop after the current tick.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; 0 pauses.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = speed
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) setRunning(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = v
}

// Latest returns the most recent snapshot.
func (e *Engine) Latest() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// RecentEvents returns up to n of the latest events, newest first.
func (e *Engine) RecentEvents(n int) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > len(e.recent) {
		n = len(e.recent)
	}
	if n < 0 {
		n = 0
	}
	out := make([]Event, 0, n)
	for i := len(e.recent) - 1; i >= len(e.recent)-n; i-- {
		out = append(out, e.recent[i])
	}
	return out
}

// Subscribe registers for per-tick summaries. The channel is closed when
// Run returns or on Unsubscribe. After Run has returned the channel comes
// back already closed.
func (e *Engine) Subscribe() (int, <-chan Summary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan Summary, 64)
	if e.done {
		close(ch)
		return id, ch
	}
	e.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
}

func (e *Engine) closeSubscribers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.done = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}
