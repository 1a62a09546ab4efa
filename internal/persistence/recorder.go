package persistence

import (
	"fmt"
	"log/slog"

	"github.com/talgya/contagion/internal/engine"
)

// Recorder buffers snapshots from the engine and writes them in batches.
// It belongs to the engine's Run goroutine.
type Recorder struct {
	DB         *DB
	RunID      string
	FlushEvery int // Ticks buffered before a write

	rows   []StatsRow
	events []engine.Event
}

// NewRecorder creates a recorder for an already-started run.
func NewRecorder(db *DB, runID string) *Recorder {
	return &Recorder{
		DB:         db,
		RunID:      runID,
		FlushEvery: 50,
	}
}

// Observe buffers one tick. Suitable as engine.Engine.OnTick.
// Write failures are logged; the simulation keeps going.
func (r *Recorder) Observe(snap engine.Snapshot) {
	r.rows = append(r.rows, StatsFromSnapshot(snap))
	r.events = append(r.events, snap.Events...)

	if len(r.rows) >= r.FlushEvery || snap.Finished {
		if err := r.Flush(); err != nil {
			slog.Error("history save failed", "run", r.RunID, "tick", snap.Tick, "error", err)
		}
	}
}

// Flush writes everything buffered so far.
func (r *Recorder) Flush() error {
	if err := r.DB.SaveTickStats(r.RunID, r.rows); err != nil {
		return fmt.Errorf("save tick stats: %w", err)
	}
	r.rows = r.rows[:0]

	if err := r.DB.SaveEvents(r.RunID, r.events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	r.events = r.events[:0]
	return nil
}

// Finish flushes and marks the run complete at tick.
func (r *Recorder) Finish(tick uint64) error {
	if err := r.Flush(); err != nil {
		return err
	}
	if err := r.DB.FinishRun(r.RunID, tick); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	slog.Info("run history saved", "run", r.RunID, "tick", tick)
	return nil
}
