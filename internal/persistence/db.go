// Package persistence records outbreak runs to SQLite for charting:
// one row per run, per-tick aggregate counts, and notable events.
// It is an output sink only; runs are never restored from it.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/engine"
)

// DB wraps a SQLite connection for run history.
type DB struct {
	conn *sqlx.DB
}

// Run is one recorded simulation run.
type Run struct {
	ID         string  `db:"id" json:"id"`
	StartedAt  string  `db:"started_at" json:"started_at"`
	FinishedAt *string `db:"finished_at" json:"finished_at,omitempty"`
	Seed       int64   `db:"seed" json:"seed"`
	ConfigJSON string  `db:"config_json" json:"-"`
	LastTick   int64   `db:"last_tick" json:"last_tick"`
}

// Config decodes the run's stored configuration.
func (r Run) Config() (engine.Config, error) {
	var cfg engine.Config
	if err := json.Unmarshal([]byte(r.ConfigJSON), &cfg); err != nil {
		return cfg, fmt.Errorf("decode run config: %w", err)
	}
	return cfg, nil
}

// StatsRow is the aggregate state of one tick.
type StatsRow struct {
	Tick            int64 `db:"tick" json:"tick"`
	Healthy         int   `db:"healthy" json:"healthy"`
	Incubating      int   `db:"incubating" json:"incubating"`
	Sick            int   `db:"sick" json:"sick"`
	Recovered       int   `db:"recovered" json:"recovered"`
	Saved           int   `db:"saved" json:"saved"`
	DiedInCare      int   `db:"died_in_care" json:"died_in_care"`
	DiedWithoutCare int   `db:"died_without_care" json:"died_without_care"`
	InCare          int   `db:"in_care" json:"in_care"`
	NeedsCare       int   `db:"needs_care" json:"needs_care"`
}

// StatsFromSnapshot flattens a snapshot's counts into a row.
func StatsFromSnapshot(snap engine.Snapshot) StatsRow {
	c := snap.Counts
	return StatsRow{
		Tick:            int64(snap.Tick),
		Healthy:         c.Of(disease.Healthy),
		Incubating:      c.Of(disease.Incubating),
		Sick:            c.Of(disease.Sick),
		Recovered:       c.Of(disease.Recovered),
		Saved:           c.Of(disease.Saved),
		DiedInCare:      c.Of(disease.DiedInCare),
		DiedWithoutCare: c.Of(disease.DiedWithoutCare),
		InCare:          c.InCare,
		NeedsCare:       c.NeedsCare,
	}
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		seed INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		last_tick INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		healthy INTEGER NOT NULL,
		incubating INTEGER NOT NULL,
		sick INTEGER NOT NULL,
		recovered INTEGER NOT NULL,
		saved INTEGER NOT NULL,
		died_in_care INTEGER NOT NULL,
		died_without_care INTEGER NOT NULL,
		in_care INTEGER NOT NULL,
		needs_care INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// StartRun registers a new run and returns its ID.
func (db *DB) StartRun(cfg engine.Config, seed int64) (string, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, started_at, seed, config_json) VALUES (?, ?, ?, ?)",
		id, time.Now().UTC().Format(time.RFC3339), seed, string(cfgJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run's final tick and completion time.
func (db *DB) FinishRun(runID string, tick uint64) error {
	_, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, last_tick = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), int64(tick), runID,
	)
	return err
}

// GetRun loads one run.
func (db *DB) GetRun(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, started_at, finished_at, seed, config_json, last_tick FROM runs WHERE id = ?", runID)
	return r, err
}

// SaveTickStats appends per-tick rows for a run.
func (db *DB) SaveTickStats(runID string, rows []StatsRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO tick_stats
		(run_id, tick, healthy, incubating, sick, recovered, saved,
		 died_in_care, died_without_care, in_care, needs_care)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(
			runID, r.Tick, r.Healthy, r.Incubating, r.Sick, r.Recovered, r.Saved,
			r.DiedInCare, r.DiedWithoutCare, r.InCare, r.NeedsCare,
		)
		if err != nil {
			return fmt.Errorf("insert tick %d: %w", r.Tick, err)
		}
	}

	if _, err := tx.Exec("UPDATE runs SET last_tick = ? WHERE id = ?", rows[len(rows)-1].Tick, runID); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	return tx.Commit()
}

// SaveEvents appends events for a run.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, agent, category, description) VALUES (?, ?, ?, ?, ?)",
			runID, int64(e.Tick), e.Agent, e.Category, e.Description,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadStatsHistory returns up to limit rows with from <= tick <= to, oldest first.
func (db *DB) LoadStatsHistory(runID string, from, to uint64, limit int) ([]StatsRow, error) {
	var rows []StatsRow
	err := db.conn.Select(&rows, `SELECT tick, healthy, incubating, sick, recovered, saved,
			died_in_care, died_without_care, in_care, needs_care
		FROM tick_stats WHERE run_id = ? AND tick >= ? AND tick <= ?
		ORDER BY tick ASC LIMIT ?`,
		runID, clampTick(from), clampTick(to), limit,
	)
	return rows, err
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, agent, category, description FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// clampTick avoids the uint64 high-bit SQLite driver issue.
func clampTick(t uint64) int64 {
	if t > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(t)
}
