package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/entropy"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	cfg := engine.SmallTestConfig()

	id, err := db.StartRun(cfg, 42)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if id == "" {
		t.Fatal("expected a run id")
	}

	run, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Seed != 42 || run.FinishedAt != nil {
		t.Fatalf("unexpected run: %+v", run)
	}
	stored, err := run.Config()
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if stored != cfg {
		t.Fatalf("config round trip: %+v != %+v", stored, cfg)
	}

	if err := db.FinishRun(id, 77); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	run, err = db.GetRun(id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.FinishedAt == nil || run.LastTick != 77 {
		t.Fatalf("run not finished: %+v", run)
	}
}

func TestStatsHistoryRange(t *testing.T) {
	db := openTestDB(t)
	id, err := db.StartRun(engine.DefaultConfig(), 1)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	var rows []StatsRow
	for tick := int64(1); tick <= 10; tick++ {
		rows = append(rows, StatsRow{Tick: tick, Healthy: int(10 - tick), Sick: int(tick)})
	}
	if err := db.SaveTickStats(id, rows); err != nil {
		t.Fatalf("save stats: %v", err)
	}

	got, err := db.LoadStatsHistory(id, 3, 7, 100)
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(got) != 5 || got[0].Tick != 3 || got[4].Tick != 7 || got[4].Sick != 7 {
		t.Fatalf("unexpected history: %+v", got)
	}

	limited, err := db.LoadStatsHistory(id, 0, 1<<64-1, 2)
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(limited) != 2 || limited[0].Tick != 1 {
		t.Fatalf("limit not applied: %+v", limited)
	}

	other, err := db.LoadStatsHistory("other-run", 0, 100, 100)
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("rows leaked across runs: %+v", other)
	}
}

func TestRecorderPersistsWholeRun(t *testing.T) {
	db := openTestDB(t)
	cfg := engine.SmallTestConfig()
	cfg.Width, cfg.Height = 9, 9

	sim, err := engine.NewSimulation(cfg, entropy.Seeded(2))
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	id, err := db.StartRun(cfg, 2)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	rec := NewRecorder(db, id)
	rec.FlushEvery = 7
	for !sim.IsFinished() {
		rec.Observe(sim.AdvanceOneTick())
	}
	if err := rec.Finish(sim.Tick); err != nil {
		t.Fatalf("finish: %v", err)
	}

	rows, err := db.LoadStatsHistory(id, 0, sim.Tick, 1000)
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if uint64(len(rows)) != sim.Tick {
		t.Fatalf("stored %d rows for %d ticks", len(rows), sim.Tick)
	}
	last := rows[len(rows)-1]
	if last.Sick != 0 || last.Healthy != 0 {
		t.Fatalf("final row should be all terminal: %+v", last)
	}
	total := last.Recovered + last.Saved + last.DiedInCare + last.DiedWithoutCare
	if total != cfg.Population {
		t.Fatalf("final row accounts for %d of %d agents", total, cfg.Population)
	}

	events, err := db.RecentEvents(id, 1000)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	// Every agent but patient zero was infected by contact, and every agent
	// reached an outcome.
	infected, outcomes := 0, 0
	for _, e := range events {
		switch e.Category {
		case engine.CategoryInfected:
			infected++
		case engine.CategoryRecovered, engine.CategorySaved, engine.CategoryDiedInCare, engine.CategoryDiedWithoutCare:
			outcomes++
		}
	}
	if infected != cfg.Population-1 || outcomes != cfg.Population {
		t.Fatalf("infected=%d outcomes=%d", infected, outcomes)
	}

	run, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.LastTick != int64(sim.Tick) || run.FinishedAt == nil {
		t.Fatalf("run not finalised: %+v", run)
	}
}
