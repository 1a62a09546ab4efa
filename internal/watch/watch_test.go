package watch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/talgya/contagion/internal/api"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/entropy"
)

func observation(total, carePlaces, inCare, waiting int, by map[string]int) *Observation {
	obs := &Observation{}
	obs.Status.RunID = "run"
	obs.Status.CarePlaces = carePlaces
	obs.Status.Speed = 2
	obs.Stats.Counts.ByStatus = by
	obs.Stats.Counts.Total = total
	obs.Stats.Counts.InCare = inCare
	obs.Stats.Counts.NeedsCare = waiting
	return obs
}

func TestTriageLevels(t *testing.T) {
	cases := []struct {
		name string
		obs  *Observation
		want Level
	}{
		{"no infection", observation(100, 10, 0, 0, map[string]int{"healthy": 100}), Contained},
		{"small stable outbreak", observation(100, 10, 0, 0, map[string]int{"healthy": 95, "sick": 5}), Contained},
		{"large share", observation(100, 10, 0, 0, map[string]int{"healthy": 80, "sick": 20}), Spreading},
		{"some waiting", observation(100, 10, 10, 3, map[string]int{"healthy": 50, "sick": 50}), Strained},
		{"waiting beyond capacity", observation(100, 10, 10, 10, map[string]int{"healthy": 50, "sick": 50}), Overwhelmed},
	}
	for _, tc := range cases {
		if got := Triage(tc.obs).Level; got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}

	finished := observation(100, 10, 0, 0, map[string]int{"recovered": 100})
	finished.Stats.Finished = true
	if got := Triage(finished).Level; got != Contained {
		t.Fatalf("finished run: got %s", got)
	}
}

func TestTriageGrowthFromHistory(t *testing.T) {
	obs := observation(100, 10, 0, 0, map[string]int{"healthy": 95, "sick": 5})
	obs.History = []StatsHistoryRow{{Tick: 1, Sick: 1}, {Tick: 2, Sick: 3}, {Tick: 3, Sick: 5}}

	h := Triage(obs)
	if h.Growth != 4 || h.Level != Spreading {
		t.Fatalf("growth %d level %s", h.Growth, h.Level)
	}
	if h.FreePlaces != 10 {
		t.Fatalf("free places %d", h.FreePlaces)
	}
}

func TestDecide(t *testing.T) {
	p := DefaultPolicy()
	j := &Journal{}

	d := Decide(&Health{Level: Overwhelmed, Waiting: 12}, 2, j, p)
	if d.Action != ActionSlow || d.Speed != p.CrisisSpeed {
		t.Fatalf("expected slow, got %+v", d)
	}
	if d := Decide(&Health{Level: Overwhelmed}, p.CrisisSpeed, j, p); d.Action != ActionNone {
		t.Fatalf("already slowed, got %+v", d)
	}

	j.SlowedFrom = 2
	d = Decide(&Health{Level: Strained}, p.CrisisSpeed, j, p)
	if d.Action != ActionResume || d.Speed != 2 {
		t.Fatalf("expected resume to 2, got %+v", d)
	}

	// A speed someone else set is left alone.
	if d := Decide(&Health{Level: Strained}, 7, j, p); d.Action != ActionNone {
		t.Fatalf("expected none, got %+v", d)
	}
	if d := Decide(&Health{Level: Overwhelmed}, 2, j, Policy{}); d.Action != ActionNone {
		t.Fatalf("disabled policy acted: %+v", d)
	}
}

func TestJournalPersistsAndForgetsOldRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	j := LoadJournal(path)
	j.Record(CycleRecord{RunID: "a", Tick: 1, Level: Strained})
	j.SlowedFrom = 3
	if err := j.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := LoadJournal(path)
	if last, ok := loaded.Last(); !ok || last.Tick != 1 || loaded.SlowedFrom != 3 {
		t.Fatalf("journal not restored: %+v", loaded)
	}

	loaded.Record(CycleRecord{RunID: "b", Tick: 1})
	if len(loaded.Records) != 1 || loaded.SlowedFrom != 0 {
		t.Fatalf("old run should be forgotten: %+v", loaded)
	}

	for i := 0; i < maxRecords+5; i++ {
		loaded.Record(CycleRecord{RunID: "b", Tick: uint64(i)})
	}
	if len(loaded.Records) != maxRecords {
		t.Fatalf("journal holds %d records", len(loaded.Records))
	}
}

func TestObserveRunningServer(t *testing.T) {
	cfg := engine.SmallTestConfig()
	cfg.Width, cfg.Height = 9, 9
	sim, err := engine.NewSimulation(cfg, entropy.Seeded(5))
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	eng := engine.NewEngine(sim)
	eng.Interval = 0
	eng.MaxTicks = 1
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	srv := httptest.NewServer((&api.Server{Eng: eng, Config: cfg, RunID: "live"}).Handler())
	defer srv.Close()

	obs, err := NewObserver(srv.URL).Observe()
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if obs.Status.RunID != "live" || obs.Status.Tick != 1 || obs.Stats.Counts.Total != cfg.Population {
		t.Fatalf("unexpected observation: %+v", obs)
	}
	if obs.History != nil {
		t.Fatal("history should be empty without a database")
	}
	if h := Triage(obs); h.Infectious != cfg.Population {
		t.Fatalf("expected everyone infectious after one crowded tick, got %d", h.Infectious)
	}
}

// stubAPI serves canned observations and records speed changes.
type stubAPI struct {
	mu      sync.Mutex
	waiting int
	speed   float64
	posts   []float64
}

func (s *stubAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.URL.Path {
	case "/api/v1/status":
		json.NewEncoder(w).Encode(map[string]any{"run_id": "stub", "tick": 10, "speed": s.speed, "care_places": 2})
	case "/api/v1/stats":
		json.NewEncoder(w).Encode(map[string]any{
			"tick": 10,
			"counts": map[string]any{
				"by_status":  map[string]int{"sick": 8, "healthy": 2},
				"in_care":    2,
				"needs_care": s.waiting,
				"total":      10,
			},
		})
	case "/api/v1/stats/history":
		http.Error(w, "database not available", http.StatusServiceUnavailable)
	case "/api/v1/speed":
		if r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req struct {
			Speed float64 `json:"speed"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		s.speed = req.Speed
		s.posts = append(s.posts, req.Speed)
		json.NewEncoder(w).Encode(map[string]float64{"speed": s.speed})
	default:
		http.NotFound(w, r)
	}
}

func TestCycleSlowsAndResumes(t *testing.T) {
	stub := &stubAPI{waiting: 5, speed: 4}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	w := &Watcher{
		Observer: NewObserver(srv.URL),
		Actor:    NewActor(srv.URL, "key"),
		Journal:  &Journal{},
		Policy:   DefaultPolicy(),
	}

	_, h, d, err := w.Cycle()
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if h.Level != Overwhelmed || d.Action != ActionSlow || w.Journal.SlowedFrom != 4 {
		t.Fatalf("expected slowdown, got level %s decision %+v", h.Level, d)
	}

	stub.mu.Lock()
	stub.waiting = 0
	stub.mu.Unlock()

	_, h, d, err = w.Cycle()
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if h.Level != Spreading || d.Action != ActionResume {
		t.Fatalf("expected resume, got level %s decision %+v", h.Level, d)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.posts) != 2 || stub.posts[0] != 0.5 || stub.posts[1] != 4 {
		t.Fatalf("unexpected speed posts: %v", stub.posts)
	}
	if w.Journal.SlowedFrom != 0 || len(w.Journal.Records) != 2 {
		t.Fatalf("journal not updated: %+v", w.Journal)
	}
}

func TestCycleObserveOnlyNeverActs(t *testing.T) {
	stub := &stubAPI{waiting: 5, speed: 4}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	w := &Watcher{Observer: NewObserver(srv.URL), Journal: &Journal{}, Policy: DefaultPolicy()}
	if _, _, d, err := w.Cycle(); err != nil || d.Action != ActionNone {
		t.Fatalf("observe-only watcher acted: %+v, %v", d, err)
	}
	if len(stub.posts) != 0 {
		t.Fatal("no speed changes expected")
	}
}
