// Simulation owns the population and advances it one tick at a time.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/arena"
	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/entropy"
)

// State is the orchestrator's lifecycle state.
type State uint8

const (
	Running State = iota
	Terminated
)

func (s State) String() string {
	if s == Terminated {
		return "terminated"
	}
	return "running"
}

// Event categories.
const (
	CategoryInfected        = "infected"
	CategoryAdmitted        = "admitted"
	CategoryRecovered       = "recovered"
	CategorySaved           = "saved"
	CategoryDiedInCare      = "died_in_care"
	CategoryDiedWithoutCare = "died_without_care"
)

const maxEvents = 1000

// Event is a notable transition of one agent.
type Event struct {
	Tick        uint64 `json:"tick" db:"tick"`
	Agent       int    `json:"agent" db:"agent"`
	Category    string `json:"category" db:"category"`
	Description string `json:"description" db:"description"`
}

// Simulation holds the complete population state. It is not safe for
// concurrent use; a single owner calls AdvanceOneTick.
type Simulation struct {
	Config Config
	Agents []*agents.Agent
	Tick   uint64
	Events []Event // Most recent events, oldest first

	// ReportEvery logs a status report every N ticks (0 disables).
	ReportEvery uint64

	state      State
	rules      agents.Rules
	bounds     arena.Bounds
	src        entropy.Source
	tickEvents []Event
}

// NewSimulation validates cfg, spawns the population from src and infects
// the first agent. src is the only randomness the simulation ever uses.
func NewSimulation(cfg Config, src entropy.Source) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	layout, err := arena.NewLayout(cfg.Layout, src)
	if err != nil {
		return nil, fmt.Errorf("spawn layout: %w", err)
	}

	bounds := cfg.Bounds()
	spawner := agents.NewSpawner(bounds, layout, cfg.MovementSpeed, src)

	s := &Simulation{
		Config:      cfg,
		Agents:      spawner.SpawnPopulation(cfg.Population),
		ReportEvery: 100,
		rules:       cfg.Rules(),
		bounds:      bounds,
		src:         src,
	}

	s.Agents[0].Sicken(s.rules, s.src)
	s.record(s.Agents[0], CategoryInfected, "patient zero")
	s.flushEvents()
	s.checkTermination()
	return s, nil
}

// State returns the lifecycle state.
func (s *Simulation) State() State {
	return s.state
}

// IsFinished reports whether every agent has reached an end state.
func (s *Simulation) IsFinished() bool {
	return s.state == Terminated
}

// AdvanceOneTick runs one complete tick: contacts, care allocation, then
// each agent's own update, then the termination check. Once terminated it
// mutates nothing and returns the final snapshot again.
func (s *Simulation) AdvanceOneTick() Snapshot {
	if s.state == Terminated {
		return s.Snapshot()
	}

	s.Tick++

	s.resolveContacts()
	s.allocateCare()
	s.updateAgents()

	s.checkTermination()
	snap := s.Snapshot()
	snap.Events = s.flushEvents()

	if s.ReportEvery > 0 && s.Tick%s.ReportEvery == 0 {
		s.report(snap.Counts)
	}
	if s.state == Terminated {
		slog.Info("outbreak over",
			"ticks", humanize.Comma(int64(s.Tick)),
			"recovered", snap.Counts.Of(disease.Recovered),
			"saved", snap.Counts.Of(disease.Saved),
			"died_in_care", snap.Counts.Of(disease.DiedInCare),
			"died_without_care", snap.Counts.Of(disease.DiedWithoutCare),
		)
	}
	return snap
}

func (s *Simulation) updateAgents() {
	for _, a := range s.Agents {
		before := a.Status
		a.Tick(s.rules, s.bounds, s.src)
		if a.Status == before {
			continue
		}
		switch a.Status {
		case disease.Recovered:
			s.record(a, CategoryRecovered, "recovered after %d ticks", a.IllnessAge)
		case disease.Saved:
			s.record(a, CategorySaved, "saved by care")
		case disease.DiedInCare:
			s.record(a, CategoryDiedInCare, "died in care")
		case disease.DiedWithoutCare:
			s.record(a, CategoryDiedWithoutCare, "died without care")
		}
	}
}

func (s *Simulation) checkTermination() {
	for _, a := range s.Agents {
		if !a.IsTerminal() {
			return
		}
	}
	s.state = Terminated
}

func (s *Simulation) record(a *agents.Agent, category, format string, args ...any) {
	e := Event{
		Tick:        s.Tick,
		Agent:       a.Index,
		Category:    category,
		Description: fmt.Sprintf("agent %d "+format, append([]any{a.Index}, args...)...),
	}
	s.tickEvents = append(s.tickEvents, e)
	slog.Debug("event", "tick", e.Tick, "category", e.Category, "description", e.Description)
}

// flushEvents moves this tick's events into the history and returns them.
func (s *Simulation) flushEvents() []Event {
	out := s.tickEvents
	s.tickEvents = nil
	s.Events = append(s.Events, out...)
	// Trim old events to prevent unbounded growth.
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
	return out
}

func (s *Simulation) report(c Counts) {
	slog.Info("tick report",
		"tick", humanize.Comma(int64(s.Tick)),
		"healthy", c.Of(disease.Healthy),
		"sick", c.Of(disease.Sick),
		"recovered", c.Of(disease.Recovered),
		"saved", c.Of(disease.Saved),
		"died_in_care", c.Of(disease.DiedInCare),
		"died_without_care", c.Of(disease.DiedWithoutCare),
		"in_care", c.InCare,
		"needs_care", c.NeedsCare,
	)
}
