package engine

import (
	"github.com/talgya/contagion/internal/disease"
)

// AgentView is the drawable state of one agent.
type AgentView struct {
	Index  int            `json:"index"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	Status disease.Status `json:"status"`
	InCare bool           `json:"in_care"`
}

// Counts aggregates the population for charting.
type Counts struct {
	ByStatus  map[disease.Status]int `json:"by_status"`
	InCare    int                    `json:"in_care"`
	NeedsCare int                    `json:"needs_care"` // Destined to die, no place in care
	Total     int                    `json:"total"`
}

// Of returns the number of agents in status st.
func (c Counts) Of(st disease.Status) int {
	return c.ByStatus[st]
}

// Snapshot is a read-only copy of the simulation after a tick. It shares
// no memory with the Simulation and may be handed to other goroutines.
type Snapshot struct {
	Tick     uint64      `json:"tick"`
	Agents   []AgentView `json:"agents"`
	Counts   Counts      `json:"counts"`
	Events   []Event     `json:"events"` // Events produced by this tick
	Finished bool        `json:"finished"`
}

// Summary is a snapshot without per-agent detail.
type Summary struct {
	Tick     uint64  `json:"tick"`
	Counts   Counts  `json:"counts"`
	Events   []Event `json:"events"`
	Finished bool    `json:"finished"`
}

// Summary drops the agent list.
func (s Snapshot) Summary() Summary {
	return Summary{
		Tick:     s.Tick,
		Counts:   s.Counts,
		Events:   s.Events,
		Finished: s.Finished,
	}
}

// Snapshot copies the current population state. Events are left empty;
// AdvanceOneTick fills them with that tick's events.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:     s.Tick,
		Agents:   make([]AgentView, len(s.Agents)),
		Counts:   s.Counts(),
		Finished: s.IsFinished(),
	}
	for i, a := range s.Agents {
		snap.Agents[i] = AgentView{
			Index:  a.Index,
			X:      a.X,
			Y:      a.Y,
			Status: a.Status,
			InCare: a.InCare,
		}
	}
	return snap
}

// Counts tallies agents by status and care situation.
func (s *Simulation) Counts() Counts {
	c := Counts{
		ByStatus: make(map[disease.Status]int, disease.NumStatuses),
		Total:    len(s.Agents),
	}
	for _, st := range disease.All {
		c.ByStatus[st] = 0
	}
	for _, a := range s.Agents {
		c.ByStatus[a.Status]++
		if a.InCare {
			c.InCare++
		} else if a.NeedsCare() {
			c.NeedsCare++
		}
	}
	return c
}
