// Care allocation: scarce beds handed out to agents destined to die.
package engine

import (
	"github.com/talgya/contagion/internal/agents"
)

// AllocateCare fills free care places with agents that need care, in
// population order, and returns the newly admitted agents. Occupants are
// never displaced; agents who died in care keep occupying their place.
func AllocateCare(pop []*agents.Agent, capacity int) []*agents.Agent {
	available := capacity
	for _, a := range pop {
		if a.InCare {
			available--
		}
	}
	if available <= 0 {
		return nil
	}

	var admitted []*agents.Agent
	for _, a := range pop {
		if !a.NeedsCare() || a.InCare {
			continue
		}
		a.InCare = true
		admitted = append(admitted, a)
		available--
		if available == 0 {
			break
		}
	}
	return admitted
}

func (s *Simulation) allocateCare() {
	for _, a := range AllocateCare(s.Agents, s.Config.CarePlaces) {
		s.record(a, CategoryAdmitted, "admitted to care")
	}
}
