// Collision detection: brute-force pairwise contact search.
// Quadratic in population; past a few thousand agents this is the bottleneck.
package engine

import (
	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/disease"
)

// Contact is an unordered pair of agents within contact distance, A < B.
type Contact struct {
	A, B int
}

// FindContacts returns every pair of living agents whose centres are within
// radius of each other, in (A, B) lexicographic order. A cheap bounding-box
// test rejects distant pairs before the exact distance check.
func FindContacts(pop []*agents.Agent, radius float64) []Contact {
	var contacts []Contact

	boxes := make([]agents.Box, len(pop))
	for i, a := range pop {
		boxes[i] = a.Bounds(radius)
	}

	for ia := 0; ia < len(pop); ia++ {
		a := pop[ia]
		if a.IsDead() {
			continue
		}
		for ib := ia + 1; ib < len(pop); ib++ {
			b := pop[ib]
			if b.IsDead() {
				continue
			}
			if !boxes[ia].Overlaps(boxes[ib]) {
				continue
			}
			if a.DistanceTo(b) <= radius {
				contacts = append(contacts, Contact{A: ia, B: ib})
			}
		}
	}

	return contacts
}

// resolveContacts applies the contact reaction to both sides of every pair,
// first to second then second to first. Each side is judged against the
// other's status at the start of the tick, so pair order never changes who
// falls sick.
func (s *Simulation) resolveContacts() {
	contacts := FindContacts(s.Agents, s.Config.AgentRadius)
	if len(contacts) == 0 {
		return
	}

	start := make([]disease.Status, len(s.Agents))
	for i, a := range s.Agents {
		start[i] = a.Status
	}

	for _, c := range contacts {
		a, b := s.Agents[c.A], s.Agents[c.B]
		if a.React(start[c.B], s.rules, s.src) {
			s.record(a, CategoryInfected, "infected by agent %d", b.Index)
		}
		if b.React(start[c.A], s.rules, s.src) {
			s.record(b, CategoryInfected, "infected by agent %d", a.Index)
		}
	}
}
