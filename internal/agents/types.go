// Package agents provides the simulated individual: its position, velocity,
// health status, illness timer, prognosis and care flag.
package agents

import (
	"github.com/talgya/contagion/internal/disease"
)

// Rules holds the disease parameters every agent is judged against.
type Rules struct {
	RecoveryTime      int     // Ticks of illness before recovery
	DeathRate         float64 // Probability drawn once at sickening that the agent will die
	DeathTime         int     // Ticks of illness before a will-die agent dies
	CareRecoveryBonus int     // Ticks shaved off recovery while in care
	CareLifeSaveRate  float64 // Probability that care turns a death into a save
}

// Agent is one simulated individual. Agents are never destroyed: the dead
// stay in the population, motionless, still holding any care slot.
type Agent struct {
	Index int `json:"index"` // Position in the population; lower index = higher care priority

	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`

	Status     disease.Status `json:"status"`
	IllnessAge int            `json:"illness_age"` // Meaningful only while Sick
	WillDie    bool           `json:"will_die"`    // Prognosis, fixed at sickening
	InCare     bool           `json:"in_care"`
}

// IsDead reports whether the agent's status denotes death.
func (a *Agent) IsDead() bool {
	return a.Status.IsDeceased()
}

// IsTerminal reports whether the agent has reached an end state.
func (a *Agent) IsTerminal() bool {
	return a.Status.IsEndState()
}

// CanBeInfectedNow reports whether Sicken may be called: the agent is alive
// and has not yet contracted the illness.
func (a *Agent) CanBeInfectedNow() bool {
	return !a.Status.IsDeceased() && !a.Status.HasContracted()
}

// NeedsCare reports whether the agent is destined to die and that fate has
// not yet been resolved.
func (a *Agent) NeedsCare() bool {
	return a.WillDie && !a.Status.IsEndState()
}
