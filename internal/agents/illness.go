// Per-tick agent update: illness progression, death resolution, movement.
// Every tick, a living agent advances its illness timer and then either
// stays put (while infectious) or moves and reflects off the arena edges.
package agents

import (
	"fmt"

	"github.com/talgya/contagion/internal/arena"
	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/entropy"
)

// Sicken makes the agent Sick, resets its illness timer and draws its
// prognosis once. Calling it on an agent that cannot be infected is a
// programmer error and panics.
func (a *Agent) Sicken(r Rules, src entropy.Source) {
	if !a.CanBeInfectedNow() {
		panic(fmt.Sprintf("agents: sicken called on agent %d in status %s", a.Index, a.Status))
	}
	a.Status = disease.Sick
	a.IllnessAge = 0
	a.WillDie = entropy.Chance(src, r.DeathRate)
}

// Tick advances the agent by one time step.
func (a *Agent) Tick(r Rules, b arena.Bounds, src entropy.Source) {
	if a.IsDead() {
		return
	}

	if a.Status == disease.Sick {
		a.progressIllness(r, src)
	}

	// Infectious agents self-isolate.
	if a.Status.CanInfect() {
		return
	}

	a.move(b)
}

func (a *Agent) progressIllness(r Rules, src entropy.Source) {
	a.IllnessAge++

	if a.WillDie {
		if a.IllnessAge >= r.DeathTime {
			a.resolveDeath(r, src)
		}
		return
	}

	if a.IllnessAge >= EffectiveRecoveryTime(r, a.InCare) {
		a.Status = disease.Recovered
		a.InCare = false
	}
}

// EffectiveRecoveryTime is the recovery time less the care bonus when in
// care, never below zero.
func EffectiveRecoveryTime(r Rules, inCare bool) int {
	t := r.RecoveryTime
	if inCare {
		t -= r.CareRecoveryBonus
	}
	if t < 0 {
		t = 0
	}
	return t
}

// resolveDeath settles a will-die prognosis. Care may save the agent; an
// agent that dies in care keeps its slot.
func (a *Agent) resolveDeath(r Rules, src entropy.Source) {
	if !a.InCare {
		a.Status = disease.DiedWithoutCare
		return
	}
	if entropy.Chance(src, r.CareLifeSaveRate) {
		a.Status = disease.Saved
		a.InCare = false
		return
	}
	a.Status = disease.DiedInCare
}

// move advances position by velocity and inverts each velocity component
// whose axis has left the effective bounds.
func (a *Agent) move(b arena.Bounds) {
	a.X += a.DX
	a.Y += a.DY
	if b.OutsideX(a.X) {
		a.DX = -a.DX
	}
	if b.OutsideY(a.Y) {
		a.DY = -a.DY
	}
}
