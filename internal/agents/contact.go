package agents

import (
	"math"

	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/entropy"
)

// Box is an agent's axis-aligned bounding box: position ± half the radius.
type Box struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Bounds returns the agent's bounding box for the given radius.
func (a *Agent) Bounds(radius float64) Box {
	half := radius / 2
	return Box{
		MinX: a.X - half,
		MinY: a.Y - half,
		MaxX: a.X + half,
		MaxY: a.Y + half,
	}
}

// Overlaps reports whether two boxes intersect on both axes.
func (b Box) Overlaps(o Box) bool {
	return b.MaxX >= o.MinX && b.MaxY >= o.MinY && b.MinX <= o.MaxX && b.MinY <= o.MaxY
}

// DistanceTo returns the Euclidean distance between agent centres.
func (a *Agent) DistanceTo(o *Agent) float64 {
	return math.Hypot(a.X-o.X, a.Y-o.Y)
}

// ReactTo applies one side of a contact: the agent bounces away and, if it
// is infectable and the other agent is infectious, falls sick. Reports
// whether the agent was infected.
func (a *Agent) ReactTo(other *Agent, r Rules, src entropy.Source) bool {
	return a.React(other.Status, r, src)
}

// React is ReactTo against a recorded status of the other agent, so every
// contact in a tick can be judged from the statuses the tick started with.
func (a *Agent) React(other disease.Status, r Rules, src entropy.Source) bool {
	a.DX = -a.DX
	a.DY = -a.DY
	if a.Status.CanBeInfected() && other.CanInfect() {
		a.Sicken(r, src)
		return true
	}
	return false
}
