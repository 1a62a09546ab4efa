// Agent spawning creates the initial healthy population scattered across
// the arena, each heading diagonally at the configured speed.
package agents

import (
	"github.com/talgya/contagion/internal/arena"
	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/entropy"
)

// Spawner creates agents for the simulation.
type Spawner struct {
	bounds arena.Bounds
	layout arena.Layout
	speed  float64
	src    entropy.Source
	next   int
}

// NewSpawner creates a spawner. A nil layout means uniform placement.
func NewSpawner(b arena.Bounds, layout arena.Layout, speed float64, src entropy.Source) *Spawner {
	if layout == nil {
		layout = arena.Uniform{}
	}
	return &Spawner{
		bounds: b,
		layout: layout,
		speed:  speed,
		src:    src,
	}
}

// SpawnPopulation creates count healthy agents in index order.
func (s *Spawner) SpawnPopulation(count int) []*Agent {
	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		agents = append(agents, s.spawnOne())
	}
	return agents
}

func (s *Spawner) spawnOne() *Agent {
	x, y := s.layout.Place(s.bounds, s.src)

	dx, dy := s.speed, s.speed
	if s.src.Float64() >= 0.5 {
		dx = -dx
	}
	if s.src.Float64() >= 0.5 {
		dy = -dy
	}

	a := &Agent{
		Index:  s.next,
		X:      x,
		Y:      y,
		DX:     dx,
		DY:     dy,
		Status: disease.Healthy,
	}
	s.next++
	return a
}
