// Spawn layouts. Uniform scatters agents evenly; clustered biases them
// toward neighbourhoods picked out by layered simplex noise.
package arena

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/contagion/internal/entropy"
)

// Layout names accepted by NewLayout.
const (
	LayoutUniform   = "uniform"
	LayoutClustered = "clustered"
)

// Layout picks spawn points inside the effective bounds.
type Layout interface {
	Place(b Bounds, src entropy.Source) (x, y float64)
}

// NewLayout resolves a layout by name. The clustered layout derives its
// noise seed from src so a seeded run stays reproducible.
func NewLayout(name string, src entropy.Source) (Layout, error) {
	switch name {
	case "", LayoutUniform:
		return Uniform{}, nil
	case LayoutClustered:
		seed := int64(src.Float64() * (1 << 53))
		return NewClustered(seed), nil
	default:
		return nil, fmt.Errorf("unknown layout %q", name)
	}
}

// Uniform places agents at a uniformly random point.
type Uniform struct{}

// Place draws x then y.
func (Uniform) Place(b Bounds, src entropy.Source) (float64, float64) {
	x := b.Left + src.Float64()*b.EffectiveWidth()
	y := b.Top + src.Float64()*b.EffectiveHeight()
	return x, y
}

// Clustered rejection-samples uniform candidates against a noise density.
type Clustered struct {
	noise     opensimplex.Noise
	Frequency float64 // Noise cycles per arena pixel
	Contrast  float64 // Exponent sharpening dense areas
	Attempts  int     // Candidates tried before accepting the last one
}

// NewClustered creates a clustered layout with the given noise seed.
func NewClustered(seed int64) *Clustered {
	return &Clustered{
		noise:     opensimplex.NewNormalized(seed),
		Frequency: 0.006,
		Contrast:  3,
		Attempts:  64,
	}
}

// Density returns the acceptance probability at (x, y), in [0, 1].
func (c *Clustered) Density(x, y float64) float64 {
	v := octaveNoise(c.noise, x*c.Frequency, y*c.Frequency, 3, 0.5)
	return math.Pow(v, c.Contrast)
}

// Place draws candidates until one is accepted.
func (c *Clustered) Place(b Bounds, src entropy.Source) (float64, float64) {
	var x, y float64
	for i := 0; i < c.Attempts; i++ {
		x, y = Uniform{}.Place(b, src)
		if src.Float64() < c.Density(x, y) {
			break
		}
	}
	return x, y
}

// octaveNoise sums successive octaves of normalized noise and rescales the
// result to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxAmp := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxAmp += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxAmp
}
