// Package arena describes the bounded rectangle agents move in and how
// they are scattered across it at spawn.
package arena

// Bounds is the arena rectangle with its effective (inset) edges.
// The inset is half the agent radius on every side, so an agent centred
// anywhere inside the effective bounds is fully visible.
type Bounds struct {
	Width  float64
	Height float64
	Inset  float64

	Left, Right float64
	Top, Bottom float64
}

// NewBounds computes effective bounds for a width×height arena and the
// given agent radius.
func NewBounds(width, height, agentRadius float64) Bounds {
	half := agentRadius / 2
	return Bounds{
		Width:  width,
		Height: height,
		Inset:  half,
		Left:   half,
		Right:  width - half,
		Top:    half,
		Bottom: height - half,
	}
}

// EffectiveWidth is the horizontal span agents may be centred in.
func (b Bounds) EffectiveWidth() float64 { return b.Right - b.Left }

// EffectiveHeight is the vertical span agents may be centred in.
func (b Bounds) EffectiveHeight() float64 { return b.Bottom - b.Top }

// Contains reports whether (x, y) lies inside the effective bounds.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.Left && x <= b.Right && y >= b.Top && y <= b.Bottom
}

// OutsideX reports whether x has crossed either horizontal edge.
func (b Bounds) OutsideX(x float64) bool { return x > b.Right || x < b.Left }

// OutsideY reports whether y has crossed either vertical edge.
func (b Bounds) OutsideY(y float64) bool { return y > b.Bottom || y < b.Top }
