package render

import (
	"github.com/gdamore/tcell/v2"

	"github.com/talgya/contagion/internal/disease"
)

// Status palette, one colour per disease.Status.
var (
	RgbHealthy         = tcell.NewRGBColor(72, 61, 139)   // Dark slate blue
	RgbIncubating      = tcell.NewRGBColor(139, 0, 0)     // Dark red
	RgbSick            = tcell.NewRGBColor(220, 20, 60)   // Crimson
	RgbRecovered       = tcell.NewRGBColor(0, 100, 0)     // Dark green
	RgbSaved           = tcell.NewRGBColor(85, 107, 47)   // Dark olive green
	RgbDiedInCare      = tcell.NewRGBColor(128, 128, 128) // Grey
	RgbDiedWithoutCare = tcell.NewRGBColor(0, 0, 0)
	RgbUnknown         = tcell.NewRGBColor(255, 0, 255)

	RgbBackground = tcell.NewRGBColor(245, 245, 240)
	RgbCareMarker = tcell.NewRGBColor(0, 100, 0)
	RgbHeaderText = tcell.NewRGBColor(30, 30, 30)
	RgbBorder     = tcell.NewRGBColor(180, 180, 170)
)

// StatusColor returns the palette colour for st.
func StatusColor(st disease.Status) tcell.Color {
	switch st {
	case disease.Healthy:
		return RgbHealthy
	case disease.Incubating:
		return RgbIncubating
	case disease.Sick:
		return RgbSick
	case disease.Recovered:
		return RgbRecovered
	case disease.Saved:
		return RgbSaved
	case disease.DiedInCare:
		return RgbDiedInCare
	case disease.DiedWithoutCare:
		return RgbDiedWithoutCare
	default:
		return RgbUnknown
	}
}

// drawPriority decides which agent wins a shared cell. Infectious agents
// are the most interesting thing on screen.
func drawPriority(st disease.Status, inCare bool) int {
	p := 0
	switch {
	case st.CanInfect():
		p = 3
	case st == disease.Healthy:
		p = 1
	case st.IsEndState():
		p = 2
	}
	if inCare {
		p += 4
	}
	return p
}
