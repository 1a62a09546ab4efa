// Package render draws the outbreak in a terminal with tcell.
package render

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"

	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/engine"
)

const (
	glyphAgent = '●'
	glyphCare  = '◉'
	glyphBar   = '█'

	minWidth  = 20
	minHeight = 6
)

// Controller is the part of the engine the renderer drives.
type Controller interface {
	Latest() engine.Snapshot
	Speed() float64
	SetSpeed(speed float64)
}

// TerminalRenderer handles all terminal rendering. Row 0 is the header,
// the last two rows hold the stacked status bar and the legend, and the
// rows between show the arena.
type TerminalRenderer struct {
	screen      tcell.Screen
	arenaWidth  float64
	arenaHeight float64
	carePlaces  int

	pausedSpeed float64 // Speed to restore when unpausing
}

// NewTerminalRenderer creates a renderer for an arena of the configured size.
func NewTerminalRenderer(screen tcell.Screen, cfg engine.Config) *TerminalRenderer {
	return &TerminalRenderer{
		screen:      screen,
		arenaWidth:  cfg.Width,
		arenaHeight: cfg.Height,
		carePlaces:  cfg.CarePlaces,
		pausedSpeed: 1,
	}
}

// RenderFrame draws snap and shows it.
func (r *TerminalRenderer) RenderFrame(snap engine.Snapshot, speed float64) {
	r.screen.Clear()
	defaultStyle := tcell.StyleDefault.Background(RgbBackground).Foreground(RgbHeaderText)
	r.screen.Fill(' ', defaultStyle)

	w, h := r.screen.Size()
	if w < minWidth || h < minHeight {
		r.drawText(0, 0, "terminal too small", defaultStyle)
		r.screen.Show()
		return
	}

	r.drawHeader(snap, speed, w, defaultStyle)
	r.drawArena(snap, w, h-3, defaultStyle)
	r.drawBar(snap.Counts, h-2, w, defaultStyle)
	r.drawLegend(snap.Counts, h-1, defaultStyle)
	r.screen.Show()
}

func (r *TerminalRenderer) drawHeader(snap engine.Snapshot, speed float64, w int, style tcell.Style) {
	state := fmt.Sprintf("%gx", speed)
	switch {
	case snap.Finished:
		state = "FINISHED"
	case speed <= 0:
		state = "PAUSED"
	}
	line := fmt.Sprintf(" tick %s  %s  care %d/%d  waiting %d",
		humanize.Comma(int64(snap.Tick)), state,
		snap.Counts.InCare, r.carePlaces, snap.Counts.NeedsCare)
	r.drawText(0, 0, line, style.Bold(true))

	help := "space pause  +/- speed  q quit "
	if len(line)+len(help) < w {
		r.drawText(w-len(help), 0, help, style.Foreground(RgbBorder))
	}
}

// cell maps an arena position to a screen cell within a plot of cols x rows.
func (r *TerminalRenderer) cell(x, y float64, cols, rows int) (int, int) {
	cx := int(math.Floor(x / r.arenaWidth * float64(cols)))
	cy := int(math.Floor(y / r.arenaHeight * float64(rows)))
	return clamp(cx, 0, cols-1), clamp(cy, 0, rows-1)
}

func (r *TerminalRenderer) drawArena(snap engine.Snapshot, cols, rows int, style tcell.Style) {
	type occupant struct {
		agent    engine.AgentView
		priority int
	}
	cells := make(map[[2]int]occupant, len(snap.Agents))
	for _, a := range snap.Agents {
		if a.Status.IsDeceased() {
			continue
		}
		cx, cy := r.cell(a.X, a.Y, cols, rows)
		key := [2]int{cx, cy}
		p := drawPriority(a.Status, a.InCare)
		if cur, ok := cells[key]; ok && cur.priority >= p {
			continue
		}
		cells[key] = occupant{agent: a, priority: p}
	}

	for key, occ := range cells {
		glyph := glyphAgent
		s := style.Foreground(StatusColor(occ.agent.Status))
		if occ.agent.InCare {
			glyph = glyphCare
			s = s.Background(RgbCareMarker)
		}
		r.screen.SetContent(key[0], key[1]+1, glyph, nil, s)
	}
}

// drawBar draws a full-width bar split in proportion to each status count.
func (r *TerminalRenderer) drawBar(counts engine.Counts, y, w int, style tcell.Style) {
	if counts.Total == 0 {
		return
	}
	x := 0
	acc := 0
	for _, st := range disease.All {
		acc += counts.Of(st)
		end := int(math.Round(float64(acc) / float64(counts.Total) * float64(w)))
		s := style.Foreground(StatusColor(st))
		for ; x < end && x < w; x++ {
			r.screen.SetContent(x, y, glyphBar, nil, s)
		}
	}
}

func (r *TerminalRenderer) drawLegend(counts engine.Counts, y int, style tcell.Style) {
	x := 1
	for _, st := range disease.All {
		n := counts.Of(st)
		if n == 0 {
			continue
		}
		r.screen.SetContent(x, y, glyphAgent, nil, style.Foreground(StatusColor(st)))
		x += 2
		x += r.drawText(x, y, fmt.Sprintf("%s %s", st.Key(), humanize.Comma(int64(n))), style)
		x += 2
	}
}

// drawText writes s at (x, y) and returns the number of cells used.
func (r *TerminalRenderer) drawText(x, y int, s string, style tcell.Style) int {
	n := 0
	for _, ch := range s {
		r.screen.SetContent(x+n, y, ch, nil, style)
		n++
	}
	return n
}

// HandleKey applies a key press. It returns false when the user asked to quit.
func (r *TerminalRenderer) HandleKey(ev *tcell.EventKey, ctl Controller) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
	default:
		return true
	}

	switch ev.Rune() {
	case 'q':
		return false
	case ' ':
		if speed := ctl.Speed(); speed > 0 {
			r.pausedSpeed = speed
			ctl.SetSpeed(0)
		} else {
			ctl.SetSpeed(r.pausedSpeed)
		}
	case '+', '=':
		if speed := ctl.Speed(); speed > 0 && speed < 1000 {
			ctl.SetSpeed(math.Min(speed*2, 1000))
		}
	case '-':
		if speed := ctl.Speed(); speed > 0.125 {
			ctl.SetSpeed(speed / 2)
		}
	}
	return true
}

// Run redraws the latest snapshot at the given frame interval and handles
// input until the user quits or ctx is cancelled. It owns the screen and
// finalises it on return.
func (r *TerminalRenderer) Run(ctx context.Context, ctl Controller, frame time.Duration) error {
	if err := r.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer r.screen.Fini()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := r.screen.PollEvent()
			if ev == nil {
				close(eventChan)
				return
			}
			eventChan <- ev
		}
	}()

	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-eventChan:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !r.HandleKey(ev, ctl) {
					return nil
				}
			case *tcell.EventResize:
				r.screen.Sync()
			}
		case <-ticker.C:
			r.RenderFrame(ctl.Latest(), ctl.Speed())
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
