package watch

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// Watcher runs observe, triage, decide and act cycles against one API.
type Watcher struct {
	Observer *Observer
	Actor    *Actor // Nil = observe only
	Journal  *Journal
	Policy   Policy
}

// Cycle executes one observation cycle. It returns the observation so the
// caller can stop once the run has finished.
func (w *Watcher) Cycle() (*Observation, *Health, Decision, error) {
	obs, err := w.Observer.Observe()
	if err != nil {
		return nil, nil, Decision{}, fmt.Errorf("observe: %w", err)
	}

	h := Triage(obs)
	prev, hadPrev := w.Journal.Last()
	if hadPrev && prev.RunID != obs.Status.RunID {
		hadPrev = false
	}

	logAttrs := []any{
		"tick", humanize.Comma(int64(h.Tick)),
		"level", h.Level,
		"infectious", h.Infectious,
		"share", fmt.Sprintf("%.2f", h.InfectedShare),
		"growth", h.Growth,
		"waiting", h.Waiting,
		"free_places", h.FreePlaces,
		"deaths", h.Deaths,
	}
	switch {
	case hadPrev && h.Level.Rank() > prev.Level.Rank():
		slog.Warn("outbreak escalated", append(logAttrs, "from", prev.Level)...)
	case hadPrev && h.Level.Rank() < prev.Level.Rank():
		slog.Info("outbreak eased", append(logAttrs, "from", prev.Level)...)
	default:
		slog.Info("triage", logAttrs...)
	}

	// The journal must forget any earlier run before deciding.
	rec := CycleRecord{
		RunID:         obs.Status.RunID,
		Tick:          h.Tick,
		Level:         h.Level,
		InfectedShare: h.InfectedShare,
		Waiting:       h.Waiting,
		Action:        ActionNone,
	}
	w.Journal.Record(rec)

	policy := w.Policy
	if w.Actor == nil {
		policy.CrisisSpeed = 0
	}
	decision := Decide(h, obs.Status.Speed, w.Journal, policy)

	if decision.Action != ActionNone {
		speed, err := w.Actor.SetSpeed(decision.Speed)
		if err != nil {
			return obs, h, decision, fmt.Errorf("act: %w", err)
		}
		switch decision.Action {
		case ActionSlow:
			w.Journal.SlowedFrom = obs.Status.Speed
		case ActionResume:
			w.Journal.SlowedFrom = 0
		}
		w.Journal.Records[len(w.Journal.Records)-1].Action = decision.Action
		slog.Info("speed changed", "action", decision.Action, "speed", speed, "rationale", decision.Rationale)
	}

	if err := w.Journal.Save(); err != nil {
		slog.Error("failed to save watch journal", "error", err)
	}
	return obs, h, decision, nil
}
