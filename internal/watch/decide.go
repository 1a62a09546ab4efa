package watch

import "fmt"

// Actions the watcher can take.
const (
	ActionNone   = "none"
	ActionSlow   = "slow"
	ActionResume = "resume"
)

// Decision is the watcher's verdict for one cycle.
type Decision struct {
	Action    string  `json:"action"`
	Speed     float64 `json:"speed,omitempty"`
	Rationale string  `json:"rationale"`
}

// Policy tunes Decide.
type Policy struct {
	CrisisSpeed float64 // Speed to drop to while overwhelmed (0 = never intervene)
}

// DefaultPolicy halves real time while care is overwhelmed.
func DefaultPolicy() Policy {
	return Policy{CrisisSpeed: 0.5}
}

// Decide picks at most one speed change. While overwhelmed the run is
// slowed to the crisis speed; once the pressure eases the speed recorded
// in the journal is restored.
func Decide(h *Health, speed float64, j *Journal, p Policy) Decision {
	if p.CrisisSpeed <= 0 {
		return Decision{Action: ActionNone, Rationale: "interventions disabled"}
	}

	switch {
	case h.Level == Overwhelmed && speed > p.CrisisSpeed:
		return Decision{
			Action: ActionSlow,
			Speed:  p.CrisisSpeed,
			Rationale: fmt.Sprintf("%d agents waiting for care with %d free places",
				h.Waiting, h.FreePlaces),
		}
	case h.Level != Overwhelmed && j.SlowedFrom > 0 && speed == p.CrisisSpeed:
		return Decision{
			Action:    ActionResume,
			Speed:     j.SlowedFrom,
			Rationale: fmt.Sprintf("care pressure eased to %s", h.Level),
		}
	}
	return Decision{Action: ActionNone, Rationale: string(h.Level)}
}
