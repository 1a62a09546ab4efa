package watch

// Level is a triage verdict, from calm to crisis.
type Level string

const (
	Contained   Level = "CONTAINED"
	Spreading   Level = "SPREADING"
	Strained    Level = "STRAINED"
	Overwhelmed Level = "OVERWHELMED"
)

// spreadShare is the infectious fraction of the population above which an
// outbreak counts as spreading even when it is not currently growing.
const spreadShare = 0.1

// Rank orders levels so escalation can be detected.
func (l Level) Rank() int {
	switch l {
	case Spreading:
		return 1
	case Strained:
		return 2
	case Overwhelmed:
		return 3
	default:
		return 0
	}
}

// Health holds derived diagnostic signals computed from an Observation.
type Health struct {
	Tick          uint64
	Infectious    int     // Sick + incubating now
	InfectedShare float64 // Infectious / population
	Growth        int     // Change in infectious across the history window
	Waiting       int     // Destined to die with no care place
	FreePlaces    int
	Deaths        int
	Level         Level
}

// Triage computes a Health from the observation's data.
func Triage(obs *Observation) *Health {
	by := obs.Stats.Counts.ByStatus
	h := &Health{
		Tick:       obs.Stats.Tick,
		Infectious: by["sick"] + by["incubating"],
		Waiting:    obs.Stats.Counts.NeedsCare,
		Deaths:     by["died_in_care"] + by["died_without_care"],
	}

	if total := obs.Stats.Counts.Total; total > 0 {
		h.InfectedShare = float64(h.Infectious) / float64(total)
	}
	if free := obs.Status.CarePlaces - obs.Stats.Counts.InCare; free > 0 {
		h.FreePlaces = free
	}

	// History is oldest first.
	if n := len(obs.History); n >= 2 {
		h.Growth = obs.History[n-1].Infectious() - obs.History[0].Infectious()
	}

	capacity := obs.Status.CarePlaces
	if capacity < 1 {
		capacity = 1
	}

	switch {
	case obs.Stats.Finished || h.Infectious == 0:
		h.Level = Contained
	case h.Waiting >= capacity:
		h.Level = Overwhelmed
	case h.Waiting > 0:
		h.Level = Strained
	case h.Growth > 0 || h.InfectedShare >= spreadShare:
		h.Level = Spreading
	default:
		h.Level = Contained
	}

	return h
}
