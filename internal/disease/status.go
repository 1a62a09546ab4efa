// Package disease defines the health states an agent moves through and the
// capability flags each state carries.
package disease

import "fmt"

// Status is an agent's point in the disease progression.
type Status uint8

const (
	Healthy Status = iota
	// Incubating is infectious, but no transition produces it.
	Incubating
	Sick
	Recovered
	// Saved would have died and survived thanks to care.
	Saved
	DiedInCare
	DiedWithoutCare
)

// NumStatuses is the total number of status variants.
const NumStatuses = 7

type traits struct {
	name          string
	key           string
	canInfect     bool
	canBeInfected bool
	endState      bool
	deceased      bool
	contracted    bool // has (or had) the illness
}

var table = [NumStatuses]traits{
	Healthy:         {name: "Healthy", key: "healthy", canBeInfected: true},
	Incubating:      {name: "Incubating", key: "incubating", canInfect: true},
	Sick:            {name: "Sick", key: "sick", canInfect: true, contracted: true},
	Recovered:       {name: "Recovered", key: "recovered", endState: true, contracted: true},
	Saved:           {name: "Saved", key: "saved", endState: true, contracted: true},
	DiedInCare:      {name: "Died In Care", key: "died_in_care", endState: true, deceased: true, contracted: true},
	DiedWithoutCare: {name: "Died Without Care", key: "died_without_care", endState: true, deceased: true, contracted: true},
}

// All lists every status in display order.
var All = [NumStatuses]Status{Healthy, Incubating, Sick, Recovered, Saved, DiedInCare, DiedWithoutCare}

func (s Status) valid() bool { return int(s) < NumStatuses }

// String returns the human-readable name.
func (s Status) String() string {
	if !s.valid() {
		return "Unknown"
	}
	return table[s].name
}

// Key returns a stable snake_case identifier used in JSON and storage.
func (s Status) Key() string {
	if !s.valid() {
		return "unknown"
	}
	return table[s].key
}

// CanInfect reports whether an agent in this status infects others on contact.
func (s Status) CanInfect() bool { return s.valid() && table[s].canInfect }

// CanBeInfected reports whether contact with an infectious agent sickens this status.
func (s Status) CanBeInfected() bool { return s.valid() && table[s].canBeInfected }

// IsEndState reports whether the status is terminal.
func (s Status) IsEndState() bool { return s.valid() && table[s].endState }

// IsDeceased reports whether the status denotes death.
func (s Status) IsDeceased() bool { return s.valid() && table[s].deceased }

// HasContracted reports whether the illness has already taken hold.
func (s Status) HasContracted() bool { return s.valid() && table[s].contracted }

// ParseKey maps a Key() string back to its Status.
func ParseKey(key string) (Status, bool) {
	for _, s := range All {
		if table[s].key == key {
			return s, true
		}
	}
	return 0, false
}

// MarshalText encodes the status as its key.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.Key()), nil
}

// UnmarshalText decodes a key produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	st, ok := ParseKey(string(text))
	if !ok {
		return fmt.Errorf("unknown status %q", text)
	}
	*s = st
	return nil
}
