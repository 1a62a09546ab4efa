package watch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

const maxRecords = 20

// CycleRecord captures what happened in a single watch cycle.
type CycleRecord struct {
	RunID         string  `json:"run_id"`
	Tick          uint64  `json:"tick"`
	Level         Level   `json:"level"`
	InfectedShare float64 `json:"infected_share"`
	Waiting       int     `json:"waiting"`
	Action        string  `json:"action"`
}

// Journal keeps recent cycle records and the speed to restore after a
// crisis slowdown. It survives watcher restarts through a JSON file.
type Journal struct {
	Records    []CycleRecord `json:"records"`
	SlowedFrom float64       `json:"slowed_from,omitempty"`

	path string
}

// LoadJournal reads the journal file from disk. Returns an empty journal if
// it is missing or unreadable.
func LoadJournal(path string) *Journal {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Journal{path: path}
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		slog.Warn("watch journal corrupted, starting fresh", "error", err)
		return &Journal{path: path}
	}
	j.path = path
	return &j
}

// Save writes the journal to disk. A journal without a path is memory-only.
func (j *Journal) Save() error {
	if j.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0644); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Record adds a cycle record, trimming to maxRecords. Records from an
// earlier run are discarded along with any pending speed restore.
func (j *Journal) Record(r CycleRecord) {
	if last, ok := j.Last(); ok && last.RunID != r.RunID {
		j.Records = nil
		j.SlowedFrom = 0
	}
	j.Records = append(j.Records, r)
	if len(j.Records) > maxRecords {
		j.Records = j.Records[len(j.Records)-maxRecords:]
	}
}

// Last returns the most recent record.
func (j *Journal) Last() (CycleRecord, bool) {
	if len(j.Records) == 0 {
		return CycleRecord{}, false
	}
	return j.Records[len(j.Records)-1], true
}
