// Package watch implements the outbreak watcher.
// It observes a running simulation via the API, triages care pressure,
// and optionally slows the run down through the admin speed endpoint.
package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// historyWindow is how many ticks of history an observation asks for.
const historyWindow = 50

// errUnavailable marks an endpoint the server has switched off.
var errUnavailable = errors.New("endpoint unavailable")

// Observation holds all data collected during an observation cycle.
type Observation struct {
	Status  RunStatus         `json:"status"`
	Stats   RunStats          `json:"stats"`
	History []StatsHistoryRow `json:"history"` // Oldest first; empty when the run has no database
}

// RunStatus mirrors GET /api/v1/status.
type RunStatus struct {
	Name       string  `json:"name"`
	RunID      string  `json:"run_id"`
	Seed       int64   `json:"seed"`
	Tick       uint64  `json:"tick"`
	State      string  `json:"state"`
	Finished   bool    `json:"finished"`
	Speed      float64 `json:"speed"`
	Running    bool    `json:"running"`
	Population int     `json:"population"`
	CarePlaces int     `json:"care_places"`
	InCare     int     `json:"in_care"`
	NeedsCare  int     `json:"needs_care"`
}

// RunStats mirrors GET /api/v1/stats.
type RunStats struct {
	Tick   uint64 `json:"tick"`
	Counts struct {
		ByStatus  map[string]int `json:"by_status"`
		InCare    int            `json:"in_care"`
		NeedsCare int            `json:"needs_care"`
		Total     int            `json:"total"`
	} `json:"counts"`
	Finished bool `json:"finished"`
}

// StatsHistoryRow mirrors items from GET /api/v1/stats/history.
type StatsHistoryRow struct {
	Tick            uint64 `json:"tick"`
	Healthy         int    `json:"healthy"`
	Incubating      int    `json:"incubating"`
	Sick            int    `json:"sick"`
	Recovered       int    `json:"recovered"`
	Saved           int    `json:"saved"`
	DiedInCare      int    `json:"died_in_care"`
	DiedWithoutCare int    `json:"died_without_care"`
	InCare          int    `json:"in_care"`
	NeedsCare       int    `json:"needs_care"`
}

// Infectious is the number of agents able to pass the illness on.
func (r StatsHistoryRow) Infectious() int { return r.Sick + r.Incubating }

// Observer fetches run state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches status, stats and recent history. A server without a
// history database yields an observation with no history.
func (o *Observer) Observe() (*Observation, error) {
	obs := &Observation{}

	if err := o.fetchJSON("/api/v1/status", &obs.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/stats", &obs.Stats); err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}

	from := uint64(0)
	if obs.Stats.Tick > historyWindow {
		from = obs.Stats.Tick - historyWindow
	}
	path := fmt.Sprintf("/api/v1/stats/history?from=%d&limit=%d", from, historyWindow+1)
	if err := o.fetchJSON(path, &obs.History); err != nil {
		if !errors.Is(err, errUnavailable) {
			return nil, fmt.Errorf("fetch stats history: %w", err)
		}
		obs.History = nil
	}

	return obs, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("GET %s: %w", path, errUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
