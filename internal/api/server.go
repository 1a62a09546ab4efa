// Package api provides the HTTP API for observing a running outbreak.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/persistence"
)

const maxSSEConns = 4

// Server serves simulation state over HTTP.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; history endpoints return 503 without it
	RunID    string
	Config   engine.Config
	Seed     int64
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	RelayKey string // Bearer token for SSE stream endpoint. Empty = streaming disabled.

	// Active SSE connection count (atomic).
	sseConns int32

	historyLimiter *RateLimiter
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	if s.historyLimiter == nil {
		s.historyLimiter = NewRateLimiter(120, time.Minute)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stats/history", RateLimitMiddleware(s.historyLimiter, s.handleStatsHistory))
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/run", s.handleRun)

	// SSE streaming endpoint (GET, requires the relay bearer token).
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server
// can be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops the server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context, srv *http.Server) error {
	if s.historyLimiter != nil {
		s.historyLimiter.Stop()
	}
	return srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerMatches(r *http.Request, key string) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == key
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no CONTAGION_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !bearerMatches(r, s.AdminKey) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Eng.Latest()
	state := engine.Running
	if snap.Finished {
		state = engine.Terminated
	}

	writeJSON(w, map[string]any{
		"name":        "contagion",
		"run_id":      s.RunID,
		"seed":        s.Seed,
		"tick":        snap.Tick,
		"state":       state.String(),
		"finished":    snap.Finished,
		"speed":       s.Eng.Speed(),
		"running":     s.Eng.Running(),
		"population":  snap.Counts.Total,
		"care_places": s.Config.CarePlaces,
		"in_care":     snap.Counts.InCare,
		"needs_care":  snap.Counts.NeedsCare,
		"config":      s.Config,
	})
}

// handleAgents returns the drawable agent list, optionally filtered with
// ?status=<key> and ?in_care=true.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	snap := s.Eng.Latest()

	var want *disease.Status
	if key := r.URL.Query().Get("status"); key != "" {
		st, ok := disease.ParseKey(key)
		if !ok {
			http.Error(w, "unknown status", http.StatusBadRequest)
			return
		}
		want = &st
	}
	careOnly := r.URL.Query().Get("in_care") == "true"

	out := make([]engine.AgentView, 0, len(snap.Agents))
	for _, a := range snap.Agents {
		if want != nil && a.Status != *want {
			continue
		}
		if careOnly && !a.InCare {
			continue
		}
		out = append(out, a)
	}

	writeJSON(w, map[string]any{
		"tick":   snap.Tick,
		"width":  s.Config.Width,
		"height": s.Config.Height,
		"radius": s.Config.AgentRadius,
		"agents": out,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.Eng.Latest()
	writeJSON(w, map[string]any{
		"tick":     snap.Tick,
		"counts":   snap.Counts,
		"finished": snap.Finished,
	})
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	fromTick := uint64(0)
	toTick := uint64(1<<63 - 1) // Max int64; larger values overflow the driver.
	limit := 100

	if f := r.URL.Query().Get("from"); f != "" {
		if v, err := strconv.ParseUint(f, 10, 64); err == nil {
			fromTick = v
		}
	}
	if t := r.URL.Query().Get("to"); t != "" {
		if v, err := strconv.ParseUint(t, 10, 64); err == nil {
			toTick = v
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 5000 {
			limit = v
		}
	}

	rows, err := s.DB.LoadStatsHistory(s.RunID, fromTick, toTick, limit)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// Return an empty array; the run may not have rows yet.
		writeJSON(w, []persistence.StatsRow{})
		return
	}
	if rows == nil {
		rows = []persistence.StatsRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	var events []engine.Event
	switch r.URL.Query().Get("source") {
	case "", "memory":
		events = s.Eng.RecentEvents(limit)
	case "db":
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		var err error
		events, err = s.DB.RecentEvents(s.RunID, limit)
		if err != nil {
			slog.Error("events query failed", "error", err)
			http.Error(w, "events query failed", http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []engine.Event{}
		}
	default:
		http.Error(w, "source must be memory or db", http.StatusBadRequest)
		return
	}
	if cat := r.URL.Query().Get("category"); cat != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Category == cat {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	writeJSON(w, events)
}

// handleRun returns the stored record of the current run, including the
// configuration it was started with.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := s.DB.GetRun(s.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "run not recorded", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("run query failed", "run_id", s.RunID, "error", err)
		http.Error(w, "run query failed", http.StatusInternalServerError)
		return
	}
	cfg, err := run.Config()
	if err != nil {
		slog.Error("stored run config unreadable", "run_id", s.RunID, "error", err)
		http.Error(w, "stored config unreadable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"run":    run,
		"config": cfg,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Auth check uses the relay key, not the admin key.
	if s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	if !bearerMatches(r, s.RelayKey) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Connection limit.
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Eng.Subscribe()
	defer s.Eng.Unsubscribe(subID)

	// Catch-up: the current state.
	writeSSE(w, "tick", s.Eng.Latest().Summary())
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	// Stream loop with heartbeat.
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case summary, ok := <-ch:
			if !ok {
				writeSSE(w, "end", map[string]bool{"finished": true})
				flusher.Flush()
				return
			}
			writeSSE(w, "tick", summary)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("SSE encode failed", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
