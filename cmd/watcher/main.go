// Command watcher follows a running contagion API and logs triage verdicts.
// With an admin key it also slows the run while care is overwhelmed and
// restores the speed once the pressure eases.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/contagion/internal/watch"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("CONTAGION_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("CONTAGION_ADMIN_KEY")
	intervalSec := envIntOrDefault("WATCH_INTERVAL", 10)
	crisisSpeed := envFloatOrDefault("WATCH_CRISIS_SPEED", watch.DefaultPolicy().CrisisSpeed)
	journalPath := envOrDefault("WATCH_JOURNAL", "watch_journal.json")

	interval := time.Duration(intervalSec) * time.Second

	w := &watch.Watcher{
		Observer: watch.NewObserver(apiURL),
		Journal:  watch.LoadJournal(journalPath),
		Policy:   watch.Policy{CrisisSpeed: crisisSpeed},
	}
	if adminKey != "" {
		w.Actor = watch.NewActor(apiURL, adminKey)
	} else {
		slog.Warn("CONTAGION_ADMIN_KEY not set, watching only")
	}

	slog.Info("contagion watcher starting",
		"api_url", apiURL,
		"interval", interval,
		"crisis_speed", crisisSpeed,
	)

	slog.Info("waiting for contagion API...")
	waitForAPI(apiURL)

	if runCycle(w) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if runCycle(w) {
				return
			}
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Watcher stopped.")
			return
		}
	}
}

// runCycle executes one watch cycle and reports whether the run is over.
func runCycle(w *watch.Watcher) bool {
	obs, h, _, err := w.Cycle()
	if err != nil {
		slog.Error("watch cycle failed", "error", err)
		return false
	}
	if obs.Status.Finished {
		slog.Info("outbreak over",
			"tick", h.Tick,
			"deaths", h.Deaths,
			"run_id", obs.Status.RunID,
		)
		return true
	}
	return false
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envIntOrDefault reads a positive integer; anything else falls back.
func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(apiURL string) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("contagion API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			slog.Error("contagion API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("contagion not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
