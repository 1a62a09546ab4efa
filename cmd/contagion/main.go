// Command contagion runs the epidemic simulation with an optional terminal
// view, run-history database and HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/talgya/contagion/internal/api"
	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/entropy"
	"github.com/talgya/contagion/internal/persistence"
	"github.com/talgya/contagion/internal/render"
)

func main() {
	configPath := flag.String("config", "", "JSON config file overlaid on the defaults")
	seed := flag.Int64("seed", 0, "random seed (0 = pick one and log it)")
	useCrypto := flag.Bool("crypto", false, "draw from crypto/rand; the run cannot be replayed and -seed is ignored")
	dbPath := flag.String("db", "data/contagion.db", "run-history database (empty = disabled)")
	port := flag.Int("port", 8080, "HTTP API port (0 = disabled)")
	speed := flag.Float64("speed", 1, "playback speed multiplier (0 = start paused)")
	headless := flag.Bool("headless", false, "run without the terminal view")
	maxTicks := flag.Uint64("max-ticks", 0, "stop after this many ticks (0 = run to completion)")
	logPath := flag.String("log", "contagion.log", "log file used while the terminal view is active")
	flag.Parse()

	// The terminal view owns stdout; logs go to a file instead.
	interactive := !*headless && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	var logOut io.Writer = os.Stdout
	if interactive {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// ── Configuration ─────────────────────────────────────────────────
	cfg := engine.DefaultConfig()
	if *configPath != "" {
		loaded, err := engine.LoadConfig(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	src, runSeed := pickSource(*useCrypto, *seed)
	*seed = runSeed
	slog.Info("contagion starting",
		"seed", *seed,
		"crypto", *useCrypto,
		"population", humanize.Comma(int64(cfg.Population)),
		"care_places", cfg.CarePlaces,
		"arena", fmt.Sprintf("%gx%g", cfg.Width, cfg.Height),
		"layout", cfg.Layout,
	)

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.NewSimulation(cfg, src)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}

	eng := engine.NewEngine(sim)
	eng.SetSpeed(*speed)
	eng.MaxTicks = *maxTicks

	// ── Run history ───────────────────────────────────────────────────
	runID := uuid.NewString()
	var db *persistence.DB
	var rec *persistence.Recorder
	if *dbPath != "" {
		os.MkdirAll(filepath.Dir(*dbPath), 0755)
		db, err = persistence.Open(*dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		runID, err = db.StartRun(cfg, *seed)
		if err != nil {
			slog.Error("failed to record run", "error", err)
			os.Exit(1)
		}
		slog.Info("database opened", "path", *dbPath, "run_id", runID)

		rec = persistence.NewRecorder(db, runID)
		initial := sim.Snapshot()
		initial.Events = sim.Events
		rec.Observe(initial)
		eng.OnTick = rec.Observe
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if *port > 0 {
		adminKey := os.Getenv("CONTAGION_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("CONTAGION_ADMIN_KEY not set, admin POST endpoints disabled")
		}
		apiServer := &api.Server{
			Eng:      eng,
			DB:       db,
			RunID:    runID,
			Config:   cfg,
			Seed:     *seed,
			Port:     *port,
			AdminKey: adminKey,
			RelayKey: os.Getenv("CONTAGION_RELAY_KEY"),
		}
		srv := apiServer.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Shutdown(ctx, srv); err != nil {
				slog.Error("HTTP shutdown failed", "error", err)
				srv.Close()
			}
		}()
	}

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if interactive {
		err = runInteractive(ctx, eng, cfg)
	} else {
		if *port > 0 {
			fmt.Printf("API: http://localhost:%d/api/v1/status\n", *port)
		}
		fmt.Printf("Simulating %s agents (seed %d)... (Ctrl+C to stop)\n",
			humanize.Comma(int64(cfg.Population)), *seed)
		err = eng.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("simulation failed", "error", err)
	}

	// ── Shutdown ──────────────────────────────────────────────────────
	final := eng.Latest()
	if rec != nil {
		if err := rec.Finish(final.Tick); err != nil {
			slog.Error("final flush failed", "error", err)
		}
	}
	printSummary(final, cfg)
}

// pickSource returns the run's random source and the seed to record for it.
// Crypto runs record seed 0 since they cannot be replayed.
func pickSource(useCrypto bool, seed int64) (entropy.Source, int64) {
	if useCrypto {
		return entropy.Crypto{}, 0
	}
	if seed == 0 {
		seed = entropy.NewSeed()
	}
	return entropy.Seeded(seed), seed
}

// runInteractive shows the terminal view while the engine runs in the
// background. The view stays up after the outbreak ends until the user quits.
func runInteractive(ctx context.Context, eng *engine.Engine, cfg engine.Config) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	renderer := render.NewTerminalRenderer(screen, cfg)

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	if err := renderer.Run(ctx, eng, 33*time.Millisecond); err != nil {
		eng.Stop()
		<-engineDone
		return err
	}
	eng.Stop()
	return <-engineDone
}

func printSummary(snap engine.Snapshot, cfg engine.Config) {
	state := "stopped"
	if snap.Finished {
		state = "over"
	}
	fmt.Printf("\nOutbreak %s after %s ticks.\n", state, humanize.Comma(int64(snap.Tick)))
	for _, st := range disease.All {
		if n := snap.Counts.Of(st); n > 0 {
			fmt.Printf("  %-18s %s\n", st.String(), humanize.Comma(int64(n)))
		}
	}
	fmt.Printf("  care places in use  %d/%d\n", snap.Counts.InCare, cfg.CarePlaces)
}
