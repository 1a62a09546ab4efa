package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/arena"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every setting read once at simulation setup.
type Config struct {
	Population        int     `json:"population"`
	MovementSpeed     float64 `json:"movement_speed"`
	AgentRadius       float64 `json:"agent_radius"`        // Visual radius; also the contact distance
	RecoveryTime      int     `json:"recovery_time"`       // Ticks
	DeathRate         float64 `json:"death_rate"`          // 0.0–1.0
	DeathTime         int     `json:"death_time"`          // Ticks
	CareRecoveryBonus int     `json:"care_recovery_bonus"` // Ticks
	CareLifeSaveRate  float64 `json:"care_life_save_rate"` // 0.0–1.0
	CarePlaces        int     `json:"care_places"`
	Width             float64 `json:"width"`
	Height            float64 `json:"height"`
	Layout            string  `json:"layout"` // "uniform" or "clustered"
}

// DefaultConfig returns the classic outbreak setup.
func DefaultConfig() Config {
	return Config{
		Population:        200,
		MovementSpeed:     2,
		AgentRadius:       8,
		RecoveryTime:      1000,
		DeathRate:         0.5,
		DeathTime:         500,
		CareRecoveryBonus: 1,
		CareLifeSaveRate:  1.0,
		CarePlaces:        20,
		Width:             800,
		Height:            600,
		Layout:            arena.LayoutUniform,
	}
}

// SmallTestConfig returns a tiny, fast-resolving outbreak for tests.
func SmallTestConfig() Config {
	return Config{
		Population:        5,
		MovementSpeed:     2,
		AgentRadius:       8,
		RecoveryTime:      30,
		DeathRate:         0.5,
		DeathTime:         20,
		CareRecoveryBonus: 5,
		CareLifeSaveRate:  0.5,
		CarePlaces:        1,
		Width:             60,
		Height:            60,
		Layout:            arena.LayoutUniform,
	}
}

// Validate reports the first setting that would make the simulation
// meaningless.
func (c Config) Validate() error {
	switch {
	case c.Population <= 0:
		return fmt.Errorf("%w: population must be positive, got %d", ErrInvalidConfig, c.Population)
	case c.CarePlaces <= 0:
		return fmt.Errorf("%w: care places must be positive, got %d", ErrInvalidConfig, c.CarePlaces)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: arena must be positive, got %vx%v", ErrInvalidConfig, c.Width, c.Height)
	case c.AgentRadius <= 0:
		return fmt.Errorf("%w: agent radius must be positive, got %v", ErrInvalidConfig, c.AgentRadius)
	case c.AgentRadius >= c.Width || c.AgentRadius >= c.Height:
		return fmt.Errorf("%w: agent radius %v leaves no room in a %vx%v arena", ErrInvalidConfig, c.AgentRadius, c.Width, c.Height)
	case c.MovementSpeed < 0:
		return fmt.Errorf("%w: movement speed must not be negative, got %v", ErrInvalidConfig, c.MovementSpeed)
	case !isProbability(c.DeathRate):
		return fmt.Errorf("%w: death rate must be within [0,1], got %v", ErrInvalidConfig, c.DeathRate)
	case !isProbability(c.CareLifeSaveRate):
		return fmt.Errorf("%w: care life-save rate must be within [0,1], got %v", ErrInvalidConfig, c.CareLifeSaveRate)
	case c.RecoveryTime < 0 || c.DeathTime < 0 || c.CareRecoveryBonus < 0:
		return fmt.Errorf("%w: timers must not be negative (recovery %d, death %d, care bonus %d)",
			ErrInvalidConfig, c.RecoveryTime, c.DeathTime, c.CareRecoveryBonus)
	case c.Layout != "" && c.Layout != arena.LayoutUniform && c.Layout != arena.LayoutClustered:
		return fmt.Errorf("%w: unknown layout %q", ErrInvalidConfig, c.Layout)
	}
	return nil
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}

// Rules extracts the per-agent disease parameters.
func (c Config) Rules() agents.Rules {
	return agents.Rules{
		RecoveryTime:      c.RecoveryTime,
		DeathRate:         c.DeathRate,
		DeathTime:         c.DeathTime,
		CareRecoveryBonus: c.CareRecoveryBonus,
		CareLifeSaveRate:  c.CareLifeSaveRate,
	}
}

// Bounds computes the arena's effective bounds.
func (c Config) Bounds() arena.Bounds {
	return arena.NewBounds(c.Width, c.Height, c.AgentRadius)
}

// LoadConfig reads a JSON file over DefaultConfig and validates the result.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
