// Package config loads the orchestrator's tunables from a YAML document
// with environment-variable overrides, grounded on the teacher pack's
// yaml.v3-based configuration loading (see DESIGN.md). Every key named
// in spec.md §6 is represented here with its stated default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/azrael-sim/azrael/internal/core/domain/service"
)

// Config is the full set of orchestrator-level tunables plus the
// out-of-core wiring needed to start the server (worker addresses, the
// façade listen address, the SQLite path).
type Config struct {
	TickPeriod          time.Duration `yaml:"tick_period"`
	MaxSubSteps         int           `yaml:"max_substeps"`
	WorkerTimeout       time.Duration `yaml:"worker_timeout"`
	DeadlineMultiplier  float64       `yaml:"deadline_multiplier"`
	CommandRetries      int           `yaml:"command_retries"`
	QuaternionRenormEps float64       `yaml:"quaternion_renorm_eps"`
	SleepLinearVelocity float64       `yaml:"sleep_linear_velocity"`
	SleepAngularVelocity float64      `yaml:"sleep_angular_velocity"`
	SleepTicks          int           `yaml:"sleep_ticks"`
	IslandSizeSoftCap   int           `yaml:"island_size_soft_cap"`
	CommandQueueDepth   int           `yaml:"command_queue_depth"`

	WorkerAddresses []string `yaml:"worker_addresses"`
	WorkerQueueDepth int     `yaml:"worker_queue_depth"`

	StatePath string `yaml:"state_path"`

	FacadeAddr string `yaml:"facade_addr"`

	ForceGridOrigin  [3]float64 `yaml:"force_grid_origin"`
	ForceGridSpacing float64    `yaml:"force_grid_spacing"`
	ForceGridDimsX   int        `yaml:"force_grid_dims_x"`
	ForceGridDimsY   int        `yaml:"force_grid_dims_y"`
	ForceGridDimsZ   int        `yaml:"force_grid_dims_z"`
}

// Default returns the configuration with every spec.md §6 default
// applied, suitable as a base before Load overlays a file and the
// environment.
func Default() Config {
	sd := service.DefaultConfig()
	return Config{
		TickPeriod:           sd.TickPeriod,
		MaxSubSteps:          sd.MaxSubSteps,
		WorkerTimeout:        sd.WorkerTimeout,
		DeadlineMultiplier:   sd.DeadlineMultiplier,
		CommandRetries:       sd.CommandRetries,
		QuaternionRenormEps:  sd.QuaternionRenormEps,
		SleepLinearVelocity:  sd.SleepLinearVelocity,
		SleepAngularVelocity: sd.SleepAngularVelocity,
		SleepTicks:           sd.SleepTicks,
		IslandSizeSoftCap:    sd.IslandSizeSoftCap,
		CommandQueueDepth:    256,
		WorkerAddresses:      []string{"localhost:7070"},
		WorkerQueueDepth:     8,
		StatePath:            "azrael.db",
		FacadeAddr:           ":8080",
		ForceGridOrigin:      [3]float64{-50, -50, -50},
		ForceGridSpacing:     5,
		ForceGridDimsX:       20,
		ForceGridDimsY:       20,
		ForceGridDimsZ:       20,
	}
}

// ServiceConfig narrows Config to the orchestrator's own Config shape.
func (c Config) ServiceConfig() service.Config {
	return service.Config{
		TickPeriod:           c.TickPeriod,
		MaxSubSteps:          c.MaxSubSteps,
		WorkerTimeout:        c.WorkerTimeout,
		DeadlineMultiplier:   c.DeadlineMultiplier,
		CommandRetries:       c.CommandRetries,
		QuaternionRenormEps:  c.QuaternionRenormEps,
		SleepLinearVelocity:  c.SleepLinearVelocity,
		SleepAngularVelocity: c.SleepAngularVelocity,
		SleepTicks:           c.SleepTicks,
		IslandSizeSoftCap:    c.IslandSizeSoftCap,
	}
}

// Load reads path (if non-empty and it exists) as YAML over the
// defaults, then applies AZRAEL_<KEY> environment overrides (defaults <
// file < environment). Overrides are read for tick_period,
// max_substeps, worker_timeout, deadline_multiplier, command_retries,
// sleep_ticks, island_size_soft_cap, state_path and facade_addr; the
// other fields take no environment override.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("azrael: reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("azrael: parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := durationEnv("AZRAEL_TICK_PERIOD"); ok {
		cfg.TickPeriod = v
	}
	if v, ok := intEnv("AZRAEL_MAX_SUBSTEPS"); ok {
		cfg.MaxSubSteps = v
	}
	if v, ok := durationEnv("AZRAEL_WORKER_TIMEOUT"); ok {
		cfg.WorkerTimeout = v
	}
	if v, ok := floatEnv("AZRAEL_DEADLINE_MULTIPLIER"); ok {
		cfg.DeadlineMultiplier = v
	}
	if v, ok := intEnv("AZRAEL_COMMAND_RETRIES"); ok {
		cfg.CommandRetries = v
	}
	if v, ok := intEnv("AZRAEL_SLEEP_TICKS"); ok {
		cfg.SleepTicks = v
	}
	if v, ok := intEnv("AZRAEL_ISLAND_SIZE_SOFT_CAP"); ok {
		cfg.IslandSizeSoftCap = v
	}
	if v, ok := os.LookupEnv("AZRAEL_STATE_PATH"); ok {
		cfg.StatePath = v
	}
	if v, ok := os.LookupEnv("AZRAEL_FACADE_ADDR"); ok {
		cfg.FacadeAddr = v
	}
}

func durationEnv(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func intEnv(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func floatEnv(key string) (float64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
