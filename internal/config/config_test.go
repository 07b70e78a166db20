package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error for a missing config file: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("expected defaults when the config file doesn't exist, got %+v", cfg)
	}
}

func TestLoadNoPathFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TickPeriod != Default().TickPeriod {
		t.Fatalf("expected default tick period, got %v", cfg.TickPeriod)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "azrael.yaml")
	if err := os.WriteFile(path, []byte("tick_period: 20ms\nsleep_ticks: 5\n"), 0o644); err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if cfg.TickPeriod != 20*time.Millisecond {
		t.Fatalf("expected YAML to override tick period, got %v", cfg.TickPeriod)
	}
	if cfg.SleepTicks != 5 {
		t.Fatalf("expected YAML to override sleep ticks, got %d", cfg.SleepTicks)
	}
	if cfg.MaxSubSteps != Default().MaxSubSteps {
		t.Fatalf("expected unreferenced fields to keep their default, got %d", cfg.MaxSubSteps)
	}
}

func TestEnvOverridesBeatYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "azrael.yaml")
	if err := os.WriteFile(path, []byte("tick_period: 20ms\n"), 0o644); err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}

	t.Setenv("AZRAEL_TICK_PERIOD", "77ms")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if cfg.TickPeriod != 77*time.Millisecond {
		t.Fatalf("expected the environment override to win over YAML, got %v", cfg.TickPeriod)
	}
}

func TestServiceConfigNarrowing(t *testing.T) {
	cfg := Default()
	sc := cfg.ServiceConfig()
	if sc.TickPeriod != cfg.TickPeriod || sc.SleepTicks != cfg.SleepTicks {
		t.Fatalf("expected ServiceConfig to carry over the orchestrator-relevant fields, got %+v", sc)
	}
}
