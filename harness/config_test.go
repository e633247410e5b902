package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DroneNumber != 10 || cfg.TCPPort != 8080 || cfg.SimulationMultiplier != 5 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "drone_number: 4\nfanout: 2\nsimulation_multiplier: 2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DroneNumber != 4 || cfg.Fanout != 2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	// untouched keys keep defaults
	if cfg.TTL != 4 || cfg.UDPPort != 7000 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if got := cfg.effective(10); got != 5*time.Second {
		t.Errorf("effective(10) = %v at multiplier 2", got)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("drone_number: 0\n"), 0644)
	if _, err := loadConfig(path); err == nil {
		t.Error("zero drone_number accepted")
	}
	os.WriteFile(path, []byte("drone_number: [broken\n"), 0644)
	if _, err := loadConfig(path); err == nil {
		t.Error("malformed yaml accepted")
	}
}
