package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the single-run harness setup, read from config.yaml. Interval
// fields are protocol seconds; effective wall-clock values come from the
// simulation multiplier.
type Config struct {
	DroneNumber int     `yaml:"drone_number"`
	DroneRange  float64 `yaml:"drone_range"`
	XMax        int     `yaml:"x_max"`
	YMax        int     `yaml:"y_max"`

	SimulationMultiplier   float64 `yaml:"simulation_multiplier"`
	SampleIntervalSec      float64 `yaml:"sample_interval_sec"`
	FetchIntervalSec       float64 `yaml:"fetch_interval_sec"`
	DeltaPushIntervalSec   float64 `yaml:"delta_push_interval_sec"`
	AntiEntropyIntervalSec float64 `yaml:"anti_entropy_interval_sec"`

	Fanout              int     `yaml:"fanout"`
	TTL                 int     `yaml:"ttl"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	HelloIntervalMS     int     `yaml:"hello_interval_ms"`
	HelloJitterMS       int     `yaml:"hello_jitter_ms"`

	BindAddr string `yaml:"bind_addr"`
	TCPPort  int    `yaml:"tcp_port"`
	UDPPort  int    `yaml:"udp_port"`

	ExecPath     string `yaml:"exec_path"`
	OutputDir    string `yaml:"output_dir"`
	TelemetryDir string `yaml:"telemetry_dir"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

func defaultConfig() Config {
	return Config{
		DroneNumber:            10,
		DroneRange:             300,
		XMax:                   2500,
		YMax:                   2500,
		SimulationMultiplier:   5,
		SampleIntervalSec:      10,
		FetchIntervalSec:       10,
		DeltaPushIntervalSec:   3,
		AntiEntropyIntervalSec: 60,
		Fanout:                 3,
		TTL:                    4,
		ConfidenceThreshold:    50.0,
		HelloIntervalMS:        1000,
		HelloJitterMS:          200,
		BindAddr:               "0.0.0.0",
		TCPPort:                8080,
		UDPPort:                7000,
		ExecPath:               "../drone/bin/drone-linux",
		OutputDir:              "drone_execution_data",
		TelemetryDir:           ".",
		MetricsAddr:            ":9090",
	}
}

// loadConfig reads config.yaml over the defaults. A missing file is not
// an error; the defaults mirror the historical constants.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.DroneNumber <= 0 {
		return cfg, fmt.Errorf("%s: drone_number must be positive", path)
	}
	if cfg.SimulationMultiplier <= 0 {
		return cfg, fmt.Errorf("%s: simulation_multiplier must be positive", path)
	}
	return cfg, nil
}

// effective converts a protocol interval to emulation wall time.
func (c Config) effective(protocolSec float64) time.Duration {
	return time.Duration(protocolSec / c.SimulationMultiplier * float64(time.Second))
}
