// Package experiment runs parameter-sweep suites against the emulated
// mesh and compares their results: each experiment gets its own
// timestamped output directory with the raw CSVs, captures, traffic
// analysis, and a human-readable report.
package experiment

import (
	"encoding/json"
	"fmt"
	"os"
)

// Params is one experiment's protocol parameter set. Interval fields are
// in real protocol seconds; the runner divides them by the simulation
// multiplier before handing them to the drone binaries.
type Params struct {
	DroneCount             int     `json:"drone_count"`
	Fanout                 int     `json:"fanout"`
	TTL                    int     `json:"ttl"`
	SampleIntervalSec      float64 `json:"sample_interval_sec"`
	DeltaPushIntervalSec   float64 `json:"delta_push_interval_sec"`
	AntiEntropyIntervalSec float64 `json:"anti_entropy_interval_sec"`
	DurationSec            int     `json:"duration_sec"`
	LossRatePercent        float64 `json:"loss_rate_percent"`
	MobilityModel          string  `json:"mobility_model,omitempty"`
}

// Experiment is one suite entry. A missing "enabled" key means enabled.
type Experiment struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Enabled     *bool  `json:"enabled,omitempty"`
	Parameters  Params `json:"parameters"`
}

func (e Experiment) enabled() bool {
	return e.Enabled == nil || *e.Enabled
}

type suiteFile struct {
	Experiments []Experiment `json:"experiments"`
}

// LoadSuite reads a suite definition and returns the enabled experiments
// in file order.
func LoadSuite(path string) ([]Experiment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf suiteFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var enabled []Experiment
	for _, e := range sf.Experiments {
		if e.ID == "" {
			return nil, fmt.Errorf("parse %s: experiment without id", path)
		}
		if e.enabled() {
			enabled = append(enabled, e)
		}
	}
	return enabled, nil
}

// writeExperimentFile echoes one experiment's definition into its result
// directory so a run is self-describing.
func writeExperimentFile(path string, e Experiment) error {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
