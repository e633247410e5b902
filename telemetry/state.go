// Package telemetry speaks the drone's HTTP/JSON wire contract: it fetches
// /state and /stats, pushes /position updates and injects /sensor readings.
// The protocol engine behind those endpoints is an external binary; this
// package only decodes what it reports.
package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/heitortanoue/fanet-harness/convergence"
)

// Cell is a grid cell in the simulated area.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key renders the cell as the stable identifier used for replica
// comparison. Two nodes that learned the same cell through different
// gossip paths produce the same key.
func (c Cell) Key() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// DeltaMeta is the ancillary payload attached to a detection delta.
type DeltaMeta struct {
	DetectedBy string  `json:"detected_by"`
	Timestamp  int64   `json:"timestamp"` // milliseconds since epoch
	Confidence float64 `json:"confidence"`
}

// Delta is one disseminated detection event as reported by /state.
type Delta struct {
	Cell Cell      `json:"cell"`
	Meta DeltaMeta `json:"meta"`
}

// State is the decoded /state response. The canonical schema carries the
// all_deltas array; older drone builds additionally (or only) report a
// latest_readings map keyed by sensor id. Both are decoded, and the legacy
// field is used only when the canonical one is absent.
type State struct {
	AllDeltas     []Delta          `json:"all_deltas"`
	TotalDeltas   int              `json:"total_deltas"`
	UniqueSensors int              `json:"unique_sensors"`
	LatestByArea  map[string]Delta `json:"latest_readings"`

	hasAllDeltas bool
}

func (s *State) UnmarshalJSON(data []byte) error {
	type alias State
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*s = State(a)
	_, s.hasAllDeltas = probe["all_deltas"]
	return nil
}

// Legacy reports whether the response used only the deprecated
// latest_readings shape.
func (s *State) Legacy() bool {
	return !s.hasAllDeltas && s.LatestByArea != nil
}

// DeltaSet maps the reported deltas to the set of stable cell keys used by
// the convergence engine. Payload differences (timestamps, confidence) do
// not affect membership.
func (s *State) DeltaSet() convergence.Set {
	set := convergence.NewSet()
	if s.hasAllDeltas || s.AllDeltas != nil {
		for _, d := range s.AllDeltas {
			set.Add(d.Cell.Key())
		}
		return set
	}
	for _, d := range s.LatestByArea {
		set.Add(d.Cell.Key())
	}
	return set
}

// FirstMeta returns the metadata of the first reported delta, mirroring
// what the per-drone CSV log records each round. ok is false when the
// state is empty.
func (s *State) FirstMeta() (DeltaMeta, bool) {
	if len(s.AllDeltas) == 0 {
		return DeltaMeta{}, false
	}
	return s.AllDeltas[0].Meta, true
}
