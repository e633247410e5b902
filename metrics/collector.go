// Package metrics persists sampled and computed values as fixed-schema CSV
// families, one file per metric family per run, for offline analysis.
package metrics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/heitortanoue/fanet-harness/convergence"
	"github.com/heitortanoue/fanet-harness/telemetry"
)

// Family names double as the CSV file basenames.
const (
	FamilyNetwork     = "network_load"
	FamilyCRDT        = "crdt_state"
	FamilyTopology    = "topology"
	FamilyConvergence = "convergence"
)

var familyHeaders = map[string][]string{
	FamilyNetwork: {
		"timestamp", "drone_id", "scenario_id",
		"bytes_sent_total", "bytes_recv_total",
		"msgs_sent_total", "msgs_recv_total",
		"delta_msgs_sent", "ae_msgs_sent", "hello_msgs_sent",
		"duplicates_dropped", "dedup_cache_size",
	},
	FamilyCRDT: {
		"timestamp", "drone_id", "scenario_id",
		"active_elements", "state_entries", "set_digest", "all_deltas_json",
	},
	FamilyTopology: {
		"timestamp", "drone_id", "scenario_id",
		"pos_x", "pos_y",
		"ground_truth_neighbors", "actual_neighbors",
		"precision", "recall", "f1_score",
	},
	FamilyConvergence: {
		"timestamp", "scenario_id", "iteration", "convergence_index",
		"num_drones", "avg_delta_count", "min_delta_count", "max_delta_count",
	},
}

// Collector owns one run's CSV writers. Each family's writer is used from
// a single goroutine path, so no locking is layered on top.
type Collector struct {
	dir      string
	scenario string
	files    map[string]*os.File
	writers  map[string]*csv.Writer
}

func NewCollector(dir, scenarioID string) (*Collector, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	c := &Collector{
		dir:      dir,
		scenario: scenarioID,
		files:    make(map[string]*os.File),
		writers:  make(map[string]*csv.Writer),
	}
	for family, header := range familyHeaders {
		f, err := os.Create(filepath.Join(dir, family+".csv"))
		if err != nil {
			c.Close()
			return nil, err
		}
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			c.Close()
			return nil, err
		}
		c.files[family] = f
		c.writers[family] = w
	}
	return c, nil
}

// RecordNetwork appends one node's network-load counters.
func (c *Collector) RecordNetwork(at time.Time, droneID string, s *telemetry.Stats) error {
	d := s.Dissemination
	return c.write(FamilyNetwork,
		ts(at), droneID, c.scenario,
		itoa(d.BytesSentTotal), itoa(d.BytesRecvTotal),
		itoa(d.SentCount), itoa(d.ReceivedCount),
		itoa(d.DeltaSent), itoa(d.AntiEntropyCount), itoa(d.HelloSent),
		itoa(d.DuplicatesDropped), strconv.Itoa(d.CacheSize),
	)
}

// RecordCRDT appends one node's replica state: element counts, the
// order-independent set digest, and the raw delta list for replay.
func (c *Collector) RecordCRDT(at time.Time, droneID string, st *telemetry.State) error {
	set := st.DeltaSet()
	raw, err := json.Marshal(st.AllDeltas)
	if err != nil {
		return err
	}
	return c.write(FamilyCRDT,
		ts(at), droneID, c.scenario,
		strconv.Itoa(set.Len()), strconv.Itoa(st.UniqueSensors),
		fmt.Sprintf("%016x", set.Digest()), string(raw),
	)
}

// TopologyScore compares reported neighbors against the positional ground
// truth for one node in one round.
type TopologyScore struct {
	Position    telemetry.Position
	GroundTruth []string
	Reported    []string
	Precision   float64
	Recall      float64
	F1          float64
}

// ScoreTopology computes neighbor-discovery precision/recall/F1 for one
// node from the ground-truth and reported neighbor name sets.
func ScoreTopology(pos telemetry.Position, groundTruth, reported []string) TopologyScore {
	truth := convergence.NewSet(groundTruth...)
	rep := convergence.NewSet(reported...)

	inter := 0
	for _, name := range reported {
		if truth.Has(name) {
			inter++
		}
	}
	sc := TopologyScore{Position: pos, GroundTruth: groundTruth, Reported: reported}
	if rep.Len() > 0 {
		sc.Precision = float64(inter) / float64(rep.Len())
		if truth.Len() > 0 {
			sc.Recall = float64(inter) / float64(truth.Len())
		} else {
			sc.Recall = 1.0
		}
		if sc.Precision+sc.Recall > 0 {
			sc.F1 = 2 * sc.Precision * sc.Recall / (sc.Precision + sc.Recall)
		}
	}
	return sc
}

// RecordTopology appends one node's neighbor-discovery score.
func (c *Collector) RecordTopology(at time.Time, droneID string, sc TopologyScore) error {
	sort.Strings(sc.GroundTruth)
	sort.Strings(sc.Reported)
	gt, _ := json.Marshal(sc.GroundTruth)
	rep, _ := json.Marshal(sc.Reported)
	return c.write(FamilyTopology,
		ts(at), droneID, c.scenario,
		strconv.Itoa(sc.Position.X), strconv.Itoa(sc.Position.Y),
		string(gt), string(rep),
		ftoa(sc.Precision), ftoa(sc.Recall), ftoa(sc.F1),
	)
}

// RecordConvergence appends one round's convergence score and the delta
// count spread across the replicas that answered.
func (c *Collector) RecordConvergence(r convergence.Round) error {
	avg, min, max := 0.0, 0, 0
	if len(r.SetSizes) > 0 {
		sum := 0
		min, max = r.SetSizes[0], r.SetSizes[0]
		for _, n := range r.SetSizes {
			sum += n
			if n < min {
				min = n
			}
			if n > max {
				max = n
			}
		}
		avg = float64(sum) / float64(len(r.SetSizes))
	}
	return c.write(FamilyConvergence,
		ts(r.Timestamp), c.scenario,
		strconv.Itoa(r.Iteration), ftoa(r.Score),
		strconv.Itoa(r.Replicas), ftoa(avg),
		strconv.Itoa(min), strconv.Itoa(max),
	)
}

// WriteScenario echoes the experiment configuration next to the data so a
// result directory is self-describing.
func (c *Collector) WriteScenario(cfg any) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "scenario.json"), b, 0644)
}

// Flush pushes buffered rows to disk; called once per round.
func (c *Collector) Flush() {
	for _, w := range c.writers {
		w.Flush()
	}
}

func (c *Collector) Close() error {
	c.Flush()
	var first error
	for _, f := range c.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *Collector) write(family string, fields ...string) error {
	return c.writers[family].Write(fields)
}

func ts(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000.0, 'f', 3, 64)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
