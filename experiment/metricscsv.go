package experiment

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/heitortanoue/fanet-harness/telemetry"
)

// metricsHeader is the flat per-sample schema the comparison step loads.
// One row per node per round, everything in one file.
var metricsHeader = []string{
	"t", "drone_id", "scenario_id",
	"pos_x", "pos_y",
	"msgs_sent_total", "msgs_recv_total", "bytes_sent_total",
	"duplicates_dropped", "dedup_cache_size",
	"active_elements", "state_entries",
	"delta_messages_sent", "anti_entropy_messages_sent",
	"neighbor_count",
	"raw_stats",
}

// metricsCSV appends flat per-sample rows to <dir>/metrics.csv.
type metricsCSV struct {
	scenario string
	file     *os.File
	w        *csv.Writer
}

func newMetricsCSV(dir, scenarioID string) (*metricsCSV, error) {
	f, err := os.Create(filepath.Join(dir, "metrics.csv"))
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(metricsHeader); err != nil {
		f.Close()
		return nil, err
	}
	return &metricsCSV{scenario: scenarioID, file: f, w: w}, nil
}

// record writes one node's sample. stats may be nil when only the state
// fetch succeeded; counters then read as zero for that row.
func (m *metricsCSV) record(at time.Time, droneID string, state *telemetry.State, stats *telemetry.Stats) error {
	var d telemetry.DisseminationStats
	var pos telemetry.Position
	neighbors := 0
	raw := "{}"
	if stats != nil {
		d = stats.Dissemination
		pos = stats.SensorSystem.Position
		neighbors = stats.NeighborCount()
		if b, err := json.Marshal(stats); err == nil {
			raw = string(b)
		}
	}
	active, entries := 0, 0
	if state != nil {
		active = state.DeltaSet().Len()
		entries = state.UniqueSensors
	}
	err := m.w.Write([]string{
		strconv.FormatFloat(float64(at.UnixMilli())/1000.0, 'f', 3, 64),
		droneID, m.scenario,
		strconv.Itoa(pos.X), strconv.Itoa(pos.Y),
		strconv.FormatInt(d.SentCount, 10),
		strconv.FormatInt(d.ReceivedCount, 10),
		strconv.FormatInt(d.BytesSentTotal, 10),
		strconv.FormatInt(d.DuplicatesDropped, 10),
		strconv.Itoa(d.CacheSize),
		strconv.Itoa(active), strconv.Itoa(entries),
		strconv.FormatInt(d.DeltaSent, 10),
		strconv.FormatInt(d.AntiEntropyCount, 10),
		strconv.Itoa(neighbors),
		raw,
	})
	m.w.Flush()
	return err
}

func (m *metricsCSV) Close() error {
	m.w.Flush()
	return m.file.Close()
}
