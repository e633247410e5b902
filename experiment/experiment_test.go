package experiment

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heitortanoue/fanet-harness/telemetry"
)

func TestLoadSuiteFiltersDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiments.json")
	content := `{
  "experiments": [
    {"id": "baseline", "description": "defaults", "parameters": {"drone_count": 4, "duration_sec": 60}},
    {"id": "off", "enabled": false, "parameters": {"drone_count": 4, "duration_sec": 60}},
    {"id": "explicit-on", "enabled": true, "parameters": {"drone_count": 8, "duration_sec": 60}}
  ]
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	exps, err := LoadSuite(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(exps) != 2 || exps[0].ID != "baseline" || exps[1].ID != "explicit-on" {
		t.Errorf("enabled experiments = %+v", exps)
	}
}

func TestLoadSuiteRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiments.json")
	os.WriteFile(path, []byte(`{"experiments": [{"description": "anonymous"}]}`), 0644)
	if _, err := LoadSuite(path); err == nil {
		t.Error("experiment without id accepted")
	}
}

func TestMetricsCSVRow(t *testing.T) {
	dir := t.TempDir()
	m, err := newMetricsCSV(dir, "baseline")
	if err != nil {
		t.Fatal(err)
	}
	state := &telemetry.State{
		AllDeltas:     []telemetry.Delta{{Cell: telemetry.Cell{X: 1, Y: 2}}},
		UniqueSensors: 1,
	}
	stats := &telemetry.Stats{
		Dissemination: telemetry.DisseminationStats{
			SentCount: 42, ReceivedCount: 40, BytesSentTotal: 9000,
			DeltaSent: 30, AntiEntropyCount: 2, DuplicatesDropped: 5, CacheSize: 12,
		},
		Network: telemetry.NetworkStats{NeighborIDs: []string{"a", "b"}},
	}
	if err := m.record(time.UnixMilli(1700000000000), "dr1", state, stats); err != nil {
		t.Fatal(err)
	}
	// a stats-less sample still produces a row
	if err := m.record(time.UnixMilli(1700000001000), "dr2", state, nil); err != nil {
		t.Fatal(err)
	}
	m.Close()

	f, err := os.Open(filepath.Join(dir, "metrics.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	r := rows[1]
	if r[1] != "dr1" || r[5] != "42" || r[7] != "9000" || r[10] != "1" || r[14] != "2" {
		t.Errorf("dr1 row = %v", r)
	}
	if rows[2][5] != "0" || rows[2][15] != "{}" {
		t.Errorf("stats-less row = %v", rows[2])
	}
}

func writeRun(t *testing.T, root, id, stamp string, rows [][]string) string {
	t.Helper()
	dir := filepath.Join(root, id, stamp)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	exp := Experiment{
		ID:          id,
		Description: "synthetic",
		Parameters:  Params{DroneCount: 2, Fanout: 3, TTL: 4, SampleIntervalSec: 2, DurationSec: 60},
	}
	if err := writeExperimentFile(filepath.Join(dir, "experiment.json"), exp); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, "metrics.csv"))
	if err != nil {
		t.Fatal(err)
	}
	w := csv.NewWriter(f)
	w.Write(metricsHeader)
	for _, row := range rows {
		w.Write(row)
	}
	w.Flush()
	f.Close()
	return dir
}

func syntheticRows() [][]string {
	// two drones, three samples each; msgs_sent grows by 10 then 20 on
	// dr1, by 30 then 30 on dr2
	return [][]string{
		{"1.000", "dr1", "x", "0", "0", "100", "90", "1000", "0", "5", "2", "1", "50", "1", "2", "{}"},
		{"3.000", "dr1", "x", "0", "0", "110", "95", "1100", "2", "5", "4", "1", "60", "1", "2", "{}"},
		{"5.000", "dr1", "x", "0", "0", "130", "99", "1300", "4", "5", "6", "2", "70", "2", "2", "{}"},
		{"1.000", "dr2", "x", "0", "0", "200", "90", "2000", "0", "7", "2", "1", "80", "2", "2", "{}"},
		{"3.000", "dr2", "x", "0", "0", "230", "95", "2300", "1", "7", "4", "1", "90", "2", "2", "{}"},
		{"5.000", "dr2", "x", "0", "0", "260", "99", "2600", "3", "7", "6", "2", "95", "3", "2", "{}"},
	}
}

func TestAnalyzeRun(t *testing.T) {
	root := t.TempDir()
	dir := writeRun(t, root, "baseline", "20260101_000000", syntheticRows())

	s, err := AnalyzeRun(dir)
	if err != nil {
		t.Fatal(err)
	}
	// dr1 mean diff 15, dr2 mean diff 30, mean 22.5, / 2s interval
	if math.Abs(s.Metrics.AvgMsgsSentPerSec-11.25) > 1e-9 {
		t.Errorf("avg msgs/s = %v, want 11.25", s.Metrics.AvgMsgsSentPerSec)
	}
	if math.Abs(s.Metrics.AvgBytesSentPerSec-112.5) > 1e-9 {
		t.Errorf("avg bytes/s = %v, want 112.5", s.Metrics.AvgBytesSentPerSec)
	}
	// final duplicates: dr1=4, dr2=3 → 3.5
	if math.Abs(s.Metrics.AvgDuplicatesDropped-3.5) > 1e-9 {
		t.Errorf("avg dups = %v, want 3.5", s.Metrics.AvgDuplicatesDropped)
	}
	if s.Metrics.MaxActiveElements != 6 {
		t.Errorf("max active = %v, want 6", s.Metrics.MaxActiveElements)
	}
	// final active: 6 on both drones
	if s.Metrics.FinalActiveElements != 6 {
		t.Errorf("final active = %v, want 6", s.Metrics.FinalActiveElements)
	}
	// delta totals: 70 + 95; AE totals: 2 + 3
	if s.Metrics.TotalDeltaMessages != 165 || s.Metrics.TotalAEMessages != 5 {
		t.Errorf("delta/ae totals = %v/%v", s.Metrics.TotalDeltaMessages, s.Metrics.TotalAEMessages)
	}
	if math.Abs(s.Metrics.AEToDeltaRatio-5.0/165.0) > 1e-9 {
		t.Errorf("ae/delta = %v", s.Metrics.AEToDeltaRatio)
	}
}

func TestCompareWritesSummary(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "baseline", "20260101_000000", syntheticRows())
	writeRun(t, root, "high-fanout", "20260101_010000", syntheticRows())

	var buf strings.Builder
	summaries, err := Compare(root, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}
	out := buf.String()
	for _, want := range []string{"NETWORK LOAD COMPARISON", "STATE & CONVERGENCE COMPARISON", "DISSEMINATION COMPARISON", "baseline", "high-fanout"} {
		if !strings.Contains(out, want) {
			t.Errorf("comparison output missing %q", want)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "comparison_summary.json")); err != nil {
		t.Errorf("comparison_summary.json not written: %v", err)
	}
}

func TestCompareEmptyRoot(t *testing.T) {
	if _, err := Compare(t.TempDir(), &strings.Builder{}); err == nil {
		t.Error("empty results root accepted")
	}
}

func TestDroneArgsScaling(t *testing.T) {
	r := NewRunner(RunnerConfig{SimulationMultiplier: 5, TCPPort: 8080, UDPPort: 7000}, nil)
	args := r.DroneArgs("drone-go-1", Params{
		Fanout: 3, TTL: 4,
		SampleIntervalSec: 10, DeltaPushIntervalSec: 3, AntiEntropyIntervalSec: 60,
	})
	want := map[string]bool{
		"-id=drone-go-1":         false,
		"-sample-ms=2000":        false,
		"-delta-push-ms=600":     false,
		"-anti-entropy-ms=12000": false,
		"-fanout=3":              false,
		"-ttl=4":                 false,
	}
	for _, a := range args {
		if _, ok := want[a]; ok {
			want[a] = true
		}
	}
	for a, seen := range want {
		if !seen {
			t.Errorf("flag %s missing from %v", a, args)
		}
	}
}

func TestDroneURLAddressing(t *testing.T) {
	r := NewRunner(RunnerConfig{}, nil)
	if got := r.DroneURL(1); got != "http://10.0.1.0:8080" {
		t.Errorf("droneURL(1) = %s", got)
	}
	if got := r.DroneURL(300); got != "http://10.1.44.0:8080" {
		t.Errorf("droneURL(300) = %s", got)
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	exp := Experiment{
		ID:          "baseline",
		Description: "defaults",
		Parameters:  Params{DroneCount: 4, Fanout: 3, TTL: 4, DurationSec: 60},
	}
	if err := writeReport(dir, exp, nil, nil); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "REPORT.txt"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	for _, want := range []string{"EXPERIMENT REPORT: baseline", "PARAMETERS", "drone_count", "OUTPUT FILES"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}
