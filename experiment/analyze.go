package experiment

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/aclements/go-moremath/stats"
)

// RunMetrics is one completed run reduced to the comparison scalars. The
// JSON keys are stable; downstream notebooks key on them.
type RunMetrics struct {
	AvgMsgsSentPerSec    float64 `json:"avg_msgs_sent_per_sec"`
	AvgBytesSentPerSec   float64 `json:"avg_bytes_sent_per_sec"`
	AvgDuplicatesDropped float64 `json:"avg_duplicates_dropped"`
	AvgDedupCacheSize    float64 `json:"avg_dedup_cache_size"`
	AvgActiveElements    float64 `json:"avg_active_elements"`
	MaxActiveElements    float64 `json:"max_active_elements"`
	FinalActiveElements  float64 `json:"final_active_elements"`
	AvgNeighborCount     float64 `json:"avg_neighbor_count"`
	TotalDeltaMessages   float64 `json:"total_delta_messages"`
	TotalAEMessages      float64 `json:"total_ae_messages"`
	AEToDeltaRatio       float64 `json:"ae_to_delta_ratio"`
}

// RunSummary pairs a run's configuration with its reduced metrics.
type RunSummary struct {
	ExperimentID string     `json:"experiment_id"`
	Description  string     `json:"description"`
	Parameters   Params     `json:"parameters"`
	Metrics      RunMetrics `json:"metrics"`
}

// droneSeries is one node's samples in file (time) order.
type droneSeries struct {
	msgsSent  []float64
	bytesSent []float64
	dups      []float64
	cache     []float64
	active    []float64
	neighbors []float64
	deltaSent []float64
	aeSent    []float64
}

// AnalyzeRun reduces one run directory (metrics.csv + experiment.json) to
// a RunSummary.
func AnalyzeRun(dir string) (*RunSummary, error) {
	var exp Experiment
	b, err := os.ReadFile(filepath.Join(dir, "experiment.json"))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &exp); err != nil {
		return nil, fmt.Errorf("parse experiment.json in %s: %w", dir, err)
	}

	series, err := loadMetricsCSV(filepath.Join(dir, "metrics.csv"))
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%s: metrics.csv has no samples", dir)
	}

	interval := exp.Parameters.SampleIntervalSec
	if interval <= 0 {
		interval = 1
	}

	m := RunMetrics{
		AvgMsgsSentPerSec:    meanOverDrones(series, func(s *droneSeries) float64 { return meanDiff(s.msgsSent) }) / interval,
		AvgBytesSentPerSec:   meanOverDrones(series, func(s *droneSeries) float64 { return meanDiff(s.bytesSent) }) / interval,
		AvgDuplicatesDropped: meanOverDrones(series, func(s *droneSeries) float64 { return last(s.dups) }),
		AvgDedupCacheSize:    meanOverAll(series, func(s *droneSeries) []float64 { return s.cache }),
		AvgActiveElements:    meanOverAll(series, func(s *droneSeries) []float64 { return s.active }),
		MaxActiveElements:    maxOverAll(series, func(s *droneSeries) []float64 { return s.active }),
		FinalActiveElements:  meanOverDrones(series, func(s *droneSeries) float64 { return last(s.active) }),
		AvgNeighborCount:     meanOverAll(series, func(s *droneSeries) []float64 { return s.neighbors }),
	}
	for _, s := range series {
		m.TotalDeltaMessages += last(s.deltaSent)
		m.TotalAEMessages += last(s.aeSent)
	}
	denom := m.TotalDeltaMessages
	if denom < 1 {
		denom = 1
	}
	m.AEToDeltaRatio = m.TotalAEMessages / denom

	return &RunSummary{
		ExperimentID: exp.ID,
		Description:  exp.Description,
		Parameters:   exp.Parameters,
		Metrics:      m,
	}, nil
}

func loadMetricsCSV(path string) (map[string]*droneSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	num := func(row []string, name string) float64 {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return 0
		}
		v, _ := strconv.ParseFloat(row[i], 64)
		return v
	}

	series := make(map[string]*droneSeries)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		id := row[col["drone_id"]]
		s := series[id]
		if s == nil {
			s = &droneSeries{}
			series[id] = s
		}
		s.msgsSent = append(s.msgsSent, num(row, "msgs_sent_total"))
		s.bytesSent = append(s.bytesSent, num(row, "bytes_sent_total"))
		s.dups = append(s.dups, num(row, "duplicates_dropped"))
		s.cache = append(s.cache, num(row, "dedup_cache_size"))
		s.active = append(s.active, num(row, "active_elements"))
		s.neighbors = append(s.neighbors, num(row, "neighbor_count"))
		s.deltaSent = append(s.deltaSent, num(row, "delta_messages_sent"))
		s.aeSent = append(s.aeSent, num(row, "anti_entropy_messages_sent"))
	}
	return series, nil
}

// meanDiff is the mean first difference of a cumulative counter series:
// the average growth per sample.
func meanDiff(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	s := stats.Sample{}
	for i := 1; i < len(xs); i++ {
		s.Xs = append(s.Xs, xs[i]-xs[i-1])
	}
	return s.Mean()
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

func meanOverDrones(series map[string]*droneSeries, metric func(*droneSeries) float64) float64 {
	s := stats.Sample{}
	for _, ds := range series {
		s.Xs = append(s.Xs, metric(ds))
	}
	return s.Mean()
}

func meanOverAll(series map[string]*droneSeries, pick func(*droneSeries) []float64) float64 {
	s := stats.Sample{}
	for _, ds := range series {
		s.Xs = append(s.Xs, pick(ds)...)
	}
	return s.Mean()
}

func maxOverAll(series map[string]*droneSeries, pick func(*droneSeries) []float64) float64 {
	max := 0.0
	for _, ds := range series {
		for _, v := range pick(ds) {
			if v > max {
				max = v
			}
		}
	}
	return max
}

// FindRuns locates every completed run directory (one containing a
// metrics.csv) under <root>/<experiment-id>/<timestamp>/.
func FindRuns(root string) ([]string, error) {
	exps, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, e := range exps {
		if !e.IsDir() {
			continue
		}
		subs, err := os.ReadDir(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		for _, sub := range subs {
			if !sub.IsDir() {
				continue
			}
			dir := filepath.Join(root, e.Name(), sub.Name())
			if _, err := os.Stat(filepath.Join(dir, "metrics.csv")); err == nil {
				runs = append(runs, dir)
			}
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// Compare analyzes every run under root, prints the comparison tables,
// and writes comparison_summary.json next to the run directories.
func Compare(root string, w io.Writer) ([]RunSummary, error) {
	runs, err := FindRuns(root)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no completed runs under %s", root)
	}

	var summaries []RunSummary
	for _, dir := range runs {
		s, err := AnalyzeRun(dir)
		if err != nil {
			fmt.Fprintf(w, "skipping %s: %v\n", dir, err)
			continue
		}
		summaries = append(summaries, *s)
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("no analyzable runs under %s", root)
	}

	writeComparisonTables(w, summaries)

	b, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return summaries, err
	}
	out := filepath.Join(root, "comparison_summary.json")
	if err := os.WriteFile(out, b, 0644); err != nil {
		return summaries, err
	}
	fmt.Fprintf(w, "\ndetailed comparison saved to %s\n", out)
	return summaries, nil
}

func writeComparisonTables(w io.Writer, summaries []RunSummary) {
	line := "----------------------------------------------------------------------------------------------------"

	fmt.Fprintf(w, "\n%s\nNETWORK LOAD COMPARISON\n%s\n", line, line)
	fmt.Fprintf(w, "%-30s %5s %3s %4s %10s %12s %8s\n",
		"Experiment ID", "N", "F", "TTL", "Msgs/s", "Bytes/s", "Dups")
	for _, s := range summaries {
		fmt.Fprintf(w, "%-30s %5d %3d %4d %10.2f %12.0f %8.1f\n",
			s.ExperimentID, s.Parameters.DroneCount, s.Parameters.Fanout, s.Parameters.TTL,
			s.Metrics.AvgMsgsSentPerSec, s.Metrics.AvgBytesSentPerSec, s.Metrics.AvgDuplicatesDropped)
	}

	fmt.Fprintf(w, "\n%s\nSTATE & CONVERGENCE COMPARISON\n%s\n", line, line)
	fmt.Fprintf(w, "%-30s %12s %12s %12s %10s\n",
		"Experiment ID", "Avg Active", "Max Active", "Final Avg", "Neighbors")
	for _, s := range summaries {
		fmt.Fprintf(w, "%-30s %12.1f %12.0f %12.1f %10.1f\n",
			s.ExperimentID, s.Metrics.AvgActiveElements, s.Metrics.MaxActiveElements,
			s.Metrics.FinalActiveElements, s.Metrics.AvgNeighborCount)
	}

	fmt.Fprintf(w, "\n%s\nDISSEMINATION COMPARISON\n%s\n", line, line)
	fmt.Fprintf(w, "%-30s %12s %12s %10s\n",
		"Experiment ID", "Total DELTA", "Total AE", "AE/DELTA")
	for _, s := range summaries {
		fmt.Fprintf(w, "%-30s %12.0f %12.0f %10.3f\n",
			s.ExperimentID, s.Metrics.TotalDeltaMessages, s.Metrics.TotalAEMessages,
			s.Metrics.AEToDeltaRatio)
	}
}
