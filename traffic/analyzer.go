package traffic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Analyzer owns one run's capture directory and turns its pcaps into
// per-source and aggregate statistics.
type Analyzer struct {
	dir string
	dec Decoder
	log *zap.Logger
}

func NewAnalyzer(dir string, dec Decoder, log *zap.Logger) *Analyzer {
	if dec == nil {
		dec = &TsharkDecoder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{dir: dir, dec: dec, log: log}
}

// PcapPath returns where the capture for a named source is expected.
func (a *Analyzer) PcapPath(name string) string {
	return filepath.Join(a.dir, "pcaps", name+".pcap")
}

// AnalyzeSource validates and classifies one node's capture. Validation
// and truncation failures come back as the sentinel errors; the caller
// decides whether to skip or abort (AnalyzeAll always skips).
func (a *Analyzer) AnalyzeSource(name string) (*SourceStats, error) {
	path := a.PcapPath(name)
	if err := ValidatePcap(path); err != nil {
		return nil, err
	}
	records, err := a.dec.Decode(path)
	if err != nil {
		return nil, err
	}
	return Classify(records), nil
}

// AnalyzeAll classifies every named source, skipping invalid captures so
// one killed tcpdump cannot poison the aggregate. It writes the raw
// per-source statistics to traffic_analysis.json and a human-readable
// summary to traffic_summary.txt under the analyzer's directory.
func (a *Analyzer) AnalyzeAll(names []string) (map[string]*SourceStats, error) {
	all := make(map[string]*SourceStats)
	for _, name := range names {
		stats, err := a.AnalyzeSource(name)
		if err != nil {
			a.log.Warn("skipping capture source",
				zap.String("source", name),
				zap.String("cause", captureFailureKind(err)),
				zap.Error(err))
			continue
		}
		all[name] = stats
	}

	if err := a.writeJSON("traffic_analysis.json", all); err != nil {
		return all, err
	}
	f, err := os.Create(filepath.Join(a.dir, "traffic_summary.txt"))
	if err != nil {
		return all, err
	}
	defer f.Close()
	WriteSummary(f, all)
	return all, nil
}

// Bandwidth returns the average bytes/sec a source produced over the given
// capture duration, 0 when the capture is unusable.
func (a *Analyzer) Bandwidth(name string, durationSec float64) float64 {
	if durationSec <= 0 {
		return 0
	}
	stats, err := a.AnalyzeSource(name)
	if err != nil {
		return 0
	}
	return float64(stats.TotalBytes) / durationSec
}

func (a *Analyzer) writeJSON(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(a.dir, name), b, 0644)
}

// captureFailureKind names the distinct capture failure causes for logs.
func captureFailureKind(err error) string {
	switch {
	case errors.Is(err, ErrPcapMissing):
		return "missing"
	case errors.Is(err, ErrPcapEmpty):
		return "empty"
	case errors.Is(err, ErrPcapTooSmall):
		return "too small to be valid"
	case errors.Is(err, ErrPcapTruncated):
		return "decoder reported truncation"
	default:
		return "decode error"
	}
}

// WriteSummary renders the run-wide traffic tables: message-type breakdown
// with packet/byte shares recomputed from summed totals, then a per-source
// line with UDP/TCP split and size quantiles.
func WriteSummary(w io.Writer, all map[string]*SourceStats) {
	g := Aggregate(all)
	line := strings.Repeat("-", 80)

	fmt.Fprintf(w, "TRAFFIC ANALYSIS SUMMARY\n%s\n", line)
	fmt.Fprintf(w, "sources analyzed: %d\n", g.Sources)
	fmt.Fprintf(w, "total packets:    %d\n", g.TotalPackets)
	fmt.Fprintf(w, "total bytes:      %d (%.2f MB)\n", g.TotalBytes, float64(g.TotalBytes)/1024/1024)
	fmt.Fprintf(w, "udp packet share: %.2f%%\n\n", g.UDPShare)

	fmt.Fprintf(w, "MESSAGE TYPE BREAKDOWN\n%s\n", line)
	fmt.Fprintf(w, "%-14s %10s %14s %10s %10s %12s\n",
		"type", "count", "bytes", "% pkts", "% bytes", "unresp %")
	for _, mt := range MessageTypes {
		ts := g.ByType[mt]
		var pctPkts, pctBytes float64
		if g.TotalPackets > 0 {
			pctPkts = float64(ts.Count) / float64(g.TotalPackets) * 100
		}
		if g.TotalBytes > 0 {
			pctBytes = float64(ts.Bytes) / float64(g.TotalBytes) * 100
		}
		fmt.Fprintf(w, "%-14s %10d %14d %9.2f%% %9.2f%% %11.2f%%\n",
			mt, ts.Count, ts.Bytes, pctPkts, pctBytes, ts.PctUnresponded)
	}

	fmt.Fprintf(w, "\nPER-SOURCE SUMMARY\n%s\n", line)
	fmt.Fprintf(w, "%-10s %10s %12s %8s %8s %10s %8s %8s\n",
		"source", "packets", "bytes", "udp%", "tcp%", "avg size", "p50", "p95")
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := all[name]
		var udpPct, tcpPct float64
		if s.TotalPackets > 0 {
			udpPct = float64(s.UDPPackets) / float64(s.TotalPackets) * 100
			tcpPct = float64(s.TCPPackets) / float64(s.TotalPackets) * 100
		}
		fmt.Fprintf(w, "%-10s %10d %12d %7.1f%% %7.1f%% %10.1f %8.0f %8.0f\n",
			name, s.TotalPackets, s.TotalBytes, udpPct, tcpPct,
			s.AvgPacketSize, s.SizeQuantile(0.50), s.SizeQuantile(0.95))
	}
}
