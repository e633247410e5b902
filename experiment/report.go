package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/heitortanoue/fanet-harness/convergence"
	"github.com/heitortanoue/fanet-harness/traffic"
)

// writeReport renders the human-readable experiment summary next to the
// raw data.
func writeReport(outDir string, exp Experiment, trafficStats map[string]*traffic.SourceStats, tracker *convergence.Tracker) error {
	f, err := os.Create(filepath.Join(outDir, "REPORT.txt"))
	if err != nil {
		return err
	}
	defer f.Close()

	heavy := strings.Repeat("=", 80)
	light := strings.Repeat("-", 80)

	fmt.Fprintf(f, "%s\nEXPERIMENT REPORT: %s\n%s\n\n", heavy, exp.ID, heavy)

	fmt.Fprintf(f, "DESCRIPTION\n%s\n%s\n\n", light, exp.Description)

	fmt.Fprintf(f, "PARAMETERS\n%s\n", light)
	p := exp.Parameters
	writeParam(f, "drone_count", p.DroneCount)
	writeParam(f, "fanout", p.Fanout)
	writeParam(f, "ttl", p.TTL)
	writeParam(f, "sample_interval_sec", p.SampleIntervalSec)
	writeParam(f, "delta_push_interval_sec", p.DeltaPushIntervalSec)
	writeParam(f, "anti_entropy_interval_sec", p.AntiEntropyIntervalSec)
	writeParam(f, "duration_sec", p.DurationSec)
	writeParam(f, "loss_rate_percent", p.LossRatePercent)
	if p.MobilityModel != "" {
		writeParam(f, "mobility_model", p.MobilityModel)
	}
	fmt.Fprintln(f)

	fmt.Fprintf(f, "OUTPUT FILES\n%s\n", light)
	fmt.Fprintln(f, "  Experiment config ........ experiment.json")
	fmt.Fprintln(f, "  Metrics data ............. metrics.csv")
	fmt.Fprintln(f, "  Round data ............... convergence.csv, crdt_state.csv,")
	fmt.Fprintln(f, "                             network_load.csv, topology.csv")
	fmt.Fprintln(f, "  Traffic analysis ......... traffic/traffic_analysis.json")
	fmt.Fprintln(f, "  Traffic summary .......... traffic/traffic_summary.txt")
	fmt.Fprintln(f, "  Packet captures .......... traffic/pcaps/*.pcap")
	fmt.Fprintln(f)

	if tracker != nil && len(tracker.Rounds()) > 0 {
		rounds := tracker.Rounds()
		last := rounds[len(rounds)-1]
		fmt.Fprintf(f, "CONVERGENCE\n%s\n", light)
		fmt.Fprintf(f, "  Sampling rounds .......... %d\n", len(rounds))
		fmt.Fprintf(f, "  Final index .............. %.4f\n", last.Score)
		if it := tracker.FirstConvergedIteration(); it >= 0 {
			fmt.Fprintf(f, "  First full convergence ... round %d\n", it)
		} else {
			fmt.Fprintln(f, "  First full convergence ... never reached")
		}
		fmt.Fprintln(f)
	}

	if len(trafficStats) > 0 {
		var totalBytes int64
		for _, s := range trafficStats {
			totalBytes += s.TotalBytes
		}
		fmt.Fprintf(f, "TRAFFIC SUMMARY\n%s\n", light)
		fmt.Fprintf(f, "  Total bytes .............. %d\n", totalBytes)
		fmt.Fprintf(f, "  Total MB ................. %.2f\n", float64(totalBytes)/1024/1024)
		fmt.Fprintf(f, "  Avg per drone ............ %.0f bytes\n", float64(totalBytes)/float64(len(trafficStats)))
		fmt.Fprintln(f)
	}

	fmt.Fprintln(f, heavy)
	return nil
}

func writeParam(f *os.File, key string, value any) {
	fmt.Fprintf(f, "  %s %v\n", pad(key, 40), value)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + " " + strings.Repeat(".", width-len(s)-2) + " "
}
