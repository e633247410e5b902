// Command analyze reduces completed experiment runs to comparison tables
// and writes comparison_summary.json next to the run directories.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/heitortanoue/fanet-harness/experiment"
)

var resultsDir = flag.String("results", "experiment_results", "results root directory to compare")

func main() {
	flag.Parse()
	if flag.NArg() > 0 {
		// analyze a single run directory instead of comparing
		for _, dir := range flag.Args() {
			s, err := experiment.AnalyzeRun(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", dir, err)
				os.Exit(1)
			}
			fmt.Printf("%s (%s)\n", s.ExperimentID, dir)
			fmt.Printf("  msgs/s %.2f  bytes/s %.0f  dups %.1f\n",
				s.Metrics.AvgMsgsSentPerSec, s.Metrics.AvgBytesSentPerSec, s.Metrics.AvgDuplicatesDropped)
			fmt.Printf("  active avg %.1f max %.0f final %.1f  neighbors %.1f\n",
				s.Metrics.AvgActiveElements, s.Metrics.MaxActiveElements,
				s.Metrics.FinalActiveElements, s.Metrics.AvgNeighborCount)
			fmt.Printf("  delta %.0f  ae %.0f  ae/delta %.3f\n",
				s.Metrics.TotalDeltaMessages, s.Metrics.TotalAEMessages, s.Metrics.AEToDeltaRatio)
		}
		return
	}
	if _, err := experiment.Compare(*resultsDir, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
