// Command runexp runs the experiment suite defined in experiments.json:
// each enabled experiment gets a fresh emulated mesh, a timed measurement
// window, and its own timestamped result directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/heitortanoue/fanet-harness/experiment"
)

var (
	suitePath  = flag.String("c", "experiments.json", "read the experiment suite from `file`")
	resultsDir = flag.String("out", "experiment_results", "results root directory")
	execPath   = flag.String("exec", "../drone/bin/drone-linux", "path to the drone binary")
	multiplier = flag.Float64("multiplier", 5, "simulation time multiplier")
	droneRange = flag.Float64("range", 300, "radio range in meters for topology scoring")
	cooldown   = flag.Duration("cooldown", 30*time.Second, "pause between experiments")
	only       = flag.String("only", "", "run only the experiment with this id")
)

func main() {
	flag.Parse()
	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	exps, err := experiment.LoadSuite(*suitePath)
	if err != nil {
		log.Fatal("suite not loaded", zap.String("file", *suitePath), zap.Error(err))
	}
	if *only != "" {
		var picked []experiment.Experiment
		for _, e := range exps {
			if e.ID == *only {
				picked = append(picked, e)
			}
		}
		if len(picked) == 0 {
			log.Fatal("experiment id not found or not enabled", zap.String("id", *only))
		}
		exps = picked
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := experiment.NewRunner(experiment.RunnerConfig{
		BaseDir:              *resultsDir,
		ExecPath:             *execPath,
		SimulationMultiplier: *multiplier,
		Range:                *droneRange,
		Cooldown:             *cooldown,
	}, log)
	if err := runner.RunAll(ctx, exps); err != nil {
		log.Fatal("suite aborted", zap.Error(err))
	}
}
