// Command harness drives one interactive measurement run: it spawns the
// drone binaries (unless told they are already running under the
// emulator), polls their telemetry every round, scores convergence, and
// streams CSVs into the output directory until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/heitortanoue/fanet-harness/experiment"
	"github.com/heitortanoue/fanet-harness/metrics"
	"github.com/heitortanoue/fanet-harness/mnwifi"
	"github.com/heitortanoue/fanet-harness/sampler"
	"github.com/heitortanoue/fanet-harness/telemetry"
)

var (
	configPath = flag.String("c", "config.yaml", "read harness config from `file`")
	outDir     = flag.String("out", "", "output directory, overrides config output_dir")
	scenarioID = flag.String("scenario", "interactive", "scenario id stamped into every CSV row")
	spawn      = flag.Bool("spawn", true, "spawn drone binaries; false to poll already-running drones")
	capture    = flag.Bool("capture", false, "capture each node's traffic to <out>/traffic/pcaps")
	drones     = flag.Int("n", 0, "number of drones, overrides config drone_number")
)

func main() {
	flag.Parse()
	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("harness failed", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *drones > 0 {
		cfg.DroneNumber = *drones
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the runner owns node addressing and drone flag construction; the
	// interactive harness reuses it with a single synthetic experiment
	runner := experiment.NewRunner(experiment.RunnerConfig{
		ExecPath:             cfg.ExecPath,
		BindAddr:             cfg.BindAddr,
		TCPPort:              cfg.TCPPort,
		UDPPort:              cfg.UDPPort,
		SimulationMultiplier: cfg.SimulationMultiplier,
		Range:                cfg.DroneRange,
		TelemetryDir:         cfg.TelemetryDir,
	}, log)
	params := experiment.Params{
		DroneCount:             cfg.DroneNumber,
		Fanout:                 cfg.Fanout,
		TTL:                    cfg.TTL,
		SampleIntervalSec:      cfg.SampleIntervalSec,
		DeltaPushIntervalSec:   cfg.DeltaPushIntervalSec,
		AntiEntropyIntervalSec: cfg.AntiEntropyIntervalSec,
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return err
	}

	reg := mnwifi.NewProcRegistry(2*time.Second, log)
	defer reg.StopAll()
	names := experiment.DroneNames(cfg.DroneNumber)
	if *capture {
		trafficDir := filepath.Join(cfg.OutputDir, "traffic")
		for _, name := range names {
			if _, err := reg.StartCapture(trafficDir, name, name+"-wlan0"); err != nil {
				log.Warn("capture not started", zap.String("node", name), zap.Error(err))
			}
		}
	}
	if *spawn {
		mnwifi.KillLeftoverDrones(filepath.Base(cfg.ExecPath), log)
		logDir := filepath.Join(cfg.OutputDir, "logs")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return err
		}
		for i := 1; i <= cfg.DroneNumber; i++ {
			id := fmt.Sprintf("drone-go-%d", i)
			_, err := reg.StartLogged(id, filepath.Join(logDir, id+".log"),
				cfg.ExecPath, runner.DroneArgs(id, params)...)
			if err != nil {
				return err
			}
		}
	}

	collector, err := metrics.NewCollector(cfg.OutputDir, *scenarioID)
	if err != nil {
		return err
	}
	defer collector.Close()
	if err := collector.WriteScenario(cfg); err != nil {
		return err
	}

	targets := make([]sampler.Target, cfg.DroneNumber)
	for i := range targets {
		targets[i] = sampler.Target{
			Name:   names[i],
			Client: telemetry.NewClient(runner.DroneURL(i+1), 2*time.Second),
		}
	}

	prom := metrics.NewProm()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics endpoint failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		log.Info("metrics endpoint up", zap.String("addr", cfg.MetricsAddr))
	}

	s := sampler.New(sampler.Config{
		Interval:     cfg.effective(cfg.FetchIntervalSec),
		FetchTimeout: 2 * time.Second,
		Range:        cfg.DroneRange,
	}, targets, collector, prom, log)

	posSrc := mnwifi.TelemetryDir{Dir: cfg.TelemetryDir, Names: names}
	go sampler.PushPositions(ctx, posSrc, targets, 2*time.Second, log)

	log.Info("harness running",
		zap.Int("drones", cfg.DroneNumber),
		zap.Duration("round_interval", cfg.effective(cfg.FetchIntervalSec)),
		zap.String("output", cfg.OutputDir))
	s.Run(ctx)

	rounds := s.Tracker().Rounds()
	log.Info("harness stopped",
		zap.Int("rounds", len(rounds)),
		zap.Int("first_full_convergence", s.Tracker().FirstConvergedIteration()),
		zap.Float64("fetch_p95_sec", s.FetchLatencyQuantile(0.95)))
	return nil
}
