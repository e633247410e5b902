package experiment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/heitortanoue/fanet-harness/metrics"
	"github.com/heitortanoue/fanet-harness/mnwifi"
	"github.com/heitortanoue/fanet-harness/sampler"
	"github.com/heitortanoue/fanet-harness/telemetry"
	"github.com/heitortanoue/fanet-harness/traffic"
)

// RunnerConfig is the host-side setup shared by every experiment in a
// suite: where the drone binary lives, how nodes are addressed, and how
// much the emulation compresses protocol time.
type RunnerConfig struct {
	BaseDir              string  // experiment_results root
	ExecPath             string  // drone binary
	BindAddr             string  // -bind for the drones
	TCPPort              int     // telemetry port
	UDPPort              int     // discovery port
	SimulationMultiplier float64 // protocol seconds per wall second
	Range                float64 // radio range for topology scoring
	TelemetryDir         string  // where the emulator writes position files
	Cooldown             time.Duration
	InitWait             time.Duration
}

func (c *RunnerConfig) fill() {
	if c.BaseDir == "" {
		c.BaseDir = "experiment_results"
	}
	if c.BindAddr == "" {
		c.BindAddr = "0.0.0.0"
	}
	if c.TCPPort == 0 {
		c.TCPPort = 8080
	}
	if c.UDPPort == 0 {
		c.UDPPort = 7000
	}
	if c.SimulationMultiplier <= 0 {
		c.SimulationMultiplier = 1
	}
	if c.TelemetryDir == "" {
		c.TelemetryDir = "."
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.InitWait <= 0 {
		c.InitWait = 10 * time.Second
	}
}

// Runner executes experiments sequentially on the emulation host.
type Runner struct {
	cfg RunnerConfig
	log *zap.Logger
}

func NewRunner(cfg RunnerConfig, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.fill()
	return &Runner{cfg: cfg, log: log}
}

// RunAll runs every experiment in order. A failed experiment is logged
// and the suite moves on; only context cancellation stops the sweep.
func (r *Runner) RunAll(ctx context.Context, exps []Experiment) error {
	r.log.Info("experiment suite starting", zap.Int("experiments", len(exps)))
	for i, exp := range exps {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Info("experiment starting",
			zap.String("id", exp.ID),
			zap.Int("index", i+1),
			zap.Int("total", len(exps)),
			zap.String("description", exp.Description))
		if err := r.RunOne(ctx, exp); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Error("experiment failed", zap.String("id", exp.ID), zap.Error(err))
		} else {
			r.log.Info("experiment completed", zap.String("id", exp.ID))
		}
		if i < len(exps)-1 {
			r.log.Info("cooldown before next experiment", zap.Duration("cooldown", r.cfg.Cooldown))
			if !sleepCtx(ctx, r.cfg.Cooldown) {
				return ctx.Err()
			}
		}
	}
	r.log.Info("experiment suite complete", zap.String("results", r.cfg.BaseDir))
	return nil
}

// RunOne executes a single experiment into a fresh timestamped directory.
func (r *Runner) RunOne(ctx context.Context, exp Experiment) error {
	p := exp.Parameters
	if p.DroneCount <= 0 {
		return fmt.Errorf("experiment %s: drone_count must be positive", exp.ID)
	}

	mnwifi.Cleanup(r.log)
	mnwifi.KillLeftoverDrones(filepath.Base(r.cfg.ExecPath), r.log)

	outDir := filepath.Join(r.cfg.BaseDir, exp.ID, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	if err := writeExperimentFile(filepath.Join(outDir, "experiment.json"), exp); err != nil {
		return err
	}

	names := DroneNames(p.DroneCount)
	reg := mnwifi.NewProcRegistry(2*time.Second, r.log)
	defer reg.StopAll()

	if p.LossRatePercent > 0 {
		for _, name := range names {
			iface := name + "-wlan0"
			if err := mnwifi.ApplyLoss(iface, p.LossRatePercent); err != nil {
				r.log.Warn("loss not applied", zap.String("iface", iface), zap.Error(err))
			}
			defer mnwifi.ClearLoss(iface)
		}
	}

	trafficDir := filepath.Join(outDir, "traffic")
	for _, name := range names {
		if _, err := reg.StartCapture(trafficDir, name, name+"-wlan0"); err != nil {
			r.log.Warn("capture not started", zap.String("node", name), zap.Error(err))
		}
	}

	logDir := filepath.Join(outDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}
	for i := 1; i <= p.DroneCount; i++ {
		id := fmt.Sprintf("drone-go-%d", i)
		_, err := reg.StartLogged(id, filepath.Join(logDir, id+".log"),
			r.cfg.ExecPath, r.DroneArgs(id, p)...)
		if err != nil {
			return fmt.Errorf("experiment %s: %w", exp.ID, err)
		}
	}

	r.log.Info("waiting for drones to initialize", zap.Duration("wait", r.cfg.InitWait))
	if !sleepCtx(ctx, r.cfg.InitWait) {
		return ctx.Err()
	}

	collector, err := metrics.NewCollector(outDir, exp.ID)
	if err != nil {
		return err
	}
	defer collector.Close()
	if err := collector.WriteScenario(exp); err != nil {
		return err
	}
	flat, err := newMetricsCSV(outDir, exp.ID)
	if err != nil {
		return err
	}
	defer flat.Close()

	targets := make([]sampler.Target, p.DroneCount)
	for i := range targets {
		targets[i] = sampler.Target{
			Name:   names[i],
			Client: telemetry.NewClient(r.DroneURL(i+1), 2*time.Second),
		}
	}
	effSample := r.scaled(p.SampleIntervalSec)
	s := sampler.New(sampler.Config{
		Interval:     effSample,
		FetchTimeout: 2 * time.Second,
		Range:        r.cfg.Range,
	}, targets, collector, nil, r.log)
	s.OnSample = func(at time.Time, name string, state *telemetry.State, stats *telemetry.Stats) {
		if err := flat.record(at, name, state, stats); err != nil {
			r.log.Warn("metrics row not written", zap.String("node", name), zap.Error(err))
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(p.DurationSec)*time.Second)
	defer cancel()

	posSrc := mnwifi.TelemetryDir{Dir: r.cfg.TelemetryDir, Names: names}
	loopsDone := make(chan struct{}, 2)
	go func() {
		s.Run(runCtx)
		loopsDone <- struct{}{}
	}()
	go func() {
		sampler.PushPositions(runCtx, posSrc, targets, 2*time.Second, r.log)
		loopsDone <- struct{}{}
	}()

	r.log.Info("experiment running",
		zap.String("id", exp.ID),
		zap.Int("duration_sec", p.DurationSec),
		zap.Duration("effective_sample_interval", effSample))
	<-runCtx.Done()
	<-loopsDone
	<-loopsDone
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// drones first so captures record their last packets, then captures,
	// flushed by TERM
	reg.StopAll()

	analyzer := traffic.NewAnalyzer(trafficDir, nil, r.log)
	report, err := analyzer.AnalyzeAll(names)
	if err != nil {
		r.log.Warn("traffic analysis incomplete", zap.Error(err))
	}

	if err := writeReport(outDir, exp, report, s.Tracker()); err != nil {
		return err
	}
	return nil
}

// DroneArgs builds the drone binary's flag set, protocol intervals scaled
// into emulation time.
func (r *Runner) DroneArgs(id string, p Params) []string {
	return []string{
		"-id=" + id,
		fmt.Sprintf("-sample-ms=%d", r.scaled(p.SampleIntervalSec).Milliseconds()),
		fmt.Sprintf("-fanout=%d", p.Fanout),
		fmt.Sprintf("-ttl=%d", p.TTL),
		fmt.Sprintf("-delta-push-ms=%d", r.scaled(p.DeltaPushIntervalSec).Milliseconds()),
		fmt.Sprintf("-anti-entropy-ms=%d", r.scaled(p.AntiEntropyIntervalSec).Milliseconds()),
		fmt.Sprintf("-udp-port=%d", r.cfg.UDPPort),
		fmt.Sprintf("-tcp-port=%d", r.cfg.TCPPort),
		"-bind=" + r.cfg.BindAddr,
		"-hello-ms=1000",
		"-hello-jitter-ms=200",
		"-confidence-threshold=50.0",
	}
}

func (r *Runner) scaled(protocolSec float64) time.Duration {
	return time.Duration(protocolSec / r.cfg.SimulationMultiplier * float64(time.Second))
}

// DroneURL derives node i's telemetry base URL from the emulator's
// addressing scheme: node i gets 10.<hi>.<lo>.0.
func (r *Runner) DroneURL(i int) string {
	return fmt.Sprintf("http://10.%d.%d.0:%d", (i>>8)&0xff, i&0xff, r.cfg.TCPPort)
}

func DroneNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("dr%d", i+1)
	}
	return names
}

// sleepCtx waits d or until the context ends; false means cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
