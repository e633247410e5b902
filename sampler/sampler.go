// Package sampler drives the periodic measurement loop: each round it
// polls every node's telemetry in parallel, scores replica convergence
// over the sets gathered in that round, and hands the results to the
// metrics sinks. Nodes fail individually; a round is never aborted by one
// bad endpoint.
package sampler

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"go.uber.org/zap"

	"github.com/heitortanoue/fanet-harness/convergence"
	"github.com/heitortanoue/fanet-harness/metrics"
	"github.com/heitortanoue/fanet-harness/telemetry"
)

// Target is one polled node.
type Target struct {
	Name   string
	Client *telemetry.Client
}

// Config bounds the sampling loop.
type Config struct {
	Interval     time.Duration // wall-clock gap between rounds
	FetchTimeout time.Duration // per-node fetch timeout inside a round
	Workers      int           // parallel fetches per round
	Range        float64       // radio range for topology ground truth, 0 disables
}

func (c *Config) fill(nTargets int) {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	if c.Workers <= 0 || c.Workers > nTargets {
		c.Workers = nTargets
		if c.Workers > 10 {
			c.Workers = 10
		}
	}
}

// Sampler owns one run's measurement loop.
type Sampler struct {
	cfg       Config
	targets   []Target
	tracker   *convergence.Tracker
	collector *metrics.Collector
	prom      *metrics.Prom
	log       *zap.Logger

	// OnSample, when set before Run, is called for every successful node
	// sample so callers can persist rows in their own format. Called from
	// the round goroutine, one node at a time.
	OnSample func(at time.Time, name string, state *telemetry.State, stats *telemetry.Stats)

	mu      sync.Mutex
	latency *ddsketch.DDSketch // per-fetch wall time, seconds
}

func New(cfg Config, targets []Target, collector *metrics.Collector, prom *metrics.Prom, log *zap.Logger) *Sampler {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.fill(len(targets))
	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		panic(err)
	}
	return &Sampler{
		cfg:       cfg,
		targets:   targets,
		tracker:   convergence.NewTracker(log),
		collector: collector,
		prom:      prom,
		log:       log,
		latency:   sketch,
	}
}

func (s *Sampler) Tracker() *convergence.Tracker {
	return s.tracker
}

// Run executes rounds until the context is cancelled. Cancellation is
// observed both before and after the inter-round wait, so shutdown takes
// at most one interval.
func (s *Sampler) Run(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Round(ctx)
		timer.Reset(s.cfg.Interval)
	}
}

// nodeSample is one node's outcome within a round.
type nodeSample struct {
	target Target
	state  *telemetry.State
	stats  *telemetry.Stats
	err    error
}

// Round polls every target once and scores the round. Exported so tests
// and one-shot tools can drive single rounds without the timer loop.
func (s *Sampler) Round(ctx context.Context) convergence.Round {
	now := time.Now()
	samples := s.fetchAll(ctx)

	// Only nodes that answered this round participate in the pairwise
	// comparison; a missing node is excluded, never padded with stale or
	// empty data.
	var sets []convergence.Set
	for _, smp := range samples {
		if smp.err != nil {
			s.recordFailure(smp)
			continue
		}
		sets = append(sets, smp.state.DeltaSet())
		s.persist(now, smp, samples)
		if s.OnSample != nil {
			s.OnSample(now, smp.target.Name, smp.state, smp.stats)
		}
	}

	round := s.tracker.Observe(now, sets)
	if s.collector != nil {
		if err := s.collector.RecordConvergence(round); err != nil {
			s.log.Warn("convergence row not written", zap.Error(err))
		}
		s.collector.Flush()
	}
	if s.prom != nil {
		s.prom.Rounds.Inc()
		s.prom.Convergence.Set(round.Score)
		s.prom.SampledNodes.Set(float64(len(sets)))
	}
	return round
}

// fetchAll polls every target through a bounded worker pool and waits for
// all fetches to finish or time out before returning, so the round's score
// never mixes generations.
func (s *Sampler) fetchAll(ctx context.Context) []nodeSample {
	samples := make([]nodeSample, len(s.targets))
	jobs := make(chan int)
	wg := &sync.WaitGroup{}
	wg.Add(s.cfg.Workers)
	for w := 0; w < s.cfg.Workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				samples[i] = s.fetchOne(ctx, s.targets[i])
			}
		}()
	}
	for i := range s.targets {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return samples
}

func (s *Sampler) fetchOne(ctx context.Context, t Target) nodeSample {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	smp := nodeSample{target: t}
	smp.state, smp.err = t.Client.FetchState(fctx)
	if smp.err == nil {
		// stats failures degrade to a state-only sample
		smp.stats, _ = t.Client.FetchStats(fctx)
	}

	s.mu.Lock()
	s.latency.Add(time.Since(start).Seconds())
	s.mu.Unlock()
	return smp
}

// FetchLatencyQuantile reports a quantile of the per-node fetch wall time
// accumulated over the run, in seconds.
func (s *Sampler) FetchLatencyQuantile(q float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latency.GetCount() == 0 {
		return 0
	}
	v, err := s.latency.GetValueAtQuantile(q)
	if err != nil {
		return 0
	}
	return v
}

func (s *Sampler) recordFailure(smp nodeSample) {
	kind := "network"
	var fe *telemetry.FetchError
	if errors.As(smp.err, &fe) {
		kind = fe.Kind.String()
		if fe.Body != "" {
			s.log.Warn("node excluded from round",
				zap.String("node", smp.target.Name),
				zap.String("kind", kind),
				zap.String("raw_body", fe.Body),
				zap.Error(fe.Err))
			if s.prom != nil {
				s.prom.FetchErrors.WithLabelValues(kind).Inc()
			}
			return
		}
	}
	s.log.Warn("node excluded from round",
		zap.String("node", smp.target.Name),
		zap.String("kind", kind),
		zap.Error(smp.err))
	if s.prom != nil {
		s.prom.FetchErrors.WithLabelValues(kind).Inc()
	}
}

func (s *Sampler) persist(now time.Time, smp nodeSample, all []nodeSample) {
	if s.collector == nil {
		return
	}
	if err := s.collector.RecordCRDT(now, smp.target.Name, smp.state); err != nil {
		s.log.Warn("crdt row not written", zap.String("node", smp.target.Name), zap.Error(err))
	}
	if smp.stats == nil {
		return
	}
	if err := s.collector.RecordNetwork(now, smp.target.Name, smp.stats); err != nil {
		s.log.Warn("network row not written", zap.String("node", smp.target.Name), zap.Error(err))
	}
	if s.cfg.Range > 0 {
		sc := metrics.ScoreTopology(
			smp.stats.SensorSystem.Position,
			s.groundTruth(smp, all),
			smp.stats.Network.NeighborIDs,
		)
		if err := s.collector.RecordTopology(now, smp.target.Name, sc); err != nil {
			s.log.Warn("topology row not written", zap.String("node", smp.target.Name), zap.Error(err))
		}
	}
}

// groundTruth lists the nodes that should be radio neighbors of smp given
// the positions every node reported this round.
func (s *Sampler) groundTruth(smp nodeSample, all []nodeSample) []string {
	self := smp.stats.SensorSystem.Position
	var names []string
	for _, other := range all {
		if other.target.Name == smp.target.Name || other.stats == nil {
			continue
		}
		p := other.stats.SensorSystem.Position
		dx, dy := float64(p.X-self.X), float64(p.Y-self.Y)
		if math.Hypot(dx, dy) <= s.cfg.Range {
			names = append(names, other.target.Name)
		}
	}
	return names
}
