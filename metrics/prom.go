package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prom is the harness's own live telemetry: enough to watch a long run
// from a dashboard without waiting for the CSVs.
type Prom struct {
	registry *prometheus.Registry

	Convergence  prometheus.Gauge
	Rounds       prometheus.Counter
	SampledNodes prometheus.Gauge
	FetchErrors  *prometheus.CounterVec
}

func NewProm() *Prom {
	p := &Prom{registry: prometheus.NewRegistry()}

	p.Convergence = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "harness",
		Name:      "convergence_index",
		Help:      "Mean pairwise Jaccard index of the last sampling round.",
	})
	p.Rounds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "harness",
		Name:      "sampling_rounds_total",
		Help:      "Completed sampling rounds.",
	})
	p.SampledNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "harness",
		Name:      "sampled_nodes",
		Help:      "Nodes that answered in the last round.",
	})
	p.FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harness",
		Name:      "fetch_errors_total",
		Help:      "Per-node fetch failures by kind.",
	}, []string{"kind"})

	p.registry.MustRegister(p.Convergence, p.Rounds, p.SampledNodes, p.FetchErrors)
	return p
}

// Handler exposes the registry; mount it on /metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
