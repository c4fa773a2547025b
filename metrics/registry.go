package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sib_prover"

// CountBuckets suits histograms over small discrete counts.
var CountBuckets = []float64{1, 2, 5, 10, 25, 50, 100}

// DurationBuckets suits histograms over proving/queue latencies in seconds.
var DurationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// ComponentRegistry namespaces and registers metrics for one component.
type ComponentRegistry struct {
	subsystem  string
	registerer prometheus.Registerer
}

// NewComponentRegistry returns a registry bound to the default prometheus
// registerer. The subsystem becomes part of every metric name.
func NewComponentRegistry(subsystem string, _ string) *ComponentRegistry {
	return &ComponentRegistry{
		subsystem:  subsystem,
		registerer: prometheus.DefaultRegisterer,
	}
}

func (r *ComponentRegistry) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace, opts.Subsystem = namespace, r.subsystem
	c := prometheus.NewCounter(opts)
	r.register(c)
	return c
}

func (r *ComponentRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	opts.Namespace, opts.Subsystem = namespace, r.subsystem
	c := prometheus.NewCounterVec(opts, labels)
	r.register(c)
	return c
}

func (r *ComponentRegistry) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace, opts.Subsystem = namespace, r.subsystem
	g := prometheus.NewGauge(opts)
	r.register(g)
	return g
}

func (r *ComponentRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	opts.Namespace, opts.Subsystem = namespace, r.subsystem
	g := prometheus.NewGaugeVec(opts, labels)
	r.register(g)
	return g
}

func (r *ComponentRegistry) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace, opts.Subsystem = namespace, r.subsystem
	h := prometheus.NewHistogram(opts)
	r.register(h)
	return h
}

// register tolerates duplicate registration so components can be constructed
// more than once in tests.
func (r *ComponentRegistry) register(c prometheus.Collector) {
	if err := r.registerer.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return
		}
		panic(err)
	}
}
