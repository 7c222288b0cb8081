package metrics

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "haproxy_autoconf"

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector holds the daemon's Prometheus metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	artifactsInstalled *prometheus.GaugeVec
	writes             *prometheus.CounterVec
	removals           *prometheus.CounterVec
	signals            *prometheus.CounterVec
}

// NewCollector creates the collector and registers all metrics, including
// Go runtime, process and build info collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		artifactsInstalled: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "artifacts_installed",
				Help:      "Whether the artifact of the given kind is currently installed (1) or not (0)",
			},
			[]string{"kind"},
		),
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_writes_total",
				Help:      "Atomic artifact writes by kind and result",
			},
			[]string{"kind", "result"},
		),
		removals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_removals_total",
				Help:      "Artifact removals on release by kind and result",
			},
			[]string{"kind", "result"},
		),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shutdown_signals_total",
				Help:      "Termination signals received",
			},
			[]string{"signal"},
		),
	}

	c.registry.MustRegister(
		c.artifactsInstalled,
		c.writes,
		c.removals,
		c.signals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector(namespace),
	)

	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordInstall records the outcome of an artifact write
func (c *Collector) RecordInstall(kind string, err error) {
	if err != nil {
		c.writes.WithLabelValues(kind, ResultFailure).Inc()
		return
	}
	c.writes.WithLabelValues(kind, ResultSuccess).Inc()
	c.artifactsInstalled.WithLabelValues(kind).Set(1)
}

// RecordRemoval records the outcome of an artifact release. The artifact
// counts as gone either way.
func (c *Collector) RecordRemoval(kind string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	c.removals.WithLabelValues(kind, result).Inc()
	c.artifactsInstalled.WithLabelValues(kind).Set(0)
}

// RecordSignal counts a received termination signal
func (c *Collector) RecordSignal(sig os.Signal) {
	c.signals.WithLabelValues(sig.String()).Inc()
}

// Handler returns HTTP handler for Prometheus metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
