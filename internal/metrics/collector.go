// Package metrics exposes Prometheus counters for the image pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "news2toon"

// Collector groups the pipeline metrics. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	providerAttempts *prometheus.CounterVec
	pipelineRuns     *prometheus.CounterVec
	relayUploads     *prometheus.CounterVec
	relayDuration    prometheus.Histogram
}

// NewCollector registers the metrics on a fresh registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		providerAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_attempts_total",
				Help:      "Image provider attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Image pipeline invocations by result",
			},
			[]string{"result"},
		),
		relayUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_uploads_total",
				Help:      "Storage relay runs by result",
			},
			[]string{"result"},
		),
		relayDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "relay_duration_seconds",
				Help:      "Time spent relaying an image to durable storage",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
	}
}

// ProviderAttempt counts one provider attempt; outcome is success, failure or invalid_url
func (c *Collector) ProviderAttempt(provider, outcome string) {
	if c == nil {
		return
	}
	c.providerAttempts.WithLabelValues(provider, outcome).Inc()
}

// PipelineRun counts one pipeline invocation
func (c *Collector) PipelineRun(result string) {
	if c == nil {
		return
	}
	c.pipelineRuns.WithLabelValues(result).Inc()
}

// RelayRun counts one relay invocation and its duration
func (c *Collector) RelayRun(result string, seconds float64) {
	if c == nil {
		return
	}
	c.relayUploads.WithLabelValues(result).Inc()
	c.relayDuration.Observe(seconds)
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
