// Package metrics exposes Prometheus collectors for the enhancement pipeline.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reelcraft"

type Collector struct {
	registry *prometheus.Registry

	enhancements *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	jobs         *prometheus.CounterVec
	jobDuration  prometheus.Histogram
	upstream     *prometheus.HistogramVec
}

// NewCollector registers every collector on a private registry so repeated
// construction in tests does not collide with the global one.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		enhancements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enhancements_total",
			Help:      "Completed prompt enhancements by provenance source.",
		}, []string{"source"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Fallbacks taken, by policy and reason.",
		}, []string{"policy", "reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Simulated generation jobs by outcome.",
		}, []string{"outcome"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Simulated generation job duration.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream AI request latency by provider and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "status"}),
	}
	reg.MustRegister(
		c.enhancements,
		c.fallbacks,
		c.cacheLookups,
		c.jobs,
		c.jobDuration,
		c.upstream,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Enhancement(source string) {
	if c == nil {
		return
	}
	c.enhancements.WithLabelValues(source).Inc()
}

func (c *Collector) Fallback(policy, reason string) {
	if c == nil {
		return
	}
	c.fallbacks.WithLabelValues(policy, reason).Inc()
}

func (c *Collector) CacheLookup(cache string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (c *Collector) Job(success bool, took time.Duration) {
	if c == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.jobs.WithLabelValues(outcome).Inc()
	c.jobDuration.Observe(took.Seconds())
}

func (c *Collector) Upstream(provider, status string, took time.Duration) {
	if c == nil {
		return
	}
	c.upstream.WithLabelValues(provider, status).Observe(took.Seconds())
}

// Registry exposes the underlying registry for tests and custom exporters.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
