package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the string chart metrics.
// All methods are safe on a nil Collector.
type Collector struct {
	reg *prometheus.Registry

	PipelineRuns     prometheus.Counter
	PipelineDuration prometheus.Histogram
	SceneDuration    prometheus.Histogram
	SkippedRows      *prometheus.CounterVec // reason label: malformed_time|missing_stop|orphan
	FeedLoads        *prometheus.CounterVec // result label: ok|error
	FeedLoadDuration prometheus.Histogram
	CacheLookups     *prometheus.CounterVec // result label: hit|miss
	EventsReceived   *prometheus.CounterVec // subject label
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PipelineRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stringchart_pipeline_runs_total",
			Help: "Total pipeline runs.",
		}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stringchart_pipeline_duration_seconds",
			Help:    "Duration of join, filter and grouping for one selection.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SceneDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stringchart_scene_duration_seconds",
			Help:    "Duration of scene projection including the hover index.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SkippedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stringchart_rows_degraded_total",
			Help: "Stop time rows dropped or degraded during enrichment.",
		}, []string{"reason"}),
		FeedLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stringchart_feed_loads_total",
			Help: "Feed loads by result.",
		}, []string{"result"}),
		FeedLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stringchart_feed_load_duration_seconds",
			Help:    "Duration of feed loads.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stringchart_cache_lookups_total",
			Help: "Scene cache lookups by result.",
		}, []string{"result"}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stringchart_events_received_total",
			Help: "NATS events received by subject.",
		}, []string{"subject"}),
	}

	reg.MustRegister(
		c.PipelineRuns, c.PipelineDuration, c.SceneDuration,
		c.SkippedRows, c.FeedLoads, c.FeedLoadDuration,
		c.CacheLookups, c.EventsReceived,
	)
	return c
}

// Registry exposes the private registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// ObservePipeline records one pipeline run and its degraded rows
func (c *Collector) ObservePipeline(d time.Duration, malformed, missingStops, orphans int) {
	if c == nil {
		return
	}
	c.PipelineRuns.Inc()
	c.PipelineDuration.Observe(d.Seconds())
	c.SkippedRows.WithLabelValues("malformed_time").Add(float64(malformed))
	c.SkippedRows.WithLabelValues("missing_stop").Add(float64(missingStops))
	c.SkippedRows.WithLabelValues("orphan").Add(float64(orphans))
}

func (c *Collector) ObserveScene(d time.Duration) {
	if c == nil {
		return
	}
	c.SceneDuration.Observe(d.Seconds())
}

// ObserveFeedLoad records a feed load, err == nil counts as ok
func (c *Collector) ObserveFeedLoad(d time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.FeedLoads.WithLabelValues(result).Inc()
	c.FeedLoadDuration.Observe(d.Seconds())
}

func (c *Collector) CacheHit() {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues("hit").Inc()
}

func (c *Collector) CacheMiss() {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues("miss").Inc()
}

func (c *Collector) EventReceived(subject string) {
	if c == nil {
		return
	}
	c.EventsReceived.WithLabelValues(subject).Inc()
}
