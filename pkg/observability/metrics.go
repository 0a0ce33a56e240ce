package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"groundtrack/pkg/track"
	"groundtrack/pkg/tracker"
)

// Collector bundles the Prometheus metrics of the service. It implements
// track.Metrics so the animator can report runs and ticks directly.
type Collector struct {
	gatherer prometheus.Gatherer

	Runs          *prometheus.CounterVec
	RunDurations  *prometheus.HistogramVec
	Rejections    prometheus.Counter
	Ticks         prometheus.Counter
	Markers       prometheus.Gauge
	Skipped       prometheus.Counter
	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice on one registry reuses the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.Runs, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groundtrack_runs_total",
		Help: "Animation runs, labeled by outcome (started, completed, aborted).",
	}, []string{"outcome"}), "groundtrack_runs_total"); err != nil {
		return nil, err
	}
	if c.RunDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "groundtrack_run_duration_seconds",
		Help:    "Wall-clock length of finished runs.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"outcome"}), "groundtrack_run_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Rejections, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groundtrack_run_rejections_total",
		Help: "Run requests rejected because an animation was active.",
	}), "groundtrack_run_rejections_total"); err != nil {
		return nil, err
	}
	if c.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groundtrack_ticks_total",
		Help: "Animation frames drawn.",
	}), "groundtrack_ticks_total"); err != nil {
		return nil, err
	}
	if c.Markers, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "groundtrack_markers",
		Help: "Markers drawn in the most recent frame.",
	}), "groundtrack_markers"); err != nil {
		return nil, err
	}
	if c.Skipped, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groundtrack_samples_skipped_total",
		Help: "Samples not drawn because their coordinates were missing.",
	}), "groundtrack_samples_skipped_total"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groundtrack_http_requests_total",
		Help: "Handled API requests, labeled by route and status code.",
	}, []string{"route", "code"}), "groundtrack_http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "groundtrack_http_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route"}), "groundtrack_http_request_duration_seconds"); err != nil {
		return nil, err
	}
	return c, nil
}

// RunStarted implements track.Metrics.
func (c *Collector) RunStarted() {
	c.Runs.WithLabelValues("started").Inc()
}

// RunRejected implements track.Metrics.
func (c *Collector) RunRejected() {
	c.Rejections.Inc()
}

// RunFinished implements track.Metrics.
func (c *Collector) RunFinished(state track.State, d time.Duration) {
	c.Runs.WithLabelValues(string(state)).Inc()
	c.RunDurations.WithLabelValues(string(state)).Observe(d.Seconds())
}

// Tick implements track.Metrics.
func (c *Collector) Tick(markers int) {
	c.Ticks.Inc()
	c.Markers.Set(float64(markers))
}

// SampleSkipped implements track.Metrics.
func (c *Collector) SampleSkipped() {
	c.Skipped.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Instrument wraps next, counting requests under route.
func (c *Collector) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		c.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		c.HTTPDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

var _ track.Metrics = (*Collector)(nil)

// TrackerCollector exports request tracker counters per upstream.
type TrackerCollector struct {
	tr   *tracker.Tracker
	desc *prometheus.Desc
}

// NewTrackerCollector creates a collector reading tr on every scrape.
func NewTrackerCollector(tr *tracker.Tracker) *TrackerCollector {
	return &TrackerCollector{
		tr: tr,
		desc: prometheus.NewDesc("groundtrack_upstream_requests_total",
			"Outbound requests per upstream, labeled by outcome (cache_hit, cache_miss, fetched, failed).",
			[]string{"upstream", "outcome"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (t *TrackerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- t.desc
}

// Collect implements prometheus.Collector.
func (t *TrackerCollector) Collect(ch chan<- prometheus.Metric) {
	for upstream, c := range t.tr.Snapshot() {
		for _, o := range tracker.Outcomes() {
			ch <- prometheus.MustNewConstMetric(t.desc, prometheus.CounterValue, float64(c.Get(o)), upstream, o.String())
		}
	}
}
