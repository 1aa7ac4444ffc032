// Package metrics exposes playback counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/narrate/player"
	playersync "github.com/dgnsrekt/narrate/player/sync"
)

// Metrics holds the synchronizer and remote-control metrics. It implements
// the synchronizer's Recorder.
type Metrics struct {
	registry *prometheus.Registry

	segmentsBuilt     prometheus.Counter
	decodeFailures    prometheus.Counter
	segmentsCompleted prometheus.Counter
	staleCompletions  *prometheus.CounterVec
	bufferingStalls   prometheus.Counter
	activeSets        prometheus.Gauge
	readinessWait     prometheus.Histogram
	requestsTotal     *prometheus.CounterVec
}

var _ playersync.Recorder = (*Metrics)(nil)

// New creates and registers the metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		segmentsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "narrate_segments_built_total",
			Help: "Total number of segment resource sets built",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "narrate_decode_failures_total",
			Help: "Total number of segments whose bytes could not be decoded",
		}),
		segmentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "narrate_segments_completed_total",
			Help: "Total number of segments played to their natural end",
		}),
		staleCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "narrate_stale_completions_total",
			Help: "Asynchronous results discarded because their segment was superseded",
		}, []string{"kind"}),
		bufferingStalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "narrate_buffering_stalls_total",
			Help: "Readiness waits that timed out",
		}),
		activeSets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "narrate_active_resource_sets",
			Help: "Number of resource sets currently held (0 or 1)",
		}),
		readinessWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "narrate_readiness_wait_seconds",
			Help:    "Time from play intent to enough buffered data",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "narrate_remote_requests_total",
			Help: "Remote-control HTTP requests by status class",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		m.segmentsBuilt,
		m.decodeFailures,
		m.segmentsCompleted,
		m.staleCompletions,
		m.bufferingStalls,
		m.activeSets,
		m.readinessWait,
		m.requestsTotal,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SegmentBuilt(player.SegmentID) { m.segmentsBuilt.Inc() }

func (m *Metrics) DecodeFailed(player.SegmentID) { m.decodeFailures.Inc() }

func (m *Metrics) SegmentCompleted(player.SegmentID) { m.segmentsCompleted.Inc() }

func (m *Metrics) StaleCompletion(kind string) { m.staleCompletions.WithLabelValues(kind).Inc() }

func (m *Metrics) BufferingStalled(player.SegmentID) { m.bufferingStalls.Inc() }

func (m *Metrics) ActiveSets(n int) { m.activeSets.Set(float64(n)) }

func (m *Metrics) ReadinessWait(d time.Duration) { m.readinessWait.Observe(d.Seconds()) }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusWriter captures the status code for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware counts requests by status class (2xx, 4xx, ...).
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.requestsTotal.WithLabelValues(statusClass(sw.status)).Inc()
		})
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
