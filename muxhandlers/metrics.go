package muxhandlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitalvas/flacon/mux"
)

// ErrNoMetrics is returned when MetricsMiddleware is given a nil *Metrics.
var ErrNoMetrics = errors.New("metrics: metrics must not be nil")

// unmatchedEndpoint is the endpoint label for requests answered by a
// fallback, keeping label cardinality bounded.
const unmatchedEndpoint = "unmatched"

// Metrics holds the Prometheus collectors recorded by MetricsMiddleware.
// Each instance owns its registry, so several applications can be
// instrumented in one process.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	registry        *prometheus.Registry
}

// NewMetrics creates the request collectors under namespace, which defaults
// to "flacon", and registers them together with the Go and process
// collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "flacon"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "endpoint", "status"},
	)

	m.responseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "endpoint", "status"},
	)

	m.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests being handled",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.responseSize,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordRequest records a completed request. endpoint must be the matched
// endpoint, never the raw path.
func (m *Metrics) RecordRequest(method, endpoint string, status int, duration time.Duration, size int) {
	statusStr := strconv.Itoa(status)

	m.requestsTotal.WithLabelValues(method, endpoint, statusStr).Inc()
	m.requestDuration.WithLabelValues(method, endpoint, statusStr).Observe(duration.Seconds())
	m.responseSize.WithLabelValues(method, endpoint, statusStr).Observe(float64(size))
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware returns a middleware that records request count,
// duration and response size labelled by method, endpoint and status.
// Requests answered by a fallback are labelled with the endpoint
// "unmatched".
//
// It returns ErrNoMetrics if m is nil.
func MetricsMiddleware(m *Metrics) (mux.MiddlewareFunc, error) {
	if m == nil {
		return nil, ErrNoMetrics
	}

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			start := time.Now()
			resp := c.Respond(next)

			endpoint := c.Endpoint()
			if c.Rule() == nil {
				endpoint = unmatchedEndpoint
			}

			m.RecordRequest(c.Method(), endpoint, resp.StatusCode(), time.Since(start), len(resp.Body))

			return resp, nil
		}
	}, nil
}
