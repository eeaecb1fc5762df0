package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes used as the "outcome" label.
const (
	OutcomeRejected  = "rejected"
	OutcomeInjected  = "injected"
	OutcomeForwarded = "forwarded"
	OutcomeFailed    = "failed"
)

// Metrics holds all Prometheus metrics for the proxy.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	failuresInjected  *prometheus.CounterVec
	failureDelay      prometheus.Histogram
	backendDuration   *prometheus.HistogramVec
	reloadTotal       *prometheus.CounterVec
	reloadLastSuccess prometheus.Gauge
	configVersion     prometheus.Gauge
	buildInfo         *prometheus.GaugeVec
	startTime         prometheus.Gauge
	registry          *prometheus.Registry
}

// NewMetrics creates a new Metrics instance backed by its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "faultproxy"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of proxied HTTP requests by outcome",
		},
		[]string{"method", "outcome"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10, 30,
			},
		},
		[]string{"method", "outcome"},
	)

	m.failuresInjected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_injected_total",
			Help:      "Total number of synthetic failures returned",
		},
		[]string{"endpoint", "status"},
	)

	m.failureDelay = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "failure_delay_seconds",
			Help:      "Delay applied before synthetic failures",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	m.backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_duration_seconds",
			Help:      "Duration of calls to the target backend",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	m.reloadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reload_total",
			Help:      "Total number of configuration reload attempts",
		},
		[]string{"result"},
	)

	m.reloadLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "config_reload_last_success_timestamp",
			Help:      "Unix time of the last successful configuration reload",
		},
	)

	m.configVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "config_version",
			Help:      "Version of the active configuration, incremented on every reload",
		},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the process in unix seconds",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.failuresInjected,
		m.failureDelay,
		m.backendDuration,
		m.reloadTotal,
		m.reloadLastSuccess,
		m.configVersion,
		m.buildInfo,
		m.startTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.startTime.SetToCurrentTime()

	return m
}

// RecordRequest records a finished request and its outcome.
func (m *Metrics) RecordRequest(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

// RecordInjection records a synthetic failure. The endpoint label is the
// configured path pattern, never the raw request path.
func (m *Metrics) RecordInjection(endpoint string, status int, delay time.Duration) {
	if m == nil {
		return
	}
	m.failuresInjected.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	if delay > 0 {
		m.failureDelay.Observe(delay.Seconds())
	}
}

// RecordBackend records one call to the backend. Status 0 means the call failed.
func (m *Metrics) RecordBackend(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.backendDuration.WithLabelValues(method, label).Observe(duration.Seconds())
}

// RecordReload records a configuration reload attempt.
func (m *Metrics) RecordReload(success bool, version int64) {
	if m == nil {
		return
	}
	if !success {
		m.reloadTotal.WithLabelValues("error").Inc()
		return
	}
	m.reloadTotal.WithLabelValues("success").Inc()
	m.reloadLastSuccess.SetToCurrentTime()
	m.configVersion.Set(float64(version))
}

// SetConfigVersion sets the active configuration version without
// counting a reload.
func (m *Metrics) SetConfigVersion(version int64) {
	if m == nil {
		return
	}
	m.configVersion.Set(float64(version))
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
