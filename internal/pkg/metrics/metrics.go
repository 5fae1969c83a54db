package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "paas_deployer"

var (
	deployBuckets = []float64{1, 2, 5, 10, 30, 60, 120, 300, 600}
	httpBuckets   = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	deployments       *prometheus.CounterVec
	deployDuration    *prometheus.HistogramVec
	artifactsResolved *prometheus.CounterVec
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// New registers the collectors on reg. Collectors that are already
// registered (a second agent in the same process, tests) are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Number of deployment attempts by mode and result",
		}, []string{"mode", "result"}),
		deployDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deployment_duration_seconds",
			Help:      "Duration of deployment attempts",
			Buckets:   deployBuckets,
		}, []string{"mode"}),
		artifactsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_resolved_total",
			Help:      "Number of artifacts selected for deployment",
		}, []string{"mode"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   httpBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.deployments = registerCounter(reg, m.deployments)
	m.deployDuration = registerHistogram(reg, m.deployDuration)
	m.artifactsResolved = registerCounter(reg, m.artifactsResolved)
	m.requestTotal = registerCounter(reg, m.requestTotal)
	m.requestDuration = registerHistogram(reg, m.requestDuration)
	return m
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func registerHistogram(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return h
}

func (m *Metrics) RecordDeployment(mode string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.deployments.WithLabelValues(mode, result).Inc()
	m.deployDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *Metrics) RecordArtifacts(mode string, n int) {
	if m == nil {
		return
	}
	m.artifactsResolved.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(duration.Seconds())
}
