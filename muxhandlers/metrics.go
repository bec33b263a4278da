package muxhandlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vitalvas/routetree/mux"
)

// DefaultMetricsNamespace prefixes every metric when MetricsConfig.Namespace
// is empty.
const DefaultMetricsNamespace = "routetree"

// MetricsConfig configures the request metrics collectors.
type MetricsConfig struct {
	// Registerer receives the collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Namespace prefixes the metric names. Defaults to
	// DefaultMetricsNamespace.
	Namespace string

	// Buckets are the request duration histogram buckets in seconds.
	// Defaults to prometheus.DefBuckets.
	Buckets []float64
}

// Metrics holds the Prometheus collectors for routed requests. Every series
// is labelled by route template, bound method and status class, which keeps
// cardinality proportional to the number of registered routes.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.CounterVec
	inflight *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them. Collectors that are
// already registered with identical descriptors are reused, so several
// routers may share one registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	labels := []string{"route", "method", "status"}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of routed requests.",
			},
			labels,
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of routed requests.",
				Buckets:   buckets,
			},
			labels,
		),
		size: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "response_bytes_total",
				Help:      "Total number of response body bytes written.",
			},
			labels,
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being served.",
			},
			[]string{"route"},
		),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.size, err = register(reg, m.size); err != nil {
		return nil, err
	}
	if m.inflight, err = register(reg, m.inflight); err != nil {
		return nil, err
	}

	return m, nil
}

// register registers c, returning the existing collector when an
// identical one is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Middleware returns the middleware recording the metrics.
func (m *Metrics) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeTemplate(r)
			method := r.Method
			if current := mux.CurrentRoute(r); current != nil {
				method = current.Method()
			}

			inflight := m.inflight.WithLabelValues(route)
			inflight.Inc()
			defer inflight.Dec()

			start := time.Now()
			rw := newResponseRecorder(w)

			next.ServeHTTP(rw, r)

			status := statusClass(rw.status)
			m.requests.WithLabelValues(route, method, status).Inc()
			m.duration.WithLabelValues(route, method, status).Observe(time.Since(start).Seconds())
			m.size.WithLabelValues(route, method, status).Add(float64(rw.size))
		})
	}
}

// MetricsMiddleware is a shorthand for NewMetrics followed by Middleware.
func MetricsMiddleware(cfg MetricsConfig) (mux.MiddlewareFunc, error) {
	m, err := NewMetrics(cfg)
	if err != nil {
		return nil, err
	}
	return m.Middleware(), nil
}
