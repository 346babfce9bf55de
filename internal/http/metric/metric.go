package metric

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP server metrics.
type Metrics struct {
	InflightRequests prometheus.Gauge
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

// New registers the HTTP metrics on reg. Collectors already registered on reg are reused.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		InflightRequests: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "product_catalog",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Number of HTTP requests currently being served.",
		})),
		RequestsTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "product_catalog",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"})),
		RequestDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "product_catalog",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
