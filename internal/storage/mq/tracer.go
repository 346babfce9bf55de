package mq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("internal/storage/mq")

var (
	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "product_catalog",
		Subsystem: "mq",
		Name:      "publish_total",
		Help:      "Number of publish attempts by routing key and result.",
	}, []string{"routing_key", "result"})

	consumeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "product_catalog",
		Subsystem: "mq",
		Name:      "consume_total",
		Help:      "Number of consumed deliveries by routing key and result.",
	}, []string{"routing_key", "result"})
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)
