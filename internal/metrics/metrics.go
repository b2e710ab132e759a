package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the relay pipeline
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	DedupRetractionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dedup_retractions_total",
			Help: "Delivery keys released after a processing failure",
		},
	)

	DedupKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_dedup_keys",
			Help: "Delivery keys currently remembered",
		},
	)

	ReactionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_reaction_transitions_total",
			Help: "Reaction state transitions by target state",
		},
		[]string{"state"},
	)

	CompletionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_completion_duration_seconds",
			Help:    "Duration of completion API calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"result"},
	)

	CompletionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_completion_tokens_total",
			Help: "Tokens consumed by kind (input, output)",
		},
		[]string{"kind"},
	)

	WarehouseWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_warehouse_writes_total",
			Help: "Warehouse row inserts by result",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics with the default registry
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(DeliveriesTotal)
		prometheus.MustRegister(DedupRetractionsTotal)
		prometheus.MustRegister(DedupKeys)
		prometheus.MustRegister(ReactionTransitionsTotal)
		prometheus.MustRegister(CompletionDuration)
		prometheus.MustRegister(CompletionTokensTotal)
		prometheus.MustRegister(WarehouseWritesTotal)
	})
}
