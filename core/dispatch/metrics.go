package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveryLatency  *prometheus.HistogramVec
	deliveriesTotal  *prometheus.CounterVec
	roundsTotal      *prometheus.CounterVec
	roundSuccessRate prometheus.Gauge
	transportPanics  prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_delivery_latency_seconds",
			Help:    "Duration of a single delivery attempt to a target",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target_id"},
	)
	del := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_deliveries_total",
			Help: "Number of delivery attempts by target and result",
		},
		[]string{"target_id", "result"},
	)
	rounds := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_rounds_total",
			Help: "Number of completed rounds by status",
		},
		[]string{"status"},
	)
	rate := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_round_success_ratio",
			Help: "Share of successful deliveries in the last non-empty round",
		},
	)
	panics := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_transport_panics_total",
			Help: "Number of delivery attempts aborted by a transport panic",
		},
	)
	return lat, del, rounds, rate, panics
}

func init() {
	deliveryLatency, deliveriesTotal, roundsTotal, roundSuccessRate, transportPanics = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(deliveryLatency, deliveriesTotal, roundsTotal, roundSuccessRate, transportPanics)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	deliveryLatency, deliveriesTotal, roundsTotal, roundSuccessRate, transportPanics = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
