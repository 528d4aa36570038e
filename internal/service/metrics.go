package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrderMetrics holds the order workflow counters.
type OrderMetrics struct {
	ordersCreated prometheus.Counter
	orderValue    prometheus.Histogram
	transitions   *prometheus.CounterVec
	rejected      *prometheus.CounterVec
}

// NewOrderMetrics registers the order workflow metrics on reg.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	f := promauto.With(reg)
	return &OrderMetrics{
		ordersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "delivery_orders_created_total",
			Help: "Orders successfully created.",
		}),
		orderValue: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "delivery_order_total_amount",
			Help:    "Total amount of created orders in minor currency units.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_order_status_transitions_total",
			Help: "Applied order status changes.",
		}, []string{"from", "to"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_order_transitions_rejected_total",
			Help: "Status changes refused because the order is in a terminal status.",
		}, []string{"to"}),
	}
}
