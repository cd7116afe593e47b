package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_orders_failed_total",
		Help: "Total number of rejected order placements",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_cancelled_total",
		Help: "Total number of orders cancelled by their owner",
	})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_order_status_changes_total",
		Help: "Total number of administrative order status changes",
	}, []string{"status"})

	OrderPlacementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shop_order_placement_latency_seconds",
		Help:    "Latency of order placement including payment",
		Buckets: prometheus.DefBuckets,
	})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_payments_recorded_total",
		Help: "Total number of payments recorded",
	}, []string{"method"})

	ProductCacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_product_cache_requests_total",
		Help: "Product cache lookups by result",
	}, []string{"result"})

	OrderEventsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_order_events_recorded_total",
		Help: "Order events consumed into the audit log",
	}, []string{"type", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
