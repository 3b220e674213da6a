package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BagItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bag_items_added_total",
		Help: "Total number of artworks added to bags",
	})

	BagItemsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bag_items_duplicate_total",
		Help: "Total number of add-to-bag requests for artworks already in the bag",
	})

	BagItemsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bag_items_removed_total",
		Help: "Total number of artwork entries removed from bags",
	})

	BagClearedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bag_cleared_total",
		Help: "Total number of bags cleared",
	})

	PromoApplicationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_applications_total",
		Help: "Total number of promo code applications",
	}, []string{"result"})

	OrdersPlacingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placing_total",
		Help: "Total number of order placements started",
	})

	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Total number of orders confirmed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of pending placements abandoned before confirmation",
	})

	OrderPlacementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_placement_latency_seconds",
		Help:    "Latency between placing and confirming an order",
		Buckets: prometheus.DefBuckets,
	})

	OrderReceiptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_receipts_total",
		Help: "Total number of order receipts processed from the event stream",
	})

	StorageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_errors_total",
		Help: "Total number of storage failures",
	}, []string{"op"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bag_active_sessions",
		Help: "Number of bag sessions currently held in memory",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_clients",
		Help: "Number of connected order status websocket clients",
	})

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
