// Package metrics содержит prometheus коллекторы сервиса. Коллекторы регистрируются в реестре по умолчанию
// и отдаются хендлером promhttp на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "peerinvest"

// Значения метки result.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultFailure  = "failure"
	ResultPartial  = "partial"
	ResultDropped  = "dropped"
)

var (
	Purchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purchases_total",
		Help:      "Investment purchases by result.",
	}, []string{"result"})

	Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cancellations_total",
		Help:      "Investment cancellations by result.",
	}, []string{"result"})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Payment gateway request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Handled HTTP requests.",
	}, []string{"method", "route", "status"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification deliveries by result.",
	}, []string{"result"})
)
