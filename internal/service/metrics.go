package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	confirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payconfirm_confirmations_total",
		Help: "Applied ledger transitions, labeled by rail and resulting status",
	}, []string{"rail", "status"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payconfirm_notifications_total",
		Help: "Notification attempts, labeled by audience and outcome",
	}, []string{"audience", "outcome"})

	webhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payconfirm_webhooks_total",
		Help: "Inbound webhook deliveries, labeled by rail and outcome",
	}, []string{"rail", "outcome"})

	railVerifySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payconfirm_rail_verify_seconds",
		Help:    "Latency of rail verification calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"rail"})
)
