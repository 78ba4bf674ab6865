package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	groupOrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lunchorder",
			Subsystem: "aggregator",
			Name:      "group_orders_created_total",
			Help:      "Total number of group orders created",
		},
	)

	notifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lunchorder",
			Subsystem: "aggregator",
			Name:      "notify_failures_total",
			Help:      "Total number of failed restaurant notifications",
		},
	)
)
