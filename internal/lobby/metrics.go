package lobby

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lobbiesCancelled = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lunchorder",
		Subsystem: "lobby",
		Name:      "cancelled_total",
		Help:      "Total number of lobbies cancelled for not reaching quorum",
	},
)
