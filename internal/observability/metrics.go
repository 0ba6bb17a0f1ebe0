package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	CartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	ActiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cart_active_subscribers",
			Help: "Live cart callbacks registered in this process",
		},
	)

	SnapshotLoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_snapshot_load_failures_total",
			Help: "Cart snapshots that could not be read or decoded",
		},
		[]string{"reason"},
	)

	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_checkouts_total",
			Help: "Checkouts by outcome",
		},
		[]string{"outcome"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cart_db_tx_seconds",
			Help:    "Duration of booking transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_outbox_published_total",
			Help: "Outbox records relayed to the broker",
		},
		[]string{"outcome"},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
