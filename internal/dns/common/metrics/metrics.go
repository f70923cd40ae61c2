// Package metrics holds the Prometheus instrumentation for the DNS core.
// Everything here is fire-and-forget: the serving path never depends on a
// metric call succeeding.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts every query that reached the resolver, labelled
	// by transport and final rcode.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goatd",
		Name:      "queries_total",
		Help:      "DNS queries handled, by transport and response code.",
	}, []string{"transport", "rcode"})

	// DroppedTotal counts work units that never produced a response:
	// queue_full, timeout, or decode failures on UDP.
	DroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goatd",
		Name:      "dropped_total",
		Help:      "Work units dropped without a response, by reason.",
	}, []string{"reason"})

	// ResolveDuration observes end-to-end resolution latency.
	ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "goatd",
		Name:      "resolve_duration_seconds",
		Help:      "Time from dispatch to resolved response.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	// SnapshotReloads counts zone snapshot swaps, by result.
	SnapshotReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goatd",
		Name:      "snapshot_reloads_total",
		Help:      "Zone snapshot rebuilds, by result.",
	}, []string{"result"})

	// TruncatedTotal counts UDP responses sent with TC=1.
	TruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "goatd",
		Name:      "truncated_total",
		Help:      "UDP responses truncated to fit the payload limit.",
	})
)
