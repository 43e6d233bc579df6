package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CartMetrics holds Prometheus metrics for cart-level observability.
type CartMetrics struct {
	ItemsAdded   prometheus.Counter
	ItemsRemoved prometheus.Counter
	ItemsUpdated prometheus.Counter
	CartsCleared prometheus.Counter
	SyncBatches  prometheus.Counter
	SyncItems    prometheus.Counter
	LockTimeouts prometheus.Counter
	LockWait     prometheus.Histogram
	CartValue    prometheus.Histogram
}

// NewCartMetrics creates and registers cart metrics under the given
// namespace using the default registerer.
func NewCartMetrics(namespace string) *CartMetrics {
	if namespace == "" {
		namespace = "atelier"
	}

	return &CartMetrics{
		ItemsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_items_added_total",
			Help:      "Total cart line additions (including merges)",
		}),
		ItemsRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_items_removed_total",
			Help:      "Total cart line removals",
		}),
		ItemsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_items_updated_total",
			Help:      "Total cart line quantity updates",
		}),
		CartsCleared: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_cleared_total",
			Help:      "Total cart clear operations",
		}),
		SyncBatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_sync_batches_total",
			Help:      "Total local-cart sync batches processed",
		}),
		SyncItems: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_sync_items_total",
			Help:      "Total items processed across sync batches",
		}),
		LockTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_lock_timeouts_total",
			Help:      "Cart mutations rejected because the per-user lock could not be acquired in time",
		}),
		LockWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_lock_wait_seconds",
			Help:      "Time spent waiting for the per-user cart lock",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		CartValue: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_value_cents",
			Help:      "Cart grand total after a mutation, in cents",
			Buckets:   prometheus.ExponentialBuckets(500, 2.5, 10),
		}),
	}
}
