package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeEmpty    = "empty_cart"
	OutcomeConflict = "stock_conflict"
	OutcomeError    = "error"
)

// CommerceMetrics tracks cart and checkout activity.
type CommerceMetrics struct {
	checkouts        *prometheus.CounterVec
	checkoutDuration prometheus.Histogram
	stockConflicts   *prometheus.CounterVec
	mergedItems      prometheus.Counter
	unitsSold        prometheus.Counter
}

// NewCommerceMetrics registers the cart/checkout collectors on reg.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	m := &CommerceMetrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		checkoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Time spent inside the checkout transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		stockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflicts_total",
			Help:      "Requests rejected because stock could not cover the quantity.",
		}, []string{"operation"}),
		mergedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merged_items_total",
			Help:      "Guest cart items merged into user carts.",
		}),
		unitsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_sold_total",
			Help:      "Units decremented from stock by successful checkouts.",
		}),
	}
	reg.MustRegister(m.checkouts, m.checkoutDuration, m.stockConflicts, m.mergedItems, m.unitsSold)
	return m
}

// ObserveCheckout records one checkout attempt.
func (m *CommerceMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

// IncStockConflict counts a rejection for the named operation (add_item, update_item, checkout).
func (m *CommerceMetrics) IncStockConflict(operation string) {
	if m == nil || m.stockConflicts == nil {
		return
	}
	m.stockConflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

// AddMergedItems counts items moved or combined by a guest cart merge.
func (m *CommerceMetrics) AddMergedItems(n int) {
	if m == nil || m.mergedItems == nil || n <= 0 {
		return
	}
	m.mergedItems.Add(float64(n))
}

// AddUnitsSold counts units decremented at checkout.
func (m *CommerceMetrics) AddUnitsSold(n int) {
	if m == nil || m.unitsSold == nil || n <= 0 {
		return
	}
	m.unitsSold.Add(float64(n))
}
