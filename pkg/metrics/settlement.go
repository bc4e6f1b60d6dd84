package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records counters for the money-moving paths: payment
// verification, commission computation, and payout composition.
type SettlementMetrics struct {
	gatewayLatency  *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	commissions     *prometheus.CounterVec
	payouts         *prometheus.CounterVec
	checkoutSplits  prometheus.Counter
	riderDispatches *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_reconciled_total",
		Help: "Payment verifications by outcome.",
	}, []string{"outcome"})
	commissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commissions_computed_total",
		Help: "Commission computations by outcome.",
	}, []string{"outcome"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_composed_total",
		Help: "Payout compositions by outcome.",
	}, []string{"outcome"})
	checkoutSplits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_splits_total",
		Help: "Checkout sessions split into per-seller orders.",
	})
	riderDispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rider_dispatches_total",
		Help: "Rider dispatch attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(gatewayLatency, payments, commissions, payouts, checkoutSplits, riderDispatches)
	return &SettlementMetrics{
		gatewayLatency:  gatewayLatency,
		payments:        payments,
		commissions:     commissions,
		payouts:         payouts,
		checkoutSplits:  checkoutSplits,
		riderDispatches: riderDispatches,
	}
}

// ObserveGatewayLatency records the duration of one gateway call.
func (m *SettlementMetrics) ObserveGatewayLatency(operation string, duration time.Duration) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncPayment increments the payment reconciliation counter for the outcome.
func (m *SettlementMetrics) IncPayment(outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCommission increments the commission computation counter for the outcome.
func (m *SettlementMetrics) IncCommission(outcome string) {
	if m == nil || m.commissions == nil {
		return
	}
	m.commissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncPayout increments the payout composition counter for the outcome.
func (m *SettlementMetrics) IncPayout(outcome string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCheckoutSplit increments the checkout split counter.
func (m *SettlementMetrics) IncCheckoutSplit() {
	if m == nil || m.checkoutSplits == nil {
		return
	}
	m.checkoutSplits.Inc()
}

// IncRiderDispatch increments the dispatch counter for the outcome.
func (m *SettlementMetrics) IncRiderDispatch(outcome string) {
	if m == nil || m.riderDispatches == nil {
		return
	}
	m.riderDispatches.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
