package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts checkout attempts and webhook deliveries.
type PaymentMetrics struct {
	checkouts *prometheus.CounterVec
	revenue   *prometheus.CounterVec
	webhooks  *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_attempts_total",
		Help:      "Order payment attempts by outcome.",
	}, []string{"outcome"})
	revenue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_revenue_minor_units_total",
		Help:      "Confirmed order totals in minor currency units.",
	}, []string{"currency"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stripe_webhook_events_total",
		Help:      "Verified Stripe webhook deliveries by type and result.",
	}, []string{"type", "result"})
	reg.MustRegister(checkouts, revenue, webhooks)
	return &PaymentMetrics{
		checkouts: checkouts,
		revenue:   revenue,
		webhooks:  webhooks,
	}
}

// CheckoutOutcome records a payment attempt; outcome is "succeeded" or the failure code.
func (m *PaymentMetrics) CheckoutOutcome(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) AddRevenue(currency string, minor int64) {
	if m == nil || m.revenue == nil || minor <= 0 {
		return
	}
	m.revenue.WithLabelValues(normalizeLabel(currency)).Add(float64(minor))
}

// WebhookEvent records a verified delivery; result is processed, duplicate, ignored or failed.
func (m *PaymentMetrics) WebhookEvent(eventType, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
