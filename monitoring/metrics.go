// Package monitoring exposes purchase flow metrics to Prometheus.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nftbuy"

// Outcome labels for finished purchases.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Transaction kind labels.
const (
	KindOptIn    = "optin"
	KindPurchase = "purchase"
)

// Metrics holds the purchase collectors. A nil *Metrics records nothing.
type Metrics struct {
	purchases    *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	submitted    *prometheus.CounterVec
	confirmWait  *prometheus.HistogramVec
	pollFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Finished purchases by outcome and failure kind.",
		}, []string{"outcome", "kind"}),

		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "State machine transitions by entered state.",
		}, []string{"state"}),

		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submitted_transactions_total",
			Help:      "Transactions accepted by the node, by kind.",
		}, []string{"kind"}),

		confirmWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_wait_seconds",
			Help:      "Time from submission to a resolved status.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"kind", "status"}),

		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmation_poll_failures_total",
			Help:      "Status polls that failed to reach the node.",
		}),
	}

	collectors := []prometheus.Collector{
		m.purchases, m.transitions, m.submitted, m.confirmWait,
		m.pollFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObservePurchase counts a finished purchase. kind is empty on success.
func (m *Metrics) ObservePurchase(outcome, kind string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome, kind).Inc()
}

// ObserveTransition counts entering a state.
func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

// ObserveSubmitted counts n accepted transactions of a kind.
func (m *Metrics) ObserveSubmitted(kind string, n int) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(kind).Add(float64(n))
}

// ObserveConfirmationWait records how long a submission took to resolve.
func (m *Metrics) ObserveConfirmationWait(kind, status string,
	d time.Duration) {

	if m == nil {
		return
	}
	m.confirmWait.WithLabelValues(kind, status).Observe(d.Seconds())
}

// ObservePollFailure counts a status poll that failed.
func (m *Metrics) ObservePollFailure() {
	if m == nil {
		return
	}
	m.pollFailures.Inc()
}
