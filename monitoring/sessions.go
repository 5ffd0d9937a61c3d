package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionsFunc returns the number of active sessions per state name.
type SessionsFunc func() map[string]int

type sessionCollector struct {
	fetch SessionsFunc

	active *prometheus.Desc
}

func (c *sessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.active
}

func (c *sessionCollector) Collect(ch chan<- prometheus.Metric) {
	for state, n := range c.fetch() {
		ch <- prometheus.MustNewConstMetric(
			c.active, prometheus.GaugeValue, float64(n), state,
		)
	}
}

// RegisterSessions registers a collector reporting active sessions by state.
func RegisterSessions(reg prometheus.Registerer, fetch SessionsFunc) error {
	return reg.Register(&sessionCollector{
		fetch: fetch,
		active: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_sessions"),
			"Purchase sessions in flight by current state.",
			[]string{"state"}, nil,
		),
	})
}
