package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts executed units and instructions.
type Metrics struct {
	units        *prometheus.CounterVec
	instructions *prometheus.CounterVec
}

// NewMetrics registers the ledger collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swapchain",
			Name:      "units_total",
			Help:      "Atomic units processed, by outcome.",
		}, []string{"status"}),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swapchain",
			Name:      "instructions_total",
			Help:      "Top level instructions executed, by program.",
		}, []string{"program"}),
	}
	for _, c := range []prometheus.Collector{m.units, m.instructions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeUnit(status string) {
	if m == nil {
		return
	}
	m.units.WithLabelValues(status).Inc()
}

func (m *Metrics) observeInstruction(program string) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(program).Inc()
}
