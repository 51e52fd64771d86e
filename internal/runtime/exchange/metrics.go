package exchange

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
)

// Metrics tracks exchange outcomes. A nil *Metrics is valid and records
// nothing, so instrumentation stays optional.
type Metrics struct {
	inFlight prometheus.Gauge
	outcomes *prometheus.CounterVec
}

// NewMetrics creates exchange metrics registered against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enginectl",
			Subsystem: "exchange",
			Name:      "in_flight",
			Help:      "Number of exchanges currently awaiting a response.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enginectl",
			Subsystem: "exchange",
			Name:      "outcomes_total",
			Help:      "Completed exchanges by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.inFlight, m.outcomes)
	}
	return m
}

func (m *Metrics) registered() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) resolved() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.outcomes.WithLabelValues("resolved").Inc()
}

func (m *Metrics) failed(err error) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.outcomes.WithLabelValues(outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, runtimeerrors.ErrTimeout):
		return "timeout"
	case errors.Is(err, runtimeerrors.ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}
