package fds

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors of the library. A nil *Metrics records nothing.
type Metrics struct {
	EOPMisses        *prometheus.CounterVec
	PropagationSteps *prometheus.CounterVec
	Events           *prometheus.CounterVec
	Maneuvers        prometheus.Counter
	SOISwitches      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg (if not nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EOPMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fds",
			Name:      "eop_miss_total",
			Help:      "Number of EOP lookups without data, by missing policy.",
		}, []string{"policy"}),
		PropagationSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fds",
			Name:      "propagation_steps_total",
			Help:      "Number of states produced, by propagator.",
		}, []string{"propagator"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fds",
			Name:      "events_total",
			Help:      "Number of events detected, by listener kind.",
		}, []string{"listener"}),
		Maneuvers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fds",
			Name:      "maneuvers_total",
			Help:      "Number of impulsive maneuvers applied.",
		}),
		SOISwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fds",
			Name:      "soi_switches_total",
			Help:      "Number of sphere of influence transitions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.EOPMisses, m.PropagationSteps, m.Events, m.Maneuvers, m.SOISwitches)
	}
	return m
}

func (m *Metrics) eopMiss(policy string) {
	if m != nil {
		m.EOPMisses.WithLabelValues(policy).Inc()
	}
}

func (m *Metrics) step(propagator string) {
	if m != nil {
		m.PropagationSteps.WithLabelValues(propagator).Inc()
	}
}

func (m *Metrics) event(listener string) {
	if m != nil {
		m.Events.WithLabelValues(listener).Inc()
	}
}

func (m *Metrics) maneuver() {
	if m != nil {
		m.Maneuvers.Inc()
	}
}

func (m *Metrics) soiSwitch() {
	if m != nil {
		m.SOISwitches.Inc()
	}
}
