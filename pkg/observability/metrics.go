package observability

import (
	"context"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by the lifecycle hooks.
type Metrics struct {
	StateEntries   *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	Commands       *prometheus.CounterVec
	CommandErrors  *prometheus.CounterVec
	Ignored        *prometheus.CounterVec
	Recognitions   *prometheus.CounterVec
	Confidence     prometheus.Histogram
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StateEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlance_state_entries_total",
			Help: "Total number of state entries",
		}, []string{"state"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlance_transitions_total",
			Help: "Transitions taken, by triggering event",
		}, []string{"event"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlance_commands_total",
			Help: "Commands sent to the speech collaborator",
		}, []string{"type"}),
		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlance_command_errors_total",
			Help: "Commands the speech collaborator rejected",
		}, []string{"type"}),
		Ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlance_events_ignored_total",
			Help: "Events that produced no transition",
		}, []string{"reason"}),
		Recognitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parlance_recognitions_total",
			Help: "Recognition outcomes (recognised or no input)",
		}, []string{"outcome"}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "parlance_recognition_confidence",
			Help:    "Confidence reported with recognitions",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parlance_active_sessions",
			Help: "Sessions currently running",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.StateEntries, m.Transitions, m.Commands, m.CommandErrors,
			m.Ignored, m.Recognitions, m.Confidence, m.ActiveSessions)
	}
	return m
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.StateEntries.WithLabelValues(e.StateID).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.Event)).Inc()
		},
		OnCommand: func(_ context.Context, e *domain.CommandEvent) {
			m.Commands.WithLabelValues(string(e.Command.Type)).Inc()
			if e.Err != nil {
				m.CommandErrors.WithLabelValues(string(e.Command.Type)).Inc()
			}
		},
		OnCollaborator: func(_ context.Context, e *domain.CollaboratorEvent) {
			switch e.Event.Type {
			case domain.EventRecognised:
				m.Recognitions.WithLabelValues("recognised").Inc()
				if r := e.Event.Result; r != nil && r.Confidence != nil {
					m.Confidence.Observe(*r.Confidence)
				}
			case domain.EventNoInput:
				m.Recognitions.WithLabelValues("noinput").Inc()
			}
		},
		OnEventIgnored: func(_ context.Context, e *domain.IgnoredEvent) {
			m.Ignored.WithLabelValues(e.Reason).Inc()
		},
	}
}

// SessionStarted increments the active sessions gauge.
func (m *Metrics) SessionStarted() { m.ActiveSessions.Inc() }

// SessionEnded decrements the active sessions gauge.
func (m *Metrics) SessionEnded() { m.ActiveSessions.Dec() }
