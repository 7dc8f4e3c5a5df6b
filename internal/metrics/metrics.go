// Package metrics holds the prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts sessions moved into the running phase.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mathsprint_sessions_started_total",
			Help: "Total number of started game sessions",
		},
	)

	// SessionsEnded counts finished sessions by reason: expired or stopped.
	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathsprint_sessions_ended_total",
			Help: "Total number of finished game sessions",
		},
		[]string{"reason"},
	)

	// Answers counts submissions by result: correct, wrong or ignored.
	Answers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathsprint_answers_total",
			Help: "Total number of answer submissions",
		},
		[]string{"result"},
	)

	// PersistenceFailures counts store operations that did not happen.
	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathsprint_persistence_failures_total",
			Help: "Total number of failed store operations",
		},
		[]string{"op"},
	)

	// ActiveSessions is the number of sessions currently running.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mathsprint_active_sessions",
			Help: "Current number of running game sessions",
		},
	)
)
