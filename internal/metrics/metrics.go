// Package metrics defines the Prometheus collectors shared by observers, the
// session server and the experiment runner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cocogo"

// Collectors groups every collector. A nil *Collectors is valid and records
// nothing.
type Collectors struct {
	// Evaluations counts objective evaluations seen by observers.
	// Labels: observer, suite
	Evaluations *prometheus.CounterVec
	// Records counts written data lines.
	// Labels: file (dat, tdat, rdat, mdat, toy)
	Records *prometheus.CounterVec
	// TargetsReached counts problems whose final target level fired.
	// Labels: suite
	TargetsReached *prometheus.CounterVec
	// ActiveSessions tracks open server sessions.
	ActiveSessions prometheus.Gauge
	// ProblemDuration measures solver wall time per problem.
	// Labels: solver
	ProblemDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "evaluations_total",
			Help:      "Objective evaluations seen by observers",
		}, []string{"observer", "suite"}),
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "records_total",
			Help:      "Data lines written by observers",
		}, []string{"file"}),
		TargetsReached: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "targets_reached_total",
			Help:      "Problems on which the final target was reached",
		}, []string{"suite"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "active_sessions",
			Help:      "Open evaluation sessions",
		}),
		ProblemDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "experiment",
			Name:      "problem_duration_seconds",
			Help:      "Solver wall time per problem",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"solver"}),
	}
}

// Evaluation counts one evaluation.
func (c *Collectors) Evaluation(observer, suite string) {
	if c == nil {
		return
	}
	c.Evaluations.WithLabelValues(observer, suite).Inc()
}

// Record counts one written line of the given file kind.
func (c *Collectors) Record(file string) {
	if c == nil {
		return
	}
	c.Records.WithLabelValues(file).Inc()
}

// TargetReached counts a problem whose final target fired.
func (c *Collectors) TargetReached(suite string) {
	if c == nil {
		return
	}
	c.TargetsReached.WithLabelValues(suite).Inc()
}

// SessionOpened increments the session gauge.
func (c *Collectors) SessionOpened() {
	if c == nil {
		return
	}
	c.ActiveSessions.Inc()
}

// SessionClosed decrements the session gauge.
func (c *Collectors) SessionClosed() {
	if c == nil {
		return
	}
	c.ActiveSessions.Dec()
}

// ObserveProblem records the solver time for one problem.
func (c *Collectors) ObserveProblem(solver string, seconds float64) {
	if c == nil {
		return
	}
	c.ProblemDuration.WithLabelValues(solver).Observe(seconds)
}
