// Package metrics exposes Prometheus instrumentation for deliveries, fix
// sessions, and risk assessments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/deliverd/internal/fixtree"
	"github.com/fyrsmithlabs/deliverd/internal/flow"
	"github.com/fyrsmithlabs/deliverd/internal/risk"
)

var (
	_ flow.Observer    = (*Metrics)(nil)
	_ fixtree.Observer = (*Metrics)(nil)
)

// Metrics holds the Prometheus collectors. It implements flow.Observer and
// fixtree.Observer so it can be handed straight to both services.
type Metrics struct {
	// Delivery flows
	FlowPhasesTotal    *prometheus.CounterVec
	FlowPhaseDuration  *prometheus.HistogramVec
	FlowsFinishedTotal *prometheus.CounterVec

	// Fix sessions
	FixAttemptsTotal *prometheus.CounterVec
	FixSessionsTotal *prometheus.CounterVec

	// Risk assessments
	AssessmentsTotal *prometheus.CounterVec
	RiskScore        prometheus.Histogram
}

// New creates and registers the collectors on reg.
//
// All metrics are prefixed with "deliverd_":
//   - deliverd_flow_phases_total{phase,status} - phase completions by outcome
//   - deliverd_flow_phase_duration_seconds{phase} - phase wall time
//   - deliverd_flows_finished_total{status} - terminal flow outcomes
//   - deliverd_fix_attempts_total{strategy,result} - fix attempts by outcome
//   - deliverd_fix_sessions_total{status} - terminal fix session outcomes
//   - deliverd_assessments_total{status} - risk assessments by status
//   - deliverd_risk_score - distribution of computed risk scores
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FlowPhasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverd_flow_phases_total",
				Help: "Total number of delivery phases finished, by phase and status",
			},
			[]string{"phase", "status"},
		),
		FlowPhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deliverd_flow_phase_duration_seconds",
				Help:    "Wall time spent in each delivery phase",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"phase"},
		),
		FlowsFinishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverd_flows_finished_total",
				Help: "Total number of delivery flows reaching a terminal status",
			},
			[]string{"status"},
		),
		FixAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverd_fix_attempts_total",
				Help: "Total number of fix attempts, by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		FixSessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverd_fix_sessions_total",
				Help: "Total number of fix sessions reaching a terminal status",
			},
			[]string{"status"},
		),
		AssessmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliverd_assessments_total",
				Help: "Total number of delay risk assessments, by resulting status",
			},
			[]string{"status"},
		),
		RiskScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deliverd_risk_score",
				Help:    "Distribution of computed risk scores",
				Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
			},
		),
	}
}

// ObserveFlowPhase implements flow.Observer.
func (m *Metrics) ObserveFlowPhase(phase flow.Phase, status flow.PhaseStatus, elapsed time.Duration) {
	m.FlowPhasesTotal.WithLabelValues(string(phase), string(status)).Inc()
	m.FlowPhaseDuration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
}

// ObserveFlowFinished implements flow.Observer.
func (m *Metrics) ObserveFlowFinished(status flow.FlowStatus) {
	m.FlowsFinishedTotal.WithLabelValues(string(status)).Inc()
}

// ObserveFixAttempt implements fixtree.Observer.
func (m *Metrics) ObserveFixAttempt(strategy fixtree.StrategyType, result fixtree.AttemptResult) {
	m.FixAttemptsTotal.WithLabelValues(string(strategy), string(result)).Inc()
}

// ObserveFixSession implements fixtree.Observer.
func (m *Metrics) ObserveFixSession(status fixtree.SessionStatus) {
	m.FixSessionsTotal.WithLabelValues(string(status)).Inc()
}

// ObserveAssessment records one risk assessment outcome.
func (m *Metrics) ObserveAssessment(d risk.Detection) {
	m.AssessmentsTotal.WithLabelValues(string(d.Status)).Inc()
	m.RiskScore.Observe(d.RiskScore)
}
