// Package metrics defines the prometheus collectors the orchestrator and
// agents update for the /metrics surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PhaseTransitions counts every phase-state-machine transition.
	PhaseTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_phase_transitions_total",
		Help: "Count of research phase transitions.",
	}, []string{"phase"})

	// CriticVerdicts counts critic review outcomes.
	CriticVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_critic_verdicts_total",
		Help: "Count of critic review verdicts.",
	}, []string{"verdict"})

	// SearchCalls counts search-adapter invocations.
	SearchCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_search_calls_total",
		Help: "Count of search adapter calls.",
	}, []string{"outcome"})

	// SandboxRuns counts analysis-sandbox executions by outcome.
	SandboxRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_sandbox_runs_total",
		Help: "Count of sandbox analysis runs.",
	}, []string{"outcome"})

	// CheckpointLatency observes checkpoint save duration.
	CheckpointLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deepresearch_checkpoint_save_seconds",
		Help:    "Checkpoint save latency in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// SessionsCompleted counts terminal research runs by final phase.
	SessionsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_sessions_completed_total",
		Help: "Count of research sessions reaching a terminal phase.",
	}, []string{"terminal_phase"})
)

// Register registers the fixed collector set against a
// prometheus.Registerer once at process start.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(PhaseTransitions, CriticVerdicts, SearchCalls, SandboxRuns, CheckpointLatency, SessionsCompleted)
}
