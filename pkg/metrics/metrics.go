// Package metrics holds the Prometheus collectors for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for socflow.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	CapabilityCallsTotal *prometheus.CounterVec
	TokensTotal          *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socflow_runs_total",
			Help: "Total number of pipeline runs by final status",
		}, []string{"pipeline", "status"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socflow_stage_duration_seconds",
			Help:    "Time spent completing a pipeline stage",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"pipeline", "stage"}),
		CapabilityCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socflow_capability_calls_total",
			Help: "Total number of capability invocations by outcome",
		}, []string{"capability", "outcome"}),
		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socflow_tokens_total",
			Help: "Tokens consumed by completions",
		}, []string{"provider", "kind"}),
	}
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(pipeline, status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(pipeline, status).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(pipeline, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(pipeline, stage).Observe(d.Seconds())
}

// ObserveCapabilityCall counts a capability invocation. Outcome is one of
// "ok", "error" or "denied".
func (m *Metrics) ObserveCapabilityCall(capability, outcome string) {
	if m == nil {
		return
	}
	m.CapabilityCallsTotal.WithLabelValues(capability, outcome).Inc()
}

// ObserveTokens adds prompt and completion token counts.
func (m *Metrics) ObserveTokens(provider string, prompt, completion int) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues(provider, "prompt").Add(float64(prompt))
	m.TokensTotal.WithLabelValues(provider, "completion").Add(float64(completion))
}
