package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"call-analytics-go/internal/pipeline"
	"call-analytics-go/internal/types"
)

// PipelineMetrics exposes counters/histograms for call processing. It
// satisfies the orchestrator's Observer and the store's Alerter.
type PipelineMetrics struct {
	callsTotal          *prometheus.CounterVec
	stageFailures       *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	reviewReasons       *prometheus.CounterVec
	persistenceFailures prometheus.Counter
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "call_analytics",
			Subsystem: "pipeline",
			Name:      "calls_processed_total",
			Help:      "Calls that reached persistence, by outcome",
		}, []string{"outcome"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "call_analytics",
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Failed capability calls by stage and error kind",
		}, []string{"stage", "kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "call_analytics",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Latency of each capability call",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		reviewReasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "call_analytics",
			Subsystem: "pipeline",
			Name:      "review_reasons_total",
			Help:      "Manual review reasons raised",
		}, []string{"reason"}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "call_analytics",
			Subsystem: "storage",
			Name:      "persistence_failures_total",
			Help:      "Calls that could not be persisted after retries",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.stageFailures, m.stageDuration, m.reviewReasons, m.persistenceFailures)
	return m
}

func (m *PipelineMetrics) StageFinished(stage pipeline.Stage, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(string(stage), string(types.KindOf(err))).Inc()
	}
}

func (m *PipelineMetrics) ReasonAdded(reason types.ReviewReason) {
	if m == nil {
		return
	}
	m.reviewReasons.WithLabelValues(string(reason)).Inc()
}

func (m *PipelineMetrics) CallFinished(st *types.CallState, err error) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(Outcome(st, err)).Inc()
}

// Alert counts a persistence failure escalated by the store.
func (m *PipelineMetrics) Alert(_ context.Context, _ *types.PersistenceError) {
	if m == nil {
		return
	}
	m.persistenceFailures.Inc()
}

// Outcome labels a finished call. It reads state only and never consults
// the analytics gate.
func Outcome(st *types.CallState, err error) string {
	switch {
	case err != nil:
		return "persist_failed"
	case st == nil:
		return "unknown"
	case st.Flagged():
		return "flagged"
	case st.ReviewReasons.Has(types.ReasonUnrecoverableInput):
		return "unrecoverable"
	case !st.ReviewReasons.Empty():
		return "needs_review"
	default:
		return "clean"
	}
}
