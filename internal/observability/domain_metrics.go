package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	agentResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nestquery_agent_responses_total",
			Help: "Total number of assembled agent responses by type and error kind.",
		},
		[]string{"type", "error_kind"},
	)
	agentStageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nestquery_agent_stage_duration_seconds",
			Help:    "Latency of each pipeline stage.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	agentResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nestquery_agent_result_rows",
			Help:    "Number of rows returned by executed search queries.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 500},
		},
	)
	sqlRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nestquery_sql_rejections_total",
			Help: "Total number of generated SQL statements rejected before execution.",
		},
		[]string{"reason"},
	)
	completionCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nestquery_completion_calls_total",
			Help: "Total number of completion model calls by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nestquery_active_sessions",
			Help: "Number of chat sessions currently held in preference memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		agentResponsesTotal,
		agentStageSeconds,
		agentResultRows,
		sqlRejectionsTotal,
		completionCallsTotal,
		activeSessions,
	)
}

func ObserveAgentResponse(responseType, errorKind string) {
	agentResponsesTotal.WithLabelValues(responseType, errorKind).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	agentStageSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func ObserveResultRows(rows int) {
	if rows < 0 {
		rows = 0
	}
	agentResultRows.Observe(float64(rows))
}

func IncrementSQLRejection(reason string) {
	sqlRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveCompletionCall(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	completionCallsTotal.WithLabelValues(provider, outcome).Inc()
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
