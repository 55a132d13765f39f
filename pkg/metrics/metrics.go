package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AssessmentsTotal counts completed risk assessments by outcome
// (clean, warned, blocked).
var AssessmentsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "riskflow_assessments_total",
		Help: "Total number of completed trade risk assessments",
	},
	[]string{"outcome"},
)

// CheckResults counts individual risk check outcomes by check and status
var CheckResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "riskflow_check_results_total",
		Help: "Risk check results by check name and status",
	},
	[]string{"check", "status"},
)

// AssessmentLatency records latency distribution for full assessments
var AssessmentLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "riskflow_assessment_latency_seconds",
		Help:    "Latency in seconds to run all risk checks for a trade",
		Buckets: prometheus.DefBuckets,
	},
)

// Classification and approval workflow metrics
var (
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskflow_classifications_total",
			Help: "Risk classifications by resulting level",
		},
		[]string{"level"},
	)

	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskflow_decisions_total",
			Help: "Approval decisions recorded by role and decision",
		},
		[]string{"role", "decision"},
	)

	TasksTerminal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskflow_tasks_terminal_total",
			Help: "Approval tasks reaching a terminal status",
		},
		[]string{"status"},
	)

	TasksOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskflow_tasks_open",
			Help: "Approval tasks currently pending or approved",
		},
	)
)

func init() {
	prometheus.MustRegister(AssessmentsTotal, CheckResults, AssessmentLatency)
	prometheus.MustRegister(ClassificationsTotal, DecisionsTotal, TasksTerminal, TasksOpen)
}
