// Package metrics provides Prometheus-based metrics recording for interview
// operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/interviewpipe/interviewpipe/internal/models"
)

// Collector records orchestrator events. The orchestrator calls it on every
// turn; implementations must be safe for concurrent use.
type Collector interface {
	// RecordTurn records one completed turn with its outcome status
	// ("ok", "fallback", "gateway_error", "store_error").
	RecordTurn(stage models.Stage, status string, duration time.Duration)
	// RecordGatewayError records a classified gateway failure.
	RecordGatewayError(kind models.ErrorType)
	// RecordStageTransition records a committed stage advance.
	RecordStageTransition(from, to models.Stage)
	// RecordArchive records a session reaching a terminal archive state.
	RecordArchive(reason models.CompletionReason)
}

// PrometheusCollector implements Collector using Prometheus metrics.
type PrometheusCollector struct {
	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	gatewayErrors    *prometheus.CounterVec
	stageTransitions *prometheus.CounterVec
	archivesTotal    *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector registered on the default
// Prometheus registry.
func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		turnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_turns_total",
				Help: "Total number of interview turns by stage and outcome status",
			},
			[]string{"stage", "status"},
		),
		turnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "interview_turn_duration_seconds",
				Help:    "Duration of interview turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		gatewayErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_gateway_errors_total",
				Help: "Total number of LLM gateway failures by error type",
			},
			[]string{"error_type"},
		),
		stageTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_stage_transitions_total",
				Help: "Total number of committed stage transitions",
			},
			[]string{"from", "to"},
		),
		archivesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_archives_total",
				Help: "Total number of sessions archived by completion reason",
			},
			[]string{"reason"},
		),
	}
}

func (c *PrometheusCollector) RecordTurn(stage models.Stage, status string, duration time.Duration) {
	c.turnsTotal.WithLabelValues(string(stage), status).Inc()
	c.turnDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordGatewayError(kind models.ErrorType) {
	c.gatewayErrors.WithLabelValues(kind.String()).Inc()
}

func (c *PrometheusCollector) RecordStageTransition(from, to models.Stage) {
	c.stageTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (c *PrometheusCollector) RecordArchive(reason models.CompletionReason) {
	c.archivesTotal.WithLabelValues(string(reason)).Inc()
}

// NopCollector discards all events. Used in tests and when metrics are
// disabled.
type NopCollector struct{}

func (NopCollector) RecordTurn(models.Stage, string, time.Duration)  {}
func (NopCollector) RecordGatewayError(models.ErrorType)            {}
func (NopCollector) RecordStageTransition(from, to models.Stage)    {}
func (NopCollector) RecordArchive(models.CompletionReason)          {}
