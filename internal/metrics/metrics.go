// Package metrics records engine activity as Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"taskflow/internal/model"
)

// Recorder receives engine events.
type Recorder interface {
	StatusTransition(from, to model.Status)
	StepAction(action string, outcome string)
	Notification(result string)
}

// Notification results.
const (
	NotificationSent     = "sent"
	NotificationFailed   = "failed"
	NotificationRejected = "rejected"
)

// Noop discards every event.
var Noop Recorder = noop{}

type noop struct{}

func (noop) StatusTransition(model.Status, model.Status) {}
func (noop) StepAction(string, string)                   {}
func (noop) Notification(string)                         {}

// PrometheusRecorder implements Recorder with counters.
type PrometheusRecorder struct {
	transitions   *prometheus.CounterVec
	stepActions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewPrometheusRecorder registers the counters on reg, prometheus.DefaultRegisterer when nil.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &PrometheusRecorder{
		transitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Name:      "status_transitions_total",
				Help:      "Task status transitions by source and target status.",
			},
			[]string{"from", "to"},
		),
		stepActions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Name:      "workflow_step_actions_total",
				Help:      "Workflow step actions by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		notifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Name:      "notifications_total",
				Help:      "Notification dispatch attempts by result.",
			},
			[]string{"result"},
		),
	}
}

func (r *PrometheusRecorder) StatusTransition(from, to model.Status) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (r *PrometheusRecorder) StepAction(action, outcome string) {
	r.stepActions.WithLabelValues(action, outcome).Inc()
}

func (r *PrometheusRecorder) Notification(result string) {
	r.notifications.WithLabelValues(result).Inc()
}
