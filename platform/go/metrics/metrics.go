package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the lifecycle engine's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "module_lifecycle",
			Name:      "transitions_total",
			Help:      "Committed operational status transitions.",
		},
		[]string{"from", "to"},
	)

	transitionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "module_lifecycle",
			Name:      "transition_rejections_total",
			Help:      "Status changes refused before or during the write.",
		},
		[]string{"reason"},
	)

	approvalDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "module_lifecycle",
			Name:      "approval_decisions_total",
			Help:      "Committed approval request decisions.",
		},
		[]string{"decision"},
	)

	collaboratorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "module_lifecycle",
			Name:      "collaborator_failures_total",
			Help:      "Failed calls to external collaborators after a commit.",
		},
		[]string{"collaborator"},
	)

	reviewLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "module_lifecycle",
			Name:      "approval_review_latency_seconds",
			Help:      "Time between an approval request and its decision.",
			Buckets:   prometheus.ExponentialBuckets(60, 4, 8), // 1m to ~11d
		},
	)
)

// Rejection reasons.
const (
	ReasonIllegalTransition = "illegal_transition"
	ReasonConflict          = "conflict"
	ReasonPolicy            = "policy"
	ReasonRetryLimit        = "retry_limit"
)

// Collaborators.
const (
	CollaboratorProvisioner = "provisioner"
	CollaboratorNotifier    = "notifier"
	CollaboratorDirectory   = "user_directory"
)

func init() {
	Registry.MustRegister(
		transitions,
		transitionRejections,
		approvalDecisions,
		collaboratorFailures,
		reviewLatency,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransition counts a committed transition. An empty from marks creation.
func RecordTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	transitions.WithLabelValues(from, to).Inc()
}

func RecordRejection(reason string) {
	transitionRejections.WithLabelValues(reason).Inc()
}

// RecordDecision counts a decision and, for reviewed requests, observes how
// long the request waited.
func RecordDecision(decision string, waited time.Duration) {
	approvalDecisions.WithLabelValues(decision).Inc()
	if waited > 0 && decision != "cancelled" {
		reviewLatency.Observe(waited.Seconds())
	}
}

func RecordCollaboratorFailure(collaborator string) {
	collaboratorFailures.WithLabelValues(collaborator).Inc()
}
