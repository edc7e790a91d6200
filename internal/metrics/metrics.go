package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protocaas_requests_total",
			Help: "Total number of dispatched requests by trust domain, type and outcome.",
		},
		[]string{"domain", "type", "outcome"},
	)

	JobTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protocaas_job_transitions_total",
			Help: "Total number of applied job status transitions.",
		},
		[]string{"from", "to"},
	)

	JobTransitionRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protocaas_job_transition_rejections_total",
			Help: "Total number of job status transitions rejected as illegal.",
		},
		[]string{"to"},
	)

	JobTransitionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "protocaas_job_transition_conflicts_total",
			Help: "Total number of job status transitions that lost a concurrent update.",
		},
	)

	PublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "protocaas_publish_failures_total",
			Help: "Total number of notifications that could not be published.",
		},
	)

	NodesPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "protocaas_nodes_pruned_total",
			Help: "Total number of stale compute resource node records pruned.",
		},
	)
)

// Collectors lists every custom protocaas collector.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		RequestsTotal,
		JobTransitionsTotal,
		JobTransitionRejectionsTotal,
		JobTransitionConflictsTotal,
		PublishFailuresTotal,
		NodesPrunedTotal,
	}
}

// Register registers all custom protocaas metrics with the default Prometheus registry.
func Register() {
	prometheus.MustRegister(Collectors()...)
}
