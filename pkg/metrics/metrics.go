/*
Copyright © 2026 Deutsche Telekom AG
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace is the Prometheus metrics namespace for the provisioner.
	Namespace = "appgw_provisioner"
)

// Registry holds every provisioner collector.
var Registry = prometheus.NewRegistry()

var (
	// PhaseTotal counts executed convergence phases by outcome.
	PhaseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "phase_total",
			Help:      "Total number of executed convergence phases by outcome",
		},
		[]string{"phase", "result"},
	)

	// PhaseDuration measures the duration of convergence phases in seconds.
	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of convergence phases in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	// ProviderCalls counts provider API calls by operation and outcome.
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of provider API calls by operation and outcome",
		},
		[]string{"operation", "result"},
	)

	// ProviderRetries counts retried transient provider read faults.
	ProviderRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "provider_retries_total",
			Help:      "Total number of retried transient provider faults",
		},
	)

	// CertificatesIssued counts newly generated certificate versions.
	CertificatesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "certificates_issued_total",
			Help:      "Total number of certificate versions generated and uploaded",
		},
	)

	// PropagationWaits counts post-grant authorization propagation waits.
	PropagationWaits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "propagation_waits_total",
			Help:      "Total number of fixed waits after new role assignments",
		},
	)

	// ListenerMutations counts gateway listener sub-steps actually applied.
	ListenerMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "listener_mutations_total",
			Help:      "Total number of gateway mutations applied by the listener reconciler",
		},
		[]string{"action"},
	)
)

func init() {
	Registry.MustRegister(
		PhaseTotal,
		PhaseDuration,
		ProviderCalls,
		ProviderRetries,
		CertificatesIssued,
		PropagationWaits,
		ListenerMutations,
	)
}

// Result constants for labeling outcomes.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Listener mutation action constants.
const (
	ActionRemoveListener = "remove_listener"
	ActionRemovePort     = "remove_port"
	ActionAddPort        = "add_port"
	ActionUpsertListener = "upsert_listener"
	ActionRepointRule    = "repoint_rule"
	ActionUpdateBackend  = "update_backend"
)
