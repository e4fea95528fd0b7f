package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlowsStarted counts flow instances by flow name and role
	FlowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_flows_started_total",
			Help: "Total number of flow instances started",
		},
		[]string{"flow", "role"},
	)

	// FlowsCompleted counts finished flow instances by outcome
	// (finalized or the failure reason)
	FlowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_flows_completed_total",
			Help: "Total number of flow instances completed by outcome",
		},
		[]string{"flow", "outcome"},
	)

	// FlowDuration tracks flow run time
	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trader_flow_duration_seconds",
			Help:    "Flow run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"flow"},
	)

	// FlowsInFlight tracks flow instances currently running
	FlowsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_flows_in_flight",
			Help: "Number of flow instances currently running",
		},
		[]string{"flow"},
	)

	// StateTransitions counts state machine transitions
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_flow_state_transitions_total",
			Help: "Total number of flow state machine transitions",
		},
		[]string{"machine", "state"},
	)

	// NotaryCommits counts notarisation attempts by outcome
	NotaryCommits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_notary_commits_total",
			Help: "Total number of notarisation requests by outcome",
		},
		[]string{"outcome"},
	)

	// AttachmentImports counts attachment imports by backend and result
	AttachmentImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_attachment_imports_total",
			Help: "Total number of attachment imports",
		},
		[]string{"backend", "result"},
	)

	// MessagesTotal counts p2p envelopes by direction and kind
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_p2p_messages_total",
			Help: "Total number of p2p flow messages",
		},
		[]string{"direction", "kind"},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
