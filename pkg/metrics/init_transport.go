package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTransportMetrics() {
	r.MessagesSentTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_messages_sent_total",
			Help: "Consensus messages delivered to peers",
		},
		[]string{"msg_type"},
	)

	r.MessagesReceivedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_messages_received_total",
			Help: "Consensus messages received from peers",
		},
		[]string{"msg_type"},
	)

	r.MessagesDroppedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_messages_dropped_total",
			Help: "Outbound consensus messages that were not delivered",
		},
		[]string{"reason"}, // unknown_peer, encode, delivery
	)

	r.DispatchDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coordinator_dispatch_duration_seconds",
			Help:    "Time to deliver one batch of outbound messages",
			Buckets: prometheus.DefBuckets,
		},
	)

	r.RPCRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_rpc_requests_total",
			Help: "Inbound RPC requests by method and status code",
		},
		[]string{"method", "code"},
	)

	r.RPCRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coordinator_rpc_request_duration_seconds",
			Help:    "Inbound RPC handling latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"method"},
	)
}
