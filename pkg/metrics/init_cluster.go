package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initClusterMetrics() {
	r.ClusterPeersKnown = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_cluster_peers_known",
			Help: "Peers in the registry, excluding this node",
		},
	)

	r.ClusterAnnouncementsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_cluster_announcements_total",
			Help: "Peer announcements received",
		},
	)

	r.BootstrapProbesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_bootstrap_probes_total",
			Help: "Addresses probed during bootstrap",
		},
		[]string{"result"}, // ok, failed
	)

	r.BootstrapDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coordinator_bootstrap_duration_seconds",
			Help:    "Time to build the initial peer registry",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
	)
}
