package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for a coordinator process
type Registry struct {
	// Consensus driver
	ConsensusTicksTotal            prometheus.Counter
	ConsensusReadyTotal            prometheus.Counter
	ConsensusReadyDuration         prometheus.Histogram
	ConsensusEntriesPersistedTotal prometheus.Counter
	ConsensusHardStateUpdatesTotal prometheus.Counter
	ConsensusSnapshotsAppliedTotal prometheus.Counter
	ConsensusStepErrorsTotal       *prometheus.CounterVec
	ConsensusCommittedEntriesTotal prometheus.Counter
	ConsensusProposalsTotal        *prometheus.CounterVec
	ConsensusTerm                  prometheus.Gauge
	ConsensusCommitIndex           prometheus.Gauge
	ConsensusAppliedIndex          prometheus.Gauge
	ConsensusRole                  *prometheus.GaugeVec
	ConsensusLeaderChangesTotal    prometheus.Counter

	// Message transport and RPC
	MessagesSentTotal     *prometheus.CounterVec
	MessagesReceivedTotal *prometheus.CounterVec
	MessagesDroppedTotal  *prometheus.CounterVec
	DispatchDuration      prometheus.Histogram
	RPCRequestsTotal      *prometheus.CounterVec
	RPCRequestDuration    *prometheus.HistogramVec

	// Peer registry and bootstrap
	ClusterPeersKnown         prometheus.Gauge
	ClusterAnnouncementsTotal prometheus.Counter
	BootstrapProbesTotal      *prometheus.CounterVec
	BootstrapDuration         prometheus.Histogram

	// Ops HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry  *prometheus.Registry
	startTime time.Time
	mu        sync.Mutex
	role      string
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
// Each coordinator in a process gets its own registry so tests can run
// several nodes side by side.
func NewRegistry() *Registry {
	r := &Registry{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	r.initConsensusMetrics()
	r.initTransportMetrics()
	r.initClusterMetrics()
	r.initHTTPMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
