package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Roles reported by SetRole
var roles = []string{"follower", "pre_candidate", "candidate", "leader"}

// ReadyStats summarizes what one ready batch persisted
type ReadyStats struct {
	Entries   int
	HardState bool
	Snapshot  bool
	Duration  time.Duration
}

// RecordTick counts one logical clock tick
func (r *Registry) RecordTick() {
	r.ConsensusTicksTotal.Inc()
}

// RecordReady records one processed ready batch
func (r *Registry) RecordReady(s ReadyStats) {
	r.ConsensusReadyTotal.Inc()
	r.ConsensusReadyDuration.Observe(s.Duration.Seconds())
	r.ConsensusEntriesPersistedTotal.Add(float64(s.Entries))
	if s.HardState {
		r.ConsensusHardStateUpdatesTotal.Inc()
	}
	if s.Snapshot {
		r.ConsensusSnapshotsAppliedTotal.Inc()
	}
}

// UpdateConsensusState sets the term, commit and applied gauges
func (r *Registry) UpdateConsensusState(term, commit, applied uint64) {
	r.ConsensusTerm.Set(float64(term))
	r.ConsensusCommitIndex.Set(float64(commit))
	r.ConsensusAppliedIndex.Set(float64(applied))
}

// SetRole marks role as the active raft role. Leader changes are counted
// separately through RecordLeaderChange.
func (r *Registry) SetRole(role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.role == role {
		return
	}
	for _, known := range roles {
		r.ConsensusRole.WithLabelValues(known).Set(0)
	}
	r.ConsensusRole.WithLabelValues(role).Set(1)
	r.role = role
}

func (r *Registry) RecordLeaderChange() {
	r.ConsensusLeaderChangesTotal.Inc()
}

func (r *Registry) RecordStepError(msgType string) {
	r.ConsensusStepErrorsTotal.WithLabelValues(msgType).Inc()
}

func (r *Registry) RecordCommitted(n int) {
	r.ConsensusCommittedEntriesTotal.Add(float64(n))
}

// RecordProposal counts a local proposal as accepted or dropped
func (r *Registry) RecordProposal(accepted bool) {
	if accepted {
		r.ConsensusProposalsTotal.WithLabelValues("accepted").Inc()
		return
	}
	r.ConsensusProposalsTotal.WithLabelValues("dropped").Inc()
}

func (r *Registry) RecordMessageSent(msgType string) {
	r.MessagesSentTotal.WithLabelValues(msgType).Inc()
}

func (r *Registry) RecordMessageReceived(msgType string) {
	r.MessagesReceivedTotal.WithLabelValues(msgType).Inc()
}

func (r *Registry) RecordMessageDropped(reason string) {
	r.MessagesDroppedTotal.WithLabelValues(reason).Inc()
}

func (r *Registry) RecordDispatch(duration time.Duration) {
	r.DispatchDuration.Observe(duration.Seconds())
}

// RecordRPC records one inbound RPC request with its status code
func (r *Registry) RecordRPC(method, code string, duration time.Duration) {
	r.RPCRequestsTotal.WithLabelValues(method, code).Inc()
	r.RPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (r *Registry) SetPeersKnown(n int) {
	r.ClusterPeersKnown.Set(float64(n))
}

func (r *Registry) RecordAnnouncement() {
	r.ClusterAnnouncementsTotal.Inc()
}

// RecordBootstrapProbe counts one bootstrap probe by result (ok, failed)
func (r *Registry) RecordBootstrapProbe(result string) {
	r.BootstrapProbesTotal.WithLabelValues(result).Inc()
}

func (r *Registry) RecordBootstrap(duration time.Duration) {
	r.BootstrapDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records an ops HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateSystemMetrics refreshes uptime, goroutine and memory gauges
func (r *Registry) UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	r.UptimeSeconds.Set(time.Since(r.startTime).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}

// Handler serves this registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
