package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initConsensusMetrics() {
	r.ConsensusTicksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_consensus_ticks_total",
			Help: "Logical clock ticks delivered to the raft node",
		},
	)

	r.ConsensusReadyTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_consensus_ready_total",
			Help: "Ticks that produced ready effects",
		},
	)

	r.ConsensusReadyDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coordinator_consensus_ready_duration_seconds",
			Help:    "Time spent persisting and advancing one ready batch",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	r.ConsensusEntriesPersistedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_consensus_entries_persisted_total",
			Help: "Log entries appended to storage",
		},
	)

	r.ConsensusHardStateUpdatesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_consensus_hard_state_updates_total",
			Help: "Hard state writes to storage",
		},
	)

	r.ConsensusSnapshotsAppliedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_consensus_snapshots_applied_total",
			Help: "Snapshots installed into storage",
		},
	)

	r.ConsensusStepErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_consensus_step_errors_total",
			Help: "Inbound messages rejected by the raft node",
		},
		[]string{"msg_type"},
	)

	r.ConsensusCommittedEntriesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_consensus_committed_entries_total",
			Help: "Committed entries handed to the application",
		},
	)

	r.ConsensusProposalsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_consensus_proposals_total",
			Help: "Local proposals by result",
		},
		[]string{"result"}, // accepted, dropped
	)

	r.ConsensusTerm = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_consensus_term",
			Help: "Current raft term",
		},
	)

	r.ConsensusCommitIndex = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_consensus_commit_index",
			Help: "Highest log index known to be committed",
		},
	)

	r.ConsensusAppliedIndex = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_consensus_applied_index",
			Help: "Highest log index handed to the application",
		},
	)

	r.ConsensusRole = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coordinator_consensus_role",
			Help: "Current raft role (1 for the active role)",
		},
		[]string{"role"},
	)

	r.ConsensusLeaderChangesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_consensus_leader_changes_total",
			Help: "Observed changes of the known leader",
		},
	)
}
