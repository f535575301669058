package consensus

import (
	"go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

// ReadyEffects is the work one tick produced. It is only valid until it is
// passed to Advance.
//
// Messages may leave as soon as the effects are read. PersistedMessages
// acknowledge or depend on the entries and hard state of this batch and
// must wait until Persist returns. The coordinator sends both after Persist.
type ReadyEffects struct {
	Messages          []raftpb.Message
	Snapshot          *raftpb.Snapshot
	Entries           []raftpb.Entry
	HardState         *raftpb.HardState
	PersistedMessages []raftpb.Message

	// SoftState is set when the leader or role changed
	SoftState *raft.SoftState

	rd raft.Ready
}

// OutboundCount returns the number of messages in both batches
func (e *ReadyEffects) OutboundCount() int {
	return len(e.Messages) + len(e.PersistedMessages)
}

// LightReady is what remains after persistence is acknowledged: committed
// entries ready for the application.
type LightReady struct {
	CommittedEntries []raftpb.Entry
}

// CommitIndex returns the index of the last committed entry, or 0
func (l LightReady) CommitIndex() uint64 {
	if len(l.CommittedEntries) == 0 {
		return 0
	}
	return l.CommittedEntries[len(l.CommittedEntries)-1].Index
}

// leaderReplication holds the message types a leader emits to replicate its
// log. They carry nothing that this node must have persisted first.
var leaderReplication = map[raftpb.MessageType]bool{
	raftpb.MsgApp:        true,
	raftpb.MsgHeartbeat:  true,
	raftpb.MsgSnap:       true,
	raftpb.MsgTimeoutNow: true,
}

func splitReady(rd raft.Ready) *ReadyEffects {
	effects := &ReadyEffects{
		Entries:   rd.Entries,
		SoftState: rd.SoftState,
		rd:        rd,
	}
	if !raft.IsEmptySnap(rd.Snapshot) {
		snap := rd.Snapshot
		effects.Snapshot = &snap
	}
	if !raft.IsEmptyHardState(rd.HardState) {
		hs := rd.HardState
		effects.HardState = &hs
	}
	for _, m := range rd.Messages {
		if leaderReplication[m.Type] {
			effects.Messages = append(effects.Messages, m)
		} else {
			effects.PersistedMessages = append(effects.PersistedMessages, m)
		}
	}
	return effects
}
