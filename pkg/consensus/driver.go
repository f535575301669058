package consensus

import (
	"fmt"

	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

// Driver owns one raft participant and its storage and exposes the
// tick / ready / persist / advance cycle.
//
// A Driver is not safe for concurrent use. The caller holds one lock across
// a whole cycle and across Step, Propose and Status.
type Driver struct {
	id      uint64
	rank    uint64
	node    *raft.RawNode
	storage Storage
	applied uint64
	logger  logging.Logger
}

// New creates a driver for cfg.Rank and writes the initial membership:
// one voter for every rank below cfg.WorldSize.
func New(cfg Config) (*Driver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.OrDefault(cfg.Logger).Named("consensus")
	storage := cfg.Storage
	if storage == nil {
		storage = NewMemoryStorage()
	}

	id := IDFromRank(cfg.Rank)
	node, err := raft.NewRawNode(&raft.Config{
		ID:              id,
		ElectionTick:    cfg.ElectionTick,
		HeartbeatTick:   cfg.HeartbeatTick,
		Storage:         storage,
		MaxSizePerMsg:   cfg.MaxSizePerMsg,
		MaxInflightMsgs: cfg.MaxInflightMsgs,
		CheckQuorum:     cfg.CheckQuorum,
		PreVote:         cfg.PreVote,
		Logger:          NewRaftLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	peers := make([]raft.Peer, cfg.WorldSize)
	for rank := range peers {
		peers[rank] = raft.Peer{ID: IDFromRank(uint64(rank))}
	}
	if err := node.Bootstrap(peers); err != nil {
		return nil, fmt.Errorf("%w: bootstrap membership: %w", ErrInvalidConfig, err)
	}

	logger.Info("raft node created",
		logging.Rank(cfg.Rank),
		logging.Uint64("id", id),
		logging.Uint64("world_size", cfg.WorldSize))

	return &Driver{
		id:      id,
		rank:    cfg.Rank,
		node:    node,
		storage: storage,
		logger:  logger,
	}, nil
}

// ID returns the raft participant id
func (d *Driver) ID() uint64 {
	return d.id
}

// Rank returns the participant's rank
func (d *Driver) Rank() uint64 {
	return d.rank
}

// Tick advances the logical clock by one unit
func (d *Driver) Tick() {
	d.node.Tick()
}

// HasReady reports whether there are effects to process
func (d *Driver) HasReady() bool {
	return d.node.HasReady()
}

// ReadReady returns the pending effects. Call only when HasReady is true
// and hand the result to Persist and then Advance before anything else.
func (d *Driver) ReadReady() *ReadyEffects {
	return splitReady(d.node.Ready())
}

// Persist writes the snapshot, then the entries, then the hard state.
// On error the effects must not be advanced.
func (d *Driver) Persist(effects *ReadyEffects) error {
	if effects.Snapshot != nil {
		if err := d.storage.ApplySnapshot(*effects.Snapshot); err != nil {
			return fmt.Errorf("%w: apply snapshot at %d: %w", ErrPersist, effects.Snapshot.Metadata.Index, err)
		}
	}
	if len(effects.Entries) > 0 {
		if err := d.storage.Append(effects.Entries); err != nil {
			return fmt.Errorf("%w: append %d entries: %w", ErrPersist, len(effects.Entries), err)
		}
	}
	if effects.HardState != nil {
		if err := d.storage.SetHardState(*effects.HardState); err != nil {
			return fmt.Errorf("%w: set hard state: %w", ErrPersist, err)
		}
	}
	return nil
}

// Advance tells the node the effects are durable and returns the entries
// that became committed.
func (d *Driver) Advance(effects *ReadyEffects) LightReady {
	d.node.Advance(effects.rd)
	return LightReady{CommittedEntries: effects.rd.CommittedEntries}
}

// AdvanceApply records light as applied. Committed configuration entries
// are applied to the node. Membership is fixed, so these are the bootstrap
// entries and change nothing.
func (d *Driver) AdvanceApply(light LightReady) error {
	for _, entry := range light.CommittedEntries {
		switch entry.Type {
		case raftpb.EntryConfChange:
			var cc raftpb.ConfChange
			if err := cc.Unmarshal(entry.Data); err != nil {
				return fmt.Errorf("decode conf change at %d: %w", entry.Index, err)
			}
			d.node.ApplyConfChange(cc)
		case raftpb.EntryConfChangeV2:
			var cc raftpb.ConfChangeV2
			if err := cc.Unmarshal(entry.Data); err != nil {
				return fmt.Errorf("decode conf change at %d: %w", entry.Index, err)
			}
			d.node.ApplyConfChange(cc)
		}
	}
	if idx := light.CommitIndex(); idx > d.applied {
		d.applied = idx
	}
	return nil
}

// Step feeds one inbound message into the node. Rejections are returned as
// *StepError and leave the node unchanged.
//
// A heartbeat whose commit index lies past the local log is refused before
// it reaches raft, which would otherwise panic. This happens when a peer
// lost its log and the leader still holds the old match index for it.
func (d *Driver) Step(msg raftpb.Message) (err error) {
	if msg.To != d.id {
		return &StepError{Type: msg.Type, From: msg.From, To: msg.To, Err: ErrMisrouted}
	}
	if msg.Type == raftpb.MsgHeartbeat {
		last, lerr := d.storage.LastIndex()
		if lerr != nil {
			return &StepError{Type: msg.Type, From: msg.From, To: msg.To, Err: lerr}
		}
		// Bootstrap entries are committed before the first ready persists them
		last = max(last, d.node.BasicStatus().Commit)
		if msg.Commit > last {
			return &StepError{Type: msg.Type, From: msg.From, To: msg.To,
				Err: fmt.Errorf("%w: commit %d, last index %d", ErrCommitAhead, msg.Commit, last)}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("raft panic while stepping",
				logging.MessageType(msg.Type.String()),
				logging.Uint64("from", msg.From),
				logging.String("panic", fmt.Sprint(r)))
			err = &StepError{Type: msg.Type, From: msg.From, To: msg.To,
				Err: fmt.Errorf("%w: %v", ErrStepPanic, r)}
		}
	}()
	if serr := d.node.Step(msg); serr != nil {
		return &StepError{Type: msg.Type, From: msg.From, To: msg.To, Err: serr}
	}
	return nil
}

// Propose appends data to the replicated log through the leader.
// raft.ErrProposalDropped is returned when no leader is known.
func (d *Driver) Propose(data []byte) error {
	return d.node.Propose(data)
}

// ReportUnreachable tells the node the last message to id was not delivered
func (d *Driver) ReportUnreachable(id uint64) {
	d.node.ReportUnreachable(id)
}

// Status returns the node's current term, vote, commit, role and leader
func (d *Driver) Status() Status {
	st := d.node.BasicStatus()
	return Status{
		ID:      d.id,
		Rank:    d.rank,
		Role:    roleOf(st.RaftState),
		Term:    st.Term,
		Vote:    st.Vote,
		Commit:  st.Commit,
		Applied: d.applied,
		Leader:  st.Lead,
	}
}
