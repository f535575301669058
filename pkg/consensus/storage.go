package consensus

import (
	"go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

// Storage is the log store the driver reads through raft.Storage and writes
// while processing ready effects. *raft.MemoryStorage implements it.
type Storage interface {
	raft.Storage
	Append(entries []raftpb.Entry) error
	ApplySnapshot(snap raftpb.Snapshot) error
	SetHardState(st raftpb.HardState) error
}

var _ Storage = (*raft.MemoryStorage)(nil)

// NewMemoryStorage returns the volatile storage used by default
func NewMemoryStorage() Storage {
	return raft.NewMemoryStorage()
}
