package consensus

import (
	"go.etcd.io/raft/v3"
)

// Role is the raft role of a participant
type Role string

const (
	RoleFollower     Role = "follower"
	RolePreCandidate Role = "pre_candidate"
	RoleCandidate    Role = "candidate"
	RoleLeader       Role = "leader"
)

func roleOf(state raft.StateType) Role {
	switch state {
	case raft.StateLeader:
		return RoleLeader
	case raft.StateCandidate:
		return RoleCandidate
	case raft.StatePreCandidate:
		return RolePreCandidate
	default:
		return RoleFollower
	}
}

// Status is a point-in-time view of the driver
type Status struct {
	ID      uint64 `json:"id"`
	Rank    uint64 `json:"rank"`
	Role    Role   `json:"role"`
	Term    uint64 `json:"term"`
	Vote    uint64 `json:"vote"`
	Commit  uint64 `json:"commit"`
	Applied uint64 `json:"applied"`
	// Leader is the leader's participant id, raft.None when unknown
	Leader uint64 `json:"leader"`
}

// LeaderRank returns the leader's rank when a leader is known
func (s Status) LeaderRank() (uint64, bool) {
	return RankFromID(s.Leader)
}
