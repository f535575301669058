package consensus

import "go.etcd.io/raft/v3"

// Participant ids inside raft are ranks shifted by one because raft
// reserves id 0 (raft.None) for "no node".

// IDFromRank returns the raft participant id for rank
func IDFromRank(rank uint64) uint64 {
	return rank + 1
}

// RankFromID returns the rank for a raft participant id. It reports false
// for raft.None.
func RankFromID(id uint64) (uint64, bool) {
	if id == raft.None {
		return 0, false
	}
	return id - 1, true
}
