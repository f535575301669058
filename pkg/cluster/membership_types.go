package cluster

import (
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/metrics"
)

// NodeInfo identifies a cluster participant by its 0-based rank and the
// address its RPC server is reachable at. A later announcement for the same
// rank replaces the earlier one.
type NodeInfo struct {
	Rank    uint64 `json:"rank"`
	Address string `json:"address"`
}

func (n NodeInfo) String() string {
	return fmt.Sprintf("rank %d (%s)", n.Rank, n.Address)
}

// PeerStatus is a registry entry as reported by Snapshot
type PeerStatus struct {
	NodeInfo
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

type peerEntry struct {
	info      NodeInfo
	firstSeen time.Time
	lastSeen  time.Time
}

// PeerRegistry maps remote ranks to their addresses.
//
// Concurrent Safety:
// 1. All public methods take the RWMutex; reads use RLock
// 2. Query methods return copies, never the internal entries
// 3. The local rank is never stored; LocalNode is built from the fields set at construction
// 4. Entries are only added or overwritten, never removed
type PeerRegistry struct {
	peers           map[uint64]*peerEntry
	local           NodeInfo
	mu              sync.RWMutex
	metricsRegistry *metrics.Registry
}
