package cluster

import (
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/metrics"
)

// NewPeerRegistry creates an empty registry for the node described by local.
// reg may be nil.
func NewPeerRegistry(local NodeInfo, reg *metrics.Registry) *PeerRegistry {
	pr := &PeerRegistry{
		peers:           make(map[uint64]*peerEntry),
		local:           local,
		metricsRegistry: reg,
	}
	pr.updateMetricsLocked()
	return pr
}

// LocalNode returns this node's own NodeInfo
func (pr *PeerRegistry) LocalNode() NodeInfo {
	return pr.local
}

func (pr *PeerRegistry) updateMetricsLocked() {
	if pr.metricsRegistry != nil {
		pr.metricsRegistry.SetPeersKnown(len(pr.peers))
	}
}

func (pr *PeerRegistry) insertLocked(info NodeInfo, now time.Time) {
	if entry, ok := pr.peers[info.Rank]; ok {
		entry.info = info
		entry.lastSeen = now
		return
	}
	pr.peers[info.Rank] = &peerEntry{info: info, firstSeen: now, lastSeen: now}
	pr.updateMetricsLocked()
}
