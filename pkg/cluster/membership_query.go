package cluster

import (
	"sort"
)

// Lookup returns the peer registered under rank
func (pr *PeerRegistry) Lookup(rank uint64) (NodeInfo, bool) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	entry, ok := pr.peers[rank]
	if !ok {
		return NodeInfo{}, false
	}
	return entry.info, true
}

// Address returns the address registered for rank
func (pr *PeerRegistry) Address(rank uint64) (string, error) {
	info, ok := pr.Lookup(rank)
	if !ok {
		return "", ErrPeerNotFound
	}
	return info.Address, nil
}

// Peers returns every registered peer ordered by rank. The local node is not included.
func (pr *PeerRegistry) Peers() []NodeInfo {
	pr.mu.RLock()
	peers := make([]NodeInfo, 0, len(pr.peers))
	for _, entry := range pr.peers {
		peers = append(peers, entry.info)
	}
	pr.mu.RUnlock()

	sort.Slice(peers, func(i, j int) bool { return peers[i].Rank < peers[j].Rank })
	return peers
}

// Members returns the registered peers followed by the local node. This is
// the list handed back to an announcing peer.
func (pr *PeerRegistry) Members() []NodeInfo {
	return append(pr.Peers(), pr.local)
}

// Snapshot returns registry entries with their timestamps, ordered by rank
func (pr *PeerRegistry) Snapshot() []PeerStatus {
	pr.mu.RLock()
	out := make([]PeerStatus, 0, len(pr.peers))
	for _, entry := range pr.peers {
		out = append(out, PeerStatus{
			NodeInfo:  entry.info,
			FirstSeen: entry.firstSeen,
			LastSeen:  entry.lastSeen,
		})
	}
	pr.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// Ranks returns the registered ranks in ascending order
func (pr *PeerRegistry) Ranks() []uint64 {
	peers := pr.Peers()
	ranks := make([]uint64, len(peers))
	for i, p := range peers {
		ranks[i] = p.Rank
	}
	return ranks
}

// Len returns the number of registered peers
func (pr *PeerRegistry) Len() int {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return len(pr.peers)
}
