package cluster

import (
	"time"
)

func (pr *PeerRegistry) check(info NodeInfo) error {
	if info.Rank == pr.local.Rank {
		return ErrLocalRank
	}
	if info.Address == "" {
		return ErrEmptyAddress
	}
	return nil
}

// Upsert registers info, replacing any address already known for its rank
func (pr *PeerRegistry) Upsert(info NodeInfo) error {
	if err := pr.check(info); err != nil {
		return err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.insertLocked(info, time.Now())
	return nil
}

// AddIfAbsent registers info only when its rank is unknown. It reports
// whether the registry changed.
func (pr *PeerRegistry) AddIfAbsent(info NodeInfo) (bool, error) {
	if err := pr.check(info); err != nil {
		return false, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()
	if _, exists := pr.peers[info.Rank]; exists {
		return false, nil
	}
	pr.insertLocked(info, time.Now())
	return true, nil
}
