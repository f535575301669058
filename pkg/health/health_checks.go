package health

import (
	"time"
)

// TickCheck reports unhealthy when the tick loop has not completed a tick
// within maxAge. A zero time means the loop has not started.
func TickCheck(lastTick func() time.Time, maxAge time.Duration) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "tick_loop",
			Details: make(map[string]any),
		}

		last := lastTick()
		if last.IsZero() {
			check.Status = StatusUnhealthy
			check.Message = "Tick loop not started"
			return check
		}

		age := time.Since(last)
		check.Details["last_tick"] = last
		check.Details["age_ms"] = age.Milliseconds()
		check.Details["max_age_ms"] = maxAge.Milliseconds()

		if age > maxAge {
			check.Status = StatusUnhealthy
			check.Message = "Tick loop stalled"
		} else {
			check.Status = StatusHealthy
			check.Message = "Ticking"
		}
		return check
	}
}

// LeaderCheck reports unhealthy while no leader is known
func LeaderCheck(getLeader func() (rank uint64, known bool, term uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "leader",
			Details: make(map[string]any),
		}

		rank, known, term := getLeader()
		check.Details["term"] = term

		if !known {
			check.Status = StatusUnhealthy
			check.Message = "No leader known"
			return check
		}
		check.Details["leader_rank"] = rank
		check.Status = StatusHealthy
		check.Message = "Leader known"
		return check
	}
}

// PeersCheck reports unhealthy until the registry holds every expected peer
func PeersCheck(getPeers func() (known, expected int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "peers",
			Details: make(map[string]any),
		}

		known, expected := getPeers()
		check.Details["known_peers"] = known
		check.Details["expected_peers"] = expected

		if known < expected {
			check.Status = StatusUnhealthy
			check.Message = "Peer registry incomplete"
		} else {
			check.Status = StatusHealthy
			check.Message = "All peers registered"
		}
		return check
	}
}

// ShutdownCheck reports unhealthy once the process has begun shutting down
func ShutdownCheck(shuttingDown func() bool) CheckFunc {
	return func() Check {
		if shuttingDown() {
			return Check{Name: "shutdown", Status: StatusUnhealthy, Message: "Shutting down"}
		}
		return Check{Name: "shutdown", Status: StatusHealthy, Message: "Serving"}
	}
}

// MemoryCheck reports degraded when allocated memory exceeds 90% of what
// the runtime obtained from the OS
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()
		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		if sys > 0 && float64(alloc)/float64(sys)*100 > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}
		return check
	}
}
