package coordinator

import (
	"runtime"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/health"
)

// minStallAge is the shortest tick age liveness tolerates
const minStallAge = time.Second

// RegisterHealthChecks adds the coordinator's checks to hc. Liveness fails
// when the tick loop stops advancing. Readiness needs a known leader and a
// registry holding every other rank.
func (c *Coordinator) RegisterHealthChecks(hc *health.HealthChecker) {
	maxAge := 10 * c.config.TickInterval
	if maxAge < minStallAge {
		maxAge = minStallAge
	}

	hc.RegisterLivenessCheck("tick_loop", health.TickCheck(c.LastTick, maxAge))

	hc.RegisterReadinessCheck("leader", health.LeaderCheck(func() (uint64, bool, uint64) {
		st := c.Status()
		rank, ok := st.Status.LeaderRank()
		return rank, ok, st.Term
	}))
	hc.RegisterReadinessCheck("peers", health.PeersCheck(func() (int, int) {
		return c.registry.Len(), int(c.config.WorldSize) - 1
	}))

	hc.RegisterCheck("tick_loop", health.TickCheck(c.LastTick, maxAge))
	hc.RegisterCheck("memory", health.MemoryCheck(func() (uint64, uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))
}
