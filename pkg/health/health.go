package health

import (
	"time"
)

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:      make(map[string]CheckFunc),
		readyChecks: make(map[string]CheckFunc),
		liveChecks:  make(map[string]CheckFunc),
		startTime:   time.Now(),
	}
}

// RegisterCheck registers a check reported by Check
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// RegisterReadinessCheck registers a readiness check
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.readyChecks[name] = check
}

// RegisterLivenessCheck registers a liveness check
func (hc *HealthChecker) RegisterLivenessCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.liveChecks[name] = check
}

// Check runs the general checks
func (hc *HealthChecker) Check() Response {
	return hc.run(func() map[string]CheckFunc { return hc.checks })
}

// CheckReadiness runs the readiness checks
func (hc *HealthChecker) CheckReadiness() Response {
	return hc.run(func() map[string]CheckFunc { return hc.readyChecks })
}

// CheckLiveness runs the liveness checks
func (hc *HealthChecker) CheckLiveness() Response {
	return hc.run(func() map[string]CheckFunc { return hc.liveChecks })
}

// run copies the selected set under the read lock and evaluates it without
// holding any lock, so a slow check never blocks registration.
func (hc *HealthChecker) run(selectSet func() map[string]CheckFunc) Response {
	hc.mu.RLock()
	set := selectSet()
	checks := make(map[string]CheckFunc, len(set))
	for name, fn := range set {
		checks[name] = fn
	}
	hc.mu.RUnlock()

	response := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check, len(checks)),
		Uptime:    time.Since(hc.startTime).Seconds(),
	}

	for name, checkFunc := range checks {
		start := time.Now()
		check := checkFunc()
		check.Duration = time.Since(start)
		check.LastChecked = start
		if check.Name == "" {
			check.Name = name
		}
		response.Checks[name] = check

		// Worst status wins
		switch check.Status {
		case StatusUnhealthy:
			response.Status = StatusUnhealthy
		case StatusDegraded:
			if response.Status != StatusUnhealthy {
				response.Status = StatusDegraded
			}
		}
	}

	return response
}
