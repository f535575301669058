package health

import (
	"encoding/json"
	"net/http"
)

// HTTPHandler serves the general checks. Degraded still answers 200.
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, hc.Check(), false)
	}
}

// ReadinessHandler serves the readiness checks. Anything but healthy is 503.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, hc.CheckReadiness(), true)
	}
}

// LivenessHandler serves the liveness checks. Anything but healthy is 503.
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, hc.CheckLiveness(), true)
	}
}

func writeResponse(w http.ResponseWriter, response Response, strict bool) {
	code := http.StatusOK
	switch {
	case response.Status == StatusUnhealthy:
		code = http.StatusServiceUnavailable
	case strict && response.Status != StatusHealthy:
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
