package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/health"
	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"github.com/dd0wney/cluso-coordinator/pkg/metrics"
)

// StatusFunc returns the value served as JSON on /status
type StatusFunc func() any

// NewOpsHandler builds the operations mux: /metrics, /health,
// /health/live, /health/ready and /status.
func NewOpsHandler(reg *metrics.Registry, hc *health.HealthChecker, status StatusFunc, logger logging.Logger) http.Handler {
	logger = logging.OrDefault(logger).Named("ops-http")

	mux := http.NewServeMux()
	metricsHandler := reg.Handler()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		reg.UpdateSystemMetrics()
		metricsHandler.ServeHTTP(w, r)
	})
	mux.Handle("GET /health", hc.HTTPHandler())
	mux.Handle("GET /health/live", hc.LivenessHandler())
	mux.Handle("GET /health/ready", hc.ReadinessHandler())
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status()); err != nil {
			logger.Warn("failed to encode status", logging.Error(err))
		}
	})

	return recoverPanics(instrument(mux, reg), logger)
}

// recoverPanics turns a handler panic into a 500
func recoverPanics(next http.Handler, logger logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic in ops handler",
					logging.String("method", r.Method),
					logging.String("path", r.URL.Path),
					logging.Any("panic", fmt.Sprint(err)),
					logging.String("stack", string(debug.Stack())))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency
func instrument(next http.Handler, reg *metrics.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		// Unrouted paths share one label value
		path := "unmatched"
		if r.Pattern != "" {
			path = r.URL.Path
		}
		reg.RecordHTTPRequest(r.Method, path, strconv.Itoa(wrapper.statusCode), time.Since(start))
	})
}

// statusResponseWriter captures the status code
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
