package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/logging"
)

// DefaultShutdownTimeout bounds how long in-flight requests may drain
const DefaultShutdownTimeout = 30 * time.Second

// ConfigReloadFunc is a function that reloads configuration
type ConfigReloadFunc func() error

// GracefulServer wraps an HTTP server with graceful shutdown
type GracefulServer struct {
	server       *http.Server
	logger       logging.Logger
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	mu             sync.RWMutex
	listener       net.Listener
	configReloadFn ConfigReloadFunc
}

// NewGracefulServer creates a new graceful HTTP server
func NewGracefulServer(addr string, handler http.Handler, logger logging.Logger) *GracefulServer {
	return &GracefulServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger:     logging.OrDefault(logger).Named("ops-http"),
		shutdownCh: make(chan struct{}),
	}
}

// Listen binds the configured address. Serve uses the bound listener.
func (gs *GracefulServer) Listen() error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		return err
	}
	gs.mu.Lock()
	gs.listener = ln
	gs.mu.Unlock()
	return nil
}

// Addr returns the bound address once Listen has succeeded
func (gs *GracefulServer) Addr() string {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	if gs.listener == nil {
		return gs.server.Addr
	}
	return gs.listener.Addr().String()
}

// Run serves until ctx is done, then shuts down gracefully. It listens
// first if Listen was not called.
func (gs *GracefulServer) Run(ctx context.Context) error {
	gs.mu.RLock()
	ln := gs.listener
	gs.mu.RUnlock()
	if ln == nil {
		if err := gs.Listen(); err != nil {
			return err
		}
		gs.mu.RLock()
		ln = gs.listener
		gs.mu.RUnlock()
	}

	errCh := make(chan error, 1)
	go func() {
		gs.logger.Info("ops server listening", logging.Address(ln.Addr().String()))
		errCh <- gs.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return gs.Shutdown(DefaultShutdownTimeout)
	}
}

// Shutdown initiates a graceful shutdown. Later calls return nil.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		gs.logger.Info("shutting down ops server", logging.Duration("timeout", timeout))
		if err = gs.server.Shutdown(ctx); err != nil {
			gs.logger.Error("ops server shutdown failed", logging.Error(err))
		}
	})
	return err
}

// IsShuttingDown returns true if shutdown has been initiated
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// SetConfigReloadFunc sets the function ReloadConfig calls
func (gs *GracefulServer) SetConfigReloadFunc(fn ConfigReloadFunc) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.configReloadFn = fn
}

// ReloadConfig runs the reload function, if one is set
func (gs *GracefulServer) ReloadConfig() error {
	gs.mu.RLock()
	reloadFn := gs.configReloadFn
	gs.mu.RUnlock()

	if reloadFn == nil {
		gs.logger.Warn("configuration reload requested but no reload function is set")
		return nil
	}

	if err := reloadFn(); err != nil {
		gs.logger.Error("configuration reload failed", logging.Error(err))
		return err
	}
	gs.logger.Info("configuration reloaded")
	return nil
}

// HandleReloadSignals calls ReloadConfig on every SIGHUP until ctx is done
func (gs *GracefulServer) HandleReloadSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			gs.ReloadConfig()
		}
	}
}
