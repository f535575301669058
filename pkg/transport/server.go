package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"github.com/dd0wney/cluso-coordinator/pkg/metrics"
	"github.com/dd0wney/cluso-coordinator/pkg/validation"
)

// ErrServerRunning is returned by Start on a running server
var ErrServerRunning = errors.New("server already running")

// Handler implements the RPC operations. Methods are called concurrently.
type Handler interface {
	Info(ctx context.Context, req InfoRequest) (*InfoResponse, error)
	RaftMessage(ctx context.Context, req RaftMessageRequest) (*RaftMessageResponse, error)
}

// Server answers requests on a reply socket with a fixed pool of workers.
type Server struct {
	config  Config
	handler Handler
	factory SocketFactory
	logger  logging.Logger
	metrics *metrics.Registry

	mu      sync.Mutex
	sock    ReplySocket
	addr    string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithServerFactory replaces the mangos socket factory
func WithServerFactory(f SocketFactory) ServerOption {
	return func(s *Server) { s.factory = f }
}

// WithServerLogger sets the server's logger
func WithServerLogger(l logging.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithServerMetrics records request counts and latency
func WithServerMetrics(m *metrics.Registry) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a server for handler. Call Start to listen.
func NewServer(config Config, handler Handler, opts ...ServerOption) *Server {
	config.ApplyDefaults()
	s := &Server{config: config, handler: handler}
	for _, opt := range opts {
		opt(s)
	}
	if s.factory == nil {
		s.factory = NewNNGSocketFactory(config.MaxMessageSize)
	}
	s.logger = logging.OrDefault(s.logger).Named("rpc-server")
	return s
}

// Start listens on addr and starts the workers
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerRunning
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if err := validation.NewConfigValidator("Server").
		Required("Address", addr).
		When(addr != "", func(cv *validation.ConfigValidator) { cv.Address("Address", addr) }).
		Validate(); err != nil {
		return err
	}

	sock, err := s.factory.NewReplySocket()
	if err != nil {
		return fmt.Errorf("open reply socket: %w", err)
	}
	target := NormalizeAddress(addr)
	if err := sock.Listen(target); err != nil {
		sock.Close()
		return fmt.Errorf("listen on %s: %w", target, err)
	}

	contexts := make([]Socket, 0, s.config.Workers)
	for i := 0; i < s.config.Workers; i++ {
		ctx, err := sock.OpenContext()
		if err != nil {
			for _, c := range contexts {
				c.Close()
			}
			sock.Close()
			return fmt.Errorf("open context: %w", err)
		}
		contexts = append(contexts, ctx)
	}

	base, cancel := context.WithCancel(context.Background())
	s.sock = sock
	s.addr = target
	s.cancel = cancel
	s.running = true

	for _, c := range contexts {
		s.wg.Add(1)
		go s.worker(base, c)
	}

	s.logger.Info("rpc server listening", logging.Address(target), logging.Int("workers", s.config.Workers))
	return nil
}

// Addr returns the address the server listens on
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop closes the socket and waits for in-flight requests to finish
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	err := s.sock.Close()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("rpc server stopped", logging.Address(s.addr))
	if errors.Is(err, ErrSocketClosed) {
		return nil
	}
	return err
}

func (s *Server) worker(base context.Context, sock Socket) {
	defer s.wg.Done()
	defer sock.Close()

	for {
		frame, err := sock.Recv()
		if err != nil {
			if errors.Is(err, ErrSocketClosed) || base.Err() != nil {
				return
			}
			s.logger.Warn("receive failed", logging.Error(err))
			continue
		}

		reply := s.handle(base, frame)
		out, err := Encode(reply)
		if err != nil {
			s.logger.Error("encode reply failed", logging.Error(err))
			continue
		}
		if err := sock.Send(out); err != nil {
			if errors.Is(err, ErrSocketClosed) {
				return
			}
			s.logger.Warn("send reply failed", logging.RequestID(reply.RequestID), logging.Error(err))
		}
	}
}

func (s *Server) handle(base context.Context, frame []byte) (reply *Envelope) {
	start := time.Now()

	env, err := Decode(frame)
	if err != nil {
		s.record("unknown", CodeInvalidArgument, start)
		return &Envelope{Type: "unknown", Timestamp: time.Now().UnixNano(), Code: CodeInvalidArgument, Error: err.Error()}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic", logging.String("method", string(env.Type)), logging.Any("panic", fmt.Sprint(r)))
			reply = env.Reply(nil, Errorf(CodeInternal, "handler panic: %v", r))
		}
		s.record(string(env.Type), reply.Code, start)
	}()

	ctx, cancel := context.WithTimeout(base, s.config.RequestTimeout)
	defer cancel()

	switch env.Type {
	case MethodInfo:
		var req InfoRequest
		if err := env.Decode(&req); err != nil {
			return env.Reply(nil, Errorf(CodeInvalidArgument, "decode info request: %w", err))
		}
		resp, err := s.handler.Info(ctx, req)
		return env.Reply(resp, err)

	case MethodRaftMessage:
		var req RaftMessageRequest
		if err := env.Decode(&req); err != nil {
			return env.Reply(nil, Errorf(CodeInvalidArgument, "decode raft message request: %w", err))
		}
		resp, err := s.handler.RaftMessage(ctx, req)
		return env.Reply(resp, err)

	default:
		return env.Reply(nil, Errorf(CodeUnimplemented, "unknown method %q", env.Type))
	}
}

func (s *Server) record(method string, code Code, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordRPC(method, code.String(), time.Since(start))
	}
}
