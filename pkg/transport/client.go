package transport

import (
	"context"
	"errors"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/cluster"
	"github.com/dd0wney/cluso-coordinator/pkg/logging"
)

// Client performs unary calls. Every call opens its own socket and closes
// it when the reply arrives, so calls to different peers never share state.
type Client struct {
	config  Config
	factory SocketFactory
	logger  logging.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithClientFactory replaces the mangos socket factory
func WithClientFactory(f SocketFactory) ClientOption {
	return func(c *Client) { c.factory = f }
}

// WithClientLogger sets the client's logger
func WithClientLogger(l logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client. Zero config fields take their defaults.
func NewClient(config Config, opts ...ClientOption) *Client {
	config.ApplyDefaults()
	c := &Client{config: config}
	for _, opt := range opts {
		opt(c)
	}
	if c.factory == nil {
		c.factory = NewNNGSocketFactory(config.MaxMessageSize)
	}
	c.logger = logging.OrDefault(c.logger).Named("rpc-client")
	return c
}

var _ cluster.InfoClient = (*Client)(nil)

// Info announces requester to the node at addr and returns its peer list
func (c *Client) Info(ctx context.Context, addr string, requester cluster.NodeInfo) ([]cluster.NodeInfo, error) {
	var resp InfoResponse
	if err := c.Call(ctx, addr, MethodInfo, InfoRequest{Requester: requester}, &resp); err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

// RaftMessage delivers one encoded raft message to the node at addr
func (c *Client) RaftMessage(ctx context.Context, addr string, message []byte) error {
	return c.Call(ctx, addr, MethodRaftMessage, RaftMessageRequest{Message: message}, nil)
}

// Call sends request to addr and decodes the reply into response, which
// may be nil. Connection failures and timeouts are Unavailable or
// DeadlineExceeded status errors; a failed handler returns its own code.
func (c *Client) Call(ctx context.Context, addr string, method Method, request, response any) error {
	env, err := NewRequest(method, request)
	if err != nil {
		return Errorf(CodeInvalidArgument, "encode %s request: %w", method, err)
	}
	frame, err := Encode(env)
	if err != nil {
		return Errorf(CodeInvalidArgument, "%w", err)
	}

	sock, err := c.factory.NewRequestSocket()
	if err != nil {
		return Errorf(CodeInternal, "open socket: %w", err)
	}
	defer sock.Close()

	timeout := c.config.RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return Errorf(CodeDeadlineExceeded, "%s %s: %w", method, addr, context.DeadlineExceeded)
	}
	sock.SetSendDeadline(timeout)
	sock.SetRecvDeadline(timeout)

	target := NormalizeAddress(addr)
	if err := c.dial(ctx, sock, target); err != nil {
		return err
	}

	if err := sock.Send(frame); err != nil {
		return c.ioError(method, target, "send", err)
	}
	replyFrame, err := sock.Recv()
	if err != nil {
		return c.ioError(method, target, "recv", err)
	}

	reply, err := Decode(replyFrame)
	if err != nil {
		return Errorf(CodeInternal, "%s %s: %w", method, target, err)
	}
	if reply.RequestID != env.RequestID {
		return Errorf(CodeInternal, "%s %s: reply for request %s, sent %s", method, target, reply.RequestID, env.RequestID)
	}
	if reply.Code != CodeOK {
		return &StatusError{Code: reply.Code, Message: reply.Error}
	}
	if response != nil {
		if err := reply.Decode(response); err != nil {
			return Errorf(CodeInternal, "decode %s reply: %w", method, err)
		}
	}
	return nil
}

// dial connects within ConnectTimeout. The socket is closed when the
// timeout fires so a hung dial does not leak.
func (c *Client) dial(ctx context.Context, sock RequestSocket, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sock.Dial(addr) }()

	select {
	case err := <-done:
		if err != nil {
			return Errorf(CodeUnavailable, "connect %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		sock.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Errorf(CodeUnavailable, "connect %s: timed out after %v: %w", addr, c.config.ConnectTimeout, ctx.Err())
		}
		return Errorf(CodeUnavailable, "connect %s: %w", addr, ctx.Err())
	}
}

func (c *Client) ioError(method Method, addr, op string, err error) error {
	c.logger.Debug("rpc failed", logging.String("method", string(method)), logging.Address(addr), logging.Error(err))
	if errors.Is(err, ErrTimeout) {
		return Errorf(CodeDeadlineExceeded, "%s %s: %s: %w", method, addr, op, err)
	}
	return Errorf(CodeUnavailable, "%s %s: %s: %w", method, addr, op, err)
}
