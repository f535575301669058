package transport

import (
	"errors"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mangos.ErrClosed):
		return ErrSocketClosed
	case errors.Is(err, mangos.ErrRecvTimeout), errors.Is(err, mangos.ErrSendTimeout):
		return ErrTimeout
	default:
		return err
	}
}

// nngSocket wraps a mangos.Socket to implement RequestSocket.
type nngSocket struct {
	sock mangos.Socket
}

func (s *nngSocket) Send(data []byte) error {
	return mapErr(s.sock.Send(data))
}

func (s *nngSocket) Recv() ([]byte, error) {
	data, err := s.sock.Recv()
	return data, mapErr(err)
}

func (s *nngSocket) Close() error {
	return mapErr(s.sock.Close())
}

func (s *nngSocket) SetRecvDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionRecvDeadline, d)
}

func (s *nngSocket) SetSendDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionSendDeadline, d)
}

// Dial connects synchronously so a refused connection fails the call
// instead of being retried in the background.
func (s *nngSocket) Dial(addr string) error {
	return mapErr(s.sock.DialOptions(addr, map[string]interface{}{
		mangos.OptionDialAsynch: false,
	}))
}

// nngContext is one concurrent request slot on a reply socket.
type nngContext struct {
	ctx mangos.Context
}

func (c *nngContext) Send(data []byte) error {
	return mapErr(c.ctx.Send(data))
}

func (c *nngContext) Recv() ([]byte, error) {
	data, err := c.ctx.Recv()
	return data, mapErr(err)
}

func (c *nngContext) Close() error {
	return mapErr(c.ctx.Close())
}

func (c *nngContext) SetRecvDeadline(d time.Duration) error {
	return c.ctx.SetOption(mangos.OptionRecvDeadline, d)
}

func (c *nngContext) SetSendDeadline(d time.Duration) error {
	return c.ctx.SetOption(mangos.OptionSendDeadline, d)
}

// nngReplySocket wraps a mangos REP socket.
type nngReplySocket struct {
	sock mangos.Socket
}

func (s *nngReplySocket) Listen(addr string) error {
	return mapErr(s.sock.Listen(addr))
}

func (s *nngReplySocket) OpenContext() (Socket, error) {
	ctx, err := s.sock.OpenContext()
	if err != nil {
		return nil, mapErr(err)
	}
	return &nngContext{ctx: ctx}, nil
}

func (s *nngReplySocket) Close() error {
	return mapErr(s.sock.Close())
}

// NNGSocketFactory creates mangos REQ/REP sockets.
type NNGSocketFactory struct {
	// MaxRecvSize caps inbound frame size. Zero keeps the mangos default.
	MaxRecvSize int
}

// NewNNGSocketFactory creates a new mangos socket factory.
func NewNNGSocketFactory(maxRecvSize int) *NNGSocketFactory {
	return &NNGSocketFactory{MaxRecvSize: maxRecvSize}
}

func (f *NNGSocketFactory) limit(sock mangos.Socket) error {
	if f.MaxRecvSize > 0 {
		return sock.SetOption(mangos.OptionMaxRecvSize, f.MaxRecvSize)
	}
	return nil
}

func (f *NNGSocketFactory) NewRequestSocket() (RequestSocket, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := f.limit(sock); err != nil {
		sock.Close()
		return nil, err
	}
	return &nngSocket{sock: sock}, nil
}

func (f *NNGSocketFactory) NewReplySocket() (ReplySocket, error) {
	sock, err := rep.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := f.limit(sock); err != nil {
		sock.Close()
		return nil, err
	}
	return &nngReplySocket{sock: sock}, nil
}

// Ensure NNGSocketFactory implements SocketFactory
var _ SocketFactory = (*NNGSocketFactory)(nil)
