package transport

import (
	"errors"
	"io"
	"strings"
	"time"
)

// ErrSocketClosed is returned by socket operations after Close
var ErrSocketClosed = errors.New("socket closed")

// ErrTimeout is returned when a send or receive deadline expires
var ErrTimeout = errors.New("socket deadline exceeded")

// Socket sends and receives whole frames.
// This interface abstracts the underlying transport (mangos or a mock for testing).
type Socket interface {
	io.Closer
	Send([]byte) error
	Recv() ([]byte, error)
	SetRecvDeadline(d time.Duration) error
	SetSendDeadline(d time.Duration) error
}

// RequestSocket is the client side of a request/reply exchange.
type RequestSocket interface {
	Socket
	Dial(addr string) error
}

// ReplySocket is the server side. Each context opened on it handles one
// request at a time, so several contexts serve requests concurrently.
type ReplySocket interface {
	io.Closer
	Listen(addr string) error
	OpenContext() (Socket, error)
}

// SocketFactory creates sockets for the request/reply pattern.
type SocketFactory interface {
	NewRequestSocket() (RequestSocket, error)
	NewReplySocket() (ReplySocket, error)
}

// NormalizeAddress adds the tcp:// scheme to bare host:port addresses
func NormalizeAddress(addr string) string {
	if addr == "" || strings.Contains(addr, "://") {
		return addr
	}
	return "tcp://" + addr
}
