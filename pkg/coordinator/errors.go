package coordinator

import "errors"

// Construction errors
var (
	ErrInvalidConfig           = errors.New("invalid coordinator configuration")
	ErrUnsupportedConfigFormat = errors.New("unsupported config file format")
)

// Runtime errors
var (
	ErrDeserialization = errors.New("failed to decode raft message")
	ErrNotRunning      = errors.New("coordinator is not running")
	ErrAlreadyRunning  = errors.New("coordinator is already running")
)
