package cluster

import "errors"

// Registry errors
var (
	ErrLocalRank    = errors.New("rank belongs to the local node")
	ErrPeerNotFound = errors.New("peer rank not registered")
	ErrEmptyAddress = errors.New("peer address cannot be empty")
)

// Discovery errors
var (
	ErrBootstrapFailed = errors.New("bootstrap failed")
	ErrNoInfoClient    = errors.New("discovery requires an info client")
)
