package consensus

import (
	"fmt"

	"github.com/dd0wney/cluso-coordinator/pkg/logging"
)

// Config configures a Driver
type Config struct {
	Rank      uint64
	WorldSize uint64

	ElectionTick    int
	HeartbeatTick   int
	MaxSizePerMsg   uint64
	MaxInflightMsgs int
	CheckQuorum     bool
	PreVote         bool

	// Storage defaults to a fresh raft.MemoryStorage. It must be empty:
	// the driver writes the initial membership itself.
	Storage Storage
	Logger  logging.Logger
}

// Defaults
const (
	DefaultElectionTick    = 10
	DefaultHeartbeatTick   = 1
	DefaultMaxSizePerMsg   = 1024 * 1024
	DefaultMaxInflightMsgs = 256
)

// ApplyDefaults fills zero values with defaults
func (c *Config) ApplyDefaults() {
	if c.ElectionTick == 0 {
		c.ElectionTick = DefaultElectionTick
	}
	if c.HeartbeatTick == 0 {
		c.HeartbeatTick = DefaultHeartbeatTick
	}
	if c.MaxSizePerMsg == 0 {
		c.MaxSizePerMsg = DefaultMaxSizePerMsg
	}
	if c.MaxInflightMsgs == 0 {
		c.MaxInflightMsgs = DefaultMaxInflightMsgs
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.WorldSize == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidWorldSize)
	}
	if c.Rank >= c.WorldSize {
		return fmt.Errorf("%w: %w (rank %d, world size %d)", ErrInvalidConfig, ErrRankOutOfRange, c.Rank, c.WorldSize)
	}
	if c.HeartbeatTick <= 0 || c.ElectionTick <= c.HeartbeatTick {
		return fmt.Errorf("%w: %w (election %d, heartbeat %d)", ErrInvalidConfig, ErrInvalidTicks, c.ElectionTick, c.HeartbeatTick)
	}
	if c.MaxInflightMsgs <= 0 {
		return fmt.Errorf("%w: max inflight messages must be positive", ErrInvalidConfig)
	}
	return nil
}
