package coordinator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dd0wney/cluso-coordinator/pkg/consensus"
	"github.com/dd0wney/cluso-coordinator/pkg/transport"
	"github.com/dd0wney/cluso-coordinator/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Config holds everything needed to build a Coordinator
type Config struct {
	// Rank is this node's 0-based position in the cluster
	Rank      uint64 `yaml:"rank" toml:"rank" validate:"ltfield=WorldSize"`
	WorldSize uint64 `yaml:"world_size" toml:"world_size" validate:"gte=1"`

	// LocalAddress is the address peers use to reach this node
	LocalAddress string `yaml:"local_address" toml:"local_address" validate:"required,address"`
	// ListenAddress is what the RPC server binds. Defaults to LocalAddress.
	ListenAddress string   `yaml:"listen_address" toml:"listen_address" validate:"omitempty,address"`
	Seeds         []string `yaml:"seeds" toml:"seeds"`

	TickInterval   time.Duration `yaml:"tick_interval" toml:"tick_interval" validate:"min=1ms"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" toml:"connect_timeout" validate:"min=1ms"`
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout" validate:"min=1ms"`
	RPCWorkers     int           `yaml:"rpc_workers" toml:"rpc_workers" validate:"gte=1,lte=1024"`
	// SendQueueDepth is how many outbound batches may wait for one peer
	SendQueueDepth int `yaml:"send_queue_depth" toml:"send_queue_depth" validate:"gte=1,lte=65536"`

	SkipUnreachableSeeds bool `yaml:"skip_unreachable_seeds" toml:"skip_unreachable_seeds"`

	// MetricsAddress is the ops HTTP listen address. Empty disables it.
	MetricsAddress string `yaml:"metrics_address" toml:"metrics_address" validate:"omitempty,hostname_port"`
	LogLevel       string `yaml:"log_level" toml:"log_level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`

	Consensus ConsensusConfig `yaml:"consensus" toml:"consensus"`
}

// ConsensusConfig tunes the raft node
type ConsensusConfig struct {
	ElectionTick    int    `yaml:"election_tick" toml:"election_tick" validate:"gtfield=HeartbeatTick"`
	HeartbeatTick   int    `yaml:"heartbeat_tick" toml:"heartbeat_tick" validate:"gte=1"`
	MaxSizePerMsg   uint64 `yaml:"max_size_per_msg" toml:"max_size_per_msg"`
	MaxInflightMsgs int    `yaml:"max_inflight_msgs" toml:"max_inflight_msgs" validate:"gte=1"`
	CheckQuorum     bool   `yaml:"check_quorum" toml:"check_quorum"`
	PreVote         bool   `yaml:"pre_vote" toml:"pre_vote"`
}

// DefaultConfig returns default configuration. Rank, WorldSize and
// LocalAddress have no defaults.
func DefaultConfig() Config {
	tc := transport.DefaultConfig()
	return Config{
		TickInterval:   100 * time.Millisecond,
		ConnectTimeout: tc.ConnectTimeout,
		RequestTimeout: tc.RequestTimeout,
		RPCWorkers:     tc.Workers,
		SendQueueDepth: 64,
		LogLevel:       "info",
		Consensus: ConsensusConfig{
			ElectionTick:    consensus.DefaultElectionTick,
			HeartbeatTick:   consensus.DefaultHeartbeatTick,
			MaxSizePerMsg:   consensus.DefaultMaxSizePerMsg,
			MaxInflightMsgs: consensus.DefaultMaxInflightMsgs,
		},
	}
}

// ApplyDefaults applies default values to zero-valued fields
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()

	c.TickInterval = validation.DefaultOrDuration(c.TickInterval, d.TickInterval)
	c.ConnectTimeout = validation.DefaultOrDuration(c.ConnectTimeout, d.ConnectTimeout)
	c.RequestTimeout = validation.DefaultOrDuration(c.RequestTimeout, d.RequestTimeout)
	c.RPCWorkers = validation.DefaultOrInt(c.RPCWorkers, d.RPCWorkers)
	c.SendQueueDepth = validation.DefaultOrInt(c.SendQueueDepth, d.SendQueueDepth)
	c.LogLevel = validation.DefaultOr(c.LogLevel, d.LogLevel)
	c.ListenAddress = validation.DefaultOr(c.ListenAddress, c.LocalAddress)

	c.Consensus.ElectionTick = validation.DefaultOrInt(c.Consensus.ElectionTick, d.Consensus.ElectionTick)
	c.Consensus.HeartbeatTick = validation.DefaultOrInt(c.Consensus.HeartbeatTick, d.Consensus.HeartbeatTick)
	c.Consensus.MaxSizePerMsg = validation.DefaultOr(c.Consensus.MaxSizePerMsg, d.Consensus.MaxSizePerMsg)
	c.Consensus.MaxInflightMsgs = validation.DefaultOrInt(c.Consensus.MaxInflightMsgs, d.Consensus.MaxInflightMsgs)
}

// Validate checks the struct tags. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// TransportConfig derives the RPC client and server settings
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		ConnectTimeout: c.ConnectTimeout,
		RequestTimeout: c.RequestTimeout,
		Workers:        c.RPCWorkers,
	}
}

func (c *Config) consensusConfig() consensus.Config {
	return consensus.Config{
		Rank:            c.Rank,
		WorldSize:       c.WorldSize,
		ElectionTick:    c.Consensus.ElectionTick,
		HeartbeatTick:   c.Consensus.HeartbeatTick,
		MaxSizePerMsg:   c.Consensus.MaxSizePerMsg,
		MaxInflightMsgs: c.Consensus.MaxInflightMsgs,
		CheckQuorum:     c.Consensus.CheckQuorum,
		PreVote:         c.Consensus.PreVote,
	}
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file over
// DefaultConfig. The result is not validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, path)
	}
	return cfg, nil
}
