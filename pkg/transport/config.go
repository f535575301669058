package transport

import (
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/validation"
)

// Config holds client and server settings
type Config struct {
	// ConnectTimeout bounds establishing a connection to a peer
	ConnectTimeout time.Duration
	// RequestTimeout bounds sending a request and receiving its reply
	RequestTimeout time.Duration
	// Workers is the number of requests a server handles concurrently
	Workers int
	// MaxMessageSize caps inbound frames in bytes
	MaxMessageSize int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 5 * time.Second,
		Workers:        8,
		MaxMessageSize: 16 * 1024 * 1024,
	}
}

// ApplyDefaults applies default values to zero-valued fields
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	c.ConnectTimeout = validation.DefaultOrDuration(c.ConnectTimeout, defaults.ConnectTimeout)
	c.RequestTimeout = validation.DefaultOrDuration(c.RequestTimeout, defaults.RequestTimeout)
	c.Workers = validation.DefaultOrInt(c.Workers, defaults.Workers)
	c.MaxMessageSize = validation.DefaultOrInt(c.MaxMessageSize, defaults.MaxMessageSize)
}

// Validate validates the transport configuration
func (c *Config) Validate() error {
	return validation.NewConfigValidator("TransportConfig").
		MinDuration("ConnectTimeout", c.ConnectTimeout, time.Millisecond).
		MinDuration("RequestTimeout", c.RequestTimeout, time.Millisecond).
		Positive("Workers", c.Workers).
		When(c.Workers > 0, func(cv *validation.ConfigValidator) {
			cv.RangeInt("Workers", c.Workers, 1, 1024)
		}).
		RangeInt("MaxMessageSize", c.MaxMessageSize, 1024, 1<<30).
		Validate()
}
