package store

import (
	"fmt"
	"time"

	apperrors "github.com/go-i2p/redispool/lib/errors"
)

// Config holds the parameters used to open connections to the backing
// key-value store. A pool copies its Config at construction and never
// reads it again, so mutating one after use has no effect.
type Config struct {
	// Network is the transport to dial, "tcp" or "unix".
	// Default: "tcp"
	Network string
	// Addr is the host:port of the store, or the socket path when
	// Network is "unix".
	// Default: "127.0.0.1:6379"
	Addr string
	// Username selects an ACL user when non-empty. Requires a store
	// that understands the two-argument AUTH form.
	Username string
	// Password authenticates the session after connecting. Empty
	// disables authentication.
	Password string
	// DB is the database index selected after connecting.
	// Default: 0
	DB int
	// UseTLS wraps the transport in TLS.
	UseTLS bool
	// TLSSkipVerify disables certificate verification. Testing only.
	TLSSkipVerify bool
	// ConnectTimeout bounds the dial and handshake.
	// Default: 5 seconds
	ConnectTimeout time.Duration
	// ReadTimeout bounds each reply read. Zero means wait forever,
	// which keeps blocking commands usable on pooled connections.
	ReadTimeout time.Duration
	// WriteTimeout bounds each command write. Zero means no deadline.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults for a local
// unauthenticated store.
func DefaultConfig() *Config {
	return &Config{
		Network:        "tcp",
		Addr:           "127.0.0.1:6379",
		ConnectTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: store addr is required", apperrors.ErrConfiguration)
	}
	if c.Network != "" && c.Network != "tcp" && c.Network != "unix" {
		return fmt.Errorf("%w: store network must be tcp or unix, got %q", apperrors.ErrConfiguration, c.Network)
	}
	if c.DB < 0 {
		return fmt.Errorf("%w: store db must not be negative", apperrors.ErrConfiguration)
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: store timeouts must not be negative", apperrors.ErrConfiguration)
	}
	return nil
}

// network returns the transport to dial, defaulting to TCP.
func (c *Config) network() string {
	if c.Network == "" {
		return "tcp"
	}
	return c.Network
}
