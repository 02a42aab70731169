package client

import (
	"time"

	"github.com/go-i2p/redispool/lib/store"
)

// Default configuration values for the command facade.
const (
	DefaultMaxClients          = 5
	DefaultMaxIdleTime         = 5 * time.Minute
	DefaultHealthCheckInterval = 30 * time.Second
)

// Config configures a Client and the pool behind it.
// Fields with zero values use sensible defaults.
type Config struct {
	// Store configures the backing-store connections the pool dials.
	// Default: store.DefaultConfig()
	Store *store.Config

	// MaxClients is the maximum number of pooled connections.
	// Default: 5
	MaxClients int

	// MaxIdleTime is how long idle connections stay in the pool.
	// Default: 5 minutes
	MaxIdleTime time.Duration

	// AcquireTimeout bounds how long a command waits for a free
	// connection when the pool is exhausted. Zero means wait forever.
	// Default: 0
	AcquireTimeout time.Duration

	// HealthCheckInterval is how often idle connections are checked.
	// Default: 30 seconds
	HealthCheckInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:               store.DefaultConfig(),
		MaxClients:          DefaultMaxClients,
		MaxIdleTime:         DefaultMaxIdleTime,
		HealthCheckInterval: DefaultHealthCheckInterval,
	}
}

// normalize fills zero-valued fields with defaults.
func (c *Config) normalize() {
	if c.Store == nil {
		c.Store = store.DefaultConfig()
	}
	if c.MaxClients <= 0 {
		c.MaxClients = DefaultMaxClients
	}
	if c.MaxIdleTime <= 0 {
		c.MaxIdleTime = DefaultMaxIdleTime
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
}

// Option is a functional option for configuring a Client.
type Option func(*Config)

// WithStore sets the full backing-store configuration.
func WithStore(sc *store.Config) Option {
	return func(c *Config) {
		c.Store = sc
	}
}

// WithAddr sets the backing-store address, keeping other store defaults.
func WithAddr(addr string) Option {
	return func(c *Config) {
		if c.Store == nil {
			c.Store = store.DefaultConfig()
		}
		c.Store.Addr = addr
	}
}

// WithPassword sets the backing-store password.
func WithPassword(password string) Option {
	return func(c *Config) {
		if c.Store == nil {
			c.Store = store.DefaultConfig()
		}
		c.Store.Password = password
	}
}

// WithDB sets the backing-store database index.
func WithDB(db int) Option {
	return func(c *Config) {
		if c.Store == nil {
			c.Store = store.DefaultConfig()
		}
		c.Store.DB = db
	}
}

// WithMaxClients sets the maximum number of pooled connections.
func WithMaxClients(n int) Option {
	return func(c *Config) {
		c.MaxClients = n
	}
}

// WithMaxIdleTime sets how long idle connections stay in the pool.
func WithMaxIdleTime(d time.Duration) Option {
	return func(c *Config) {
		c.MaxIdleTime = d
	}
}

// WithAcquireTimeout bounds how long commands wait for a free connection.
func WithAcquireTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.AcquireTimeout = d
	}
}

// WithHealthCheckInterval sets the idle connection check interval.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(c *Config) {
		c.HealthCheckInterval = d
	}
}
