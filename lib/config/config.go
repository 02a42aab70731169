// Package config loads and persists redispool configuration as TOML.
// It is the file-level counterpart of the programmatic options on
// lib/client; LoadConfig feeds ClientOptions, which feeds client.New.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/go-i2p/redispool/lib/client"
	"github.com/go-i2p/redispool/lib/store"
)

// Default configuration values
const (
	DefaultNetwork             = "tcp"
	DefaultAddr                = "127.0.0.1:6379"
	DefaultConnectTimeout      = 5 * time.Second
	DefaultMaxClients          = 5
	DefaultMaxIdleTime         = 5 * time.Minute
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultMetricsListen       = "127.0.0.1:9121"
)

// Config holds all configuration for a redispool deployment.
type Config struct {
	Store   StoreConfig   `toml:"store"`
	Pool    PoolConfig    `toml:"pool"`
	Metrics MetricsConfig `toml:"metrics"`
}

// StoreConfig contains backing-store connection settings.
type StoreConfig struct {
	// Network is the transport to dial, "tcp" or "unix"
	Network string `toml:"network"`
	// Addr is the store address (host:port, or a socket path for unix)
	Addr string `toml:"addr"`
	// Username for stores with ACL users; empty uses password-only auth
	Username string `toml:"username,omitempty"`
	// Password authenticates the session after connecting
	Password string `toml:"password,omitempty"`
	// DB is the logical database selected after connecting
	DB int `toml:"db"`
	// UseTLS wraps the connection in TLS
	UseTLS bool `toml:"use_tls"`
	// TLSSkipVerify disables certificate verification (testing only)
	TLSSkipVerify bool `toml:"tls_skip_verify"`
	// ConnectTimeout bounds the dial
	ConnectTimeout time.Duration `toml:"connect_timeout"`
	// ReadTimeout bounds each reply read; zero means no deadline
	ReadTimeout time.Duration `toml:"read_timeout"`
	// WriteTimeout bounds each command write; zero means no deadline
	WriteTimeout time.Duration `toml:"write_timeout"`
}

// PoolConfig contains connection pool settings.
type PoolConfig struct {
	// MaxClients is the maximum number of pooled connections
	MaxClients int `toml:"max_clients"`
	// MaxIdleTime is how long idle connections stay in the pool
	MaxIdleTime time.Duration `toml:"max_idle_time"`
	// AcquireTimeout bounds the wait for a free connection; zero waits forever
	AcquireTimeout time.Duration `toml:"acquire_timeout"`
	// HealthCheckInterval is how often idle connections are checked
	HealthCheckInterval time.Duration `toml:"health_check_interval"`
}

// MetricsConfig contains metrics exposition settings.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is started
	Enabled bool `toml:"enabled"`
	// Listen is the address to bind the metrics server to
	Listen string `toml:"listen"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Network:        DefaultNetwork,
			Addr:           DefaultAddr,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Pool: PoolConfig{
			MaxClients:          DefaultMaxClients,
			MaxIdleTime:         DefaultMaxIdleTime,
			HealthCheckInterval: DefaultHealthCheckInterval,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  DefaultMetricsListen,
		},
	}
}

// LoadConfig reads configuration from a TOML file.
// If the file doesn't exist, it starts from the default configuration.
// Environment variables override file values: REDISPOOL_ADDR,
// REDISPOOL_PASSWORD, REDISPOOL_DB and REDISPOOL_MAX_CLIENTS.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies REDISPOOL_* environment variables on top of
// whatever the file provided.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("REDISPOOL_ADDR"); v != "" {
		c.Store.Addr = v
	}
	if v := os.Getenv("REDISPOOL_PASSWORD"); v != "" {
		c.Store.Password = v
	}
	if v := os.Getenv("REDISPOOL_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDISPOOL_DB: %w", err)
		}
		c.Store.DB = n
	}
	if v := os.Getenv("REDISPOOL_MAX_CLIENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDISPOOL_MAX_CLIENTS: %w", err)
		}
		c.Pool.MaxClients = n
	}
	return nil
}

// SaveConfig writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Store.Network != "" && c.Store.Network != "tcp" && c.Store.Network != "unix" {
		return errors.New("store.network must be tcp or unix")
	}
	if c.Store.Addr == "" {
		return errors.New("store.addr is required")
	}
	if c.Store.DB < 0 {
		return errors.New("store.db must not be negative")
	}
	if c.Pool.MaxClients < 1 {
		return errors.New("pool.max_clients must be at least 1")
	}
	if c.Pool.AcquireTimeout < 0 {
		return errors.New("pool.acquire_timeout must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	return nil
}

// StoreConfig converts the store section into the dialer's config type.
func (c *Config) StoreConfig() *store.Config {
	return &store.Config{
		Network:        c.Store.Network,
		Addr:           c.Store.Addr,
		Username:       c.Store.Username,
		Password:       c.Store.Password,
		DB:             c.Store.DB,
		UseTLS:         c.Store.UseTLS,
		TLSSkipVerify:  c.Store.TLSSkipVerify,
		ConnectTimeout: c.Store.ConnectTimeout,
		ReadTimeout:    c.Store.ReadTimeout,
		WriteTimeout:   c.Store.WriteTimeout,
	}
}

// ClientOptions converts the configuration into options for client.New.
func (c *Config) ClientOptions() []client.Option {
	return []client.Option{
		client.WithStore(c.StoreConfig()),
		client.WithMaxClients(c.Pool.MaxClients),
		client.WithMaxIdleTime(c.Pool.MaxIdleTime),
		client.WithAcquireTimeout(c.Pool.AcquireTimeout),
		client.WithHealthCheckInterval(c.Pool.HealthCheckInterval),
	}
}
