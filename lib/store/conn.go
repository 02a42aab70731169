// Package store implements the connection factory for the backing
// key-value store. It owns dialing, session setup (auth, database
// select) and teardown of individual connections; pooling and command
// dispatch live in lib/pool and lib/client.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"

	apperrors "github.com/go-i2p/redispool/lib/errors"
	"github.com/go-i2p/redispool/lib/metrics"
)

// Conn is a single live session to the backing store. A Conn is owned
// by exactly one caller at a time and is not safe for concurrent use;
// the pool enforces single ownership between acquire and release.
type Conn struct {
	raw  redis.Conn
	addr string

	mu     sync.Mutex
	closed bool
}

// Dial opens one connection to the store described by cfg. The session
// is authenticated and switched to the configured database before the
// connection is returned, so a Conn that fails any part of the
// handshake is never handed to the caller. The context bounds the
// whole handshake.
func Dial(ctx context.Context, cfg *Config) (*Conn, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []redis.DialOption{
		redis.DialConnectTimeout(cfg.ConnectTimeout),
		redis.DialReadTimeout(cfg.ReadTimeout),
		redis.DialWriteTimeout(cfg.WriteTimeout),
		redis.DialDatabase(cfg.DB),
	}
	if cfg.Password != "" {
		opts = append(opts, redis.DialPassword(cfg.Password))
	}
	if cfg.Username != "" {
		opts = append(opts, redis.DialUsername(cfg.Username))
	}
	if cfg.UseTLS {
		opts = append(opts, redis.DialUseTLS(true))
		if cfg.TLSSkipVerify {
			opts = append(opts, redis.DialTLSSkipVerify(true))
		}
	}

	raw, err := redis.DialContext(ctx, cfg.network(), cfg.Addr, opts...)
	if err != nil {
		metrics.ConnectionsFailed.Inc()
		log.WithError(err).WithField("addr", cfg.Addr).Error("store connection failed")
		return nil, dialError(cfg.Addr, err)
	}

	metrics.ConnectionsDialed.Inc()
	log.WithField("addr", cfg.Addr).WithField("db", cfg.DB).Debug("store connection established")

	return &Conn{raw: raw, addr: cfg.Addr}, nil
}

// dialError classifies a handshake failure. An error reply from the
// store itself means the transport worked but the session was refused,
// which is almost always bad credentials.
func dialError(addr string, err error) error {
	var re redis.Error
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrAuthRejected, addr, err)
	}
	return fmt.Errorf("%w: %s: %v", apperrors.ErrStoreUnreachable, addr, err)
}

// Do executes a single command and returns the store's raw reply.
//
// An error reply from the store comes back as a *errors.CommandError
// and leaves the connection healthy; any other error means the
// transport is broken and the connection must be discarded, not
// released.
func (c *Conn) Do(commandName string, args ...interface{}) (interface{}, error) {
	reply, err := c.raw.Do(commandName, args...)
	return c.checkReply(commandName, reply, err)
}

// DoBlocking executes a command that may legitimately outwait any
// configured read deadline, such as BLPOP. A zero timeout waits
// forever.
func (c *Conn) DoBlocking(timeout time.Duration, commandName string, args ...interface{}) (interface{}, error) {
	reply, err := redis.DoWithTimeout(c.raw, timeout, commandName, args...)
	return c.checkReply(commandName, reply, err)
}

// checkReply splits command failures from transport failures.
func (c *Conn) checkReply(commandName string, reply interface{}, err error) (interface{}, error) {
	if err == nil {
		return reply, nil
	}
	var re redis.Error
	if errors.As(err, &re) {
		return nil, apperrors.NewCommandError(commandName, err)
	}
	log.WithError(err).WithField("addr", c.addr).Debug("transport failed during command")
	return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrConnection, c.addr, err)
}

// Ping round-trips the connection to verify it is still alive.
func (c *Conn) Ping() error {
	_, err := c.Do("PING")
	return err
}

// Err reports a permanent transport error on the connection, if any,
// without a network round trip. Used by the pool's health checks.
func (c *Conn) Err() error {
	return c.raw.Err()
}

// Addr returns the store address the connection was dialed to.
func (c *Conn) Addr() string {
	return c.addr
}

// Close tears the connection down, issuing a QUIT first so the store
// sees a clean disconnect. Closing an already closed connection is
// logged and ignored, never an error.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		log.Debug("connection already closed, ignoring")
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Best effort: a dead transport fails the QUIT and is closed below
	// regardless.
	if _, err := c.raw.Do("QUIT"); err != nil {
		log.WithError(err).Debug("quit before close failed")
	}

	metrics.ConnectionsClosed.Inc()
	log.WithField("addr", c.addr).Debug("store connection closed")
	return c.raw.Close()
}
