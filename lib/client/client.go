// Package client provides the typed command facade over a connection pool.
// Every operation acquires a pooled connection, runs exactly one command,
// and returns the connection to the pool whether the command succeeded or
// failed. A connection whose transport died is discarded instead of
// released, so command failures never leak pool capacity.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"

	apperrors "github.com/go-i2p/redispool/lib/errors"
	"github.com/go-i2p/redispool/lib/metrics"
	"github.com/go-i2p/redispool/lib/pool"
	"github.com/go-i2p/redispool/lib/store"
)

// Errors returned by client operations. Aliased from the errors package
// for convenience.
var (
	// ErrNil is returned when a read targets a key that does not exist.
	ErrNil = apperrors.ErrNil
	// ErrPoolClosed is returned for commands issued after Shutdown.
	ErrPoolClosed = apperrors.ErrPoolClosed
)

// Client is a pooled command facade over a backing store.
// All methods are safe for concurrent use; each in-flight command holds
// one pooled connection exclusively for its duration.
type Client struct {
	name string
	cfg  Config
	pool *pool.Pool
}

// New creates a Client with the given options. The pool is not opened;
// call Open before issuing commands, or obtain clients through the
// registry, which opens them on first use.
func New(name string, opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.normalize()

	c := &Client{
		name: name,
		cfg:  cfg,
	}
	c.pool = pool.New(c.createConnection, pool.Config{
		MaxSize:             cfg.MaxClients,
		MaxIdleTime:         cfg.MaxIdleTime,
		AcquireTimeout:      cfg.AcquireTimeout,
		HealthCheckInterval: cfg.HealthCheckInterval,
		HealthCheck:         healthCheck,
	})

	log.WithField("client", name).WithField("addr", cfg.Store.Addr).Debug("created client")
	return c
}

// createConnection dials one store connection for the pool.
func (c *Client) createConnection(ctx context.Context) (pool.Connection, error) {
	return store.Dial(ctx, c.cfg.Store)
}

// healthCheck reports whether an idle connection is still usable. The pool
// calls it under its own lock, so it must not perform I/O; it only checks
// whether the transport has already failed.
func healthCheck(conn pool.Connection) bool {
	sc, ok := conn.(*store.Conn)
	if !ok {
		return false
	}
	return sc.Err() == nil
}

// Open initializes the pool, dialing a first connection to validate the
// store configuration. It is idempotent once the pool is ready; a
// concurrent Open during initialization fails with ErrConcurrentInit.
func (c *Client) Open(ctx context.Context) error {
	return c.pool.Open(ctx)
}

// do runs a single command on a pooled connection. Blocking commands are
// sent with the socket read deadline cleared so the server-side wait can
// run indefinitely.
func (c *Client) do(ctx context.Context, blocking bool, commandName string, args ...interface{}) (interface{}, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		log.WithError(err).WithField("command", commandName).Error("failed to acquire connection from pool")
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	sc := conn.(*store.Conn)
	success := false
	defer func() {
		if success {
			c.pool.Release(conn)
		} else {
			c.pool.Discard(conn)
		}
	}()

	metrics.CommandsTotal.Inc()
	timer := metrics.NewTimer(metrics.CommandLatency)
	var reply interface{}
	if blocking {
		reply, err = sc.DoBlocking(0, commandName, args...)
	} else {
		reply, err = sc.Do(commandName, args...)
	}
	timer.ObserveDuration()

	if err != nil {
		if apperrors.IsCommand(err) {
			// The store rejected the command; the connection itself
			// is still healthy.
			metrics.CommandErrors.Inc()
			success = true
		}
		return nil, err
	}

	success = true
	return reply, nil
}

// convertNil maps redigo's nil-reply sentinel onto the library's ErrNil.
func convertNil(err error) error {
	if errors.Is(err, redis.ErrNil) {
		return apperrors.ErrNil
	}
	return err
}

// Get returns the string value stored at key.
// A missing key returns ErrNil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	reply, err := c.do(ctx, false, "GET", key)
	if err != nil {
		return "", err
	}
	s, err := redis.String(reply, nil)
	if err != nil {
		return "", convertNil(err)
	}
	return s, nil
}

// Set stores value at key. A positive ttlSeconds sets an expiry on the
// key; zero stores it without one.
func (c *Client) Set(ctx context.Context, key, value string, ttlSeconds int) error {
	args := []interface{}{key, value}
	if ttlSeconds > 0 {
		args = append(args, "EX", ttlSeconds)
	}
	_, err := c.do(ctx, false, "SET", args...)
	return err
}

// Del removes the given keys and returns how many existed.
// Missing keys are not an error.
func (c *Client) Del(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	reply, err := c.do(ctx, false, "DEL", args...)
	if err != nil {
		return 0, err
	}
	return redis.Int(reply, nil)
}

// Expire sets an expiry on key. It returns false if the key does not exist.
func (c *Client) Expire(ctx context.Context, key string, ttlSeconds int) (bool, error) {
	reply, err := c.do(ctx, false, "EXPIRE", key, ttlSeconds)
	if err != nil {
		return false, err
	}
	return redis.Bool(reply, nil)
}

// TTL returns the remaining lifetime of key in seconds. Following the
// store's convention it returns -1 for a key without an expiry and -2
// for a missing key.
func (c *Client) TTL(ctx context.Context, key string) (int, error) {
	reply, err := c.do(ctx, false, "TTL", key)
	if err != nil {
		return 0, err
	}
	return redis.Int(reply, nil)
}

// Incr atomically increments the integer stored at key, creating it at
// zero first if absent, and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	reply, err := c.do(ctx, false, "INCR", key)
	if err != nil {
		return 0, err
	}
	return redis.Int64(reply, nil)
}

// Keys returns all keys matching the glob pattern. Intended for tests and
// diagnostics; on large datasets it scans the whole keyspace.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	reply, err := c.do(ctx, false, "KEYS", pattern)
	if err != nil {
		return nil, err
	}
	return redis.Strings(reply, nil)
}

// HGet returns the value of field in the hash stored at key.
// A missing key or field returns ErrNil.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	reply, err := c.do(ctx, false, "HGET", key, field)
	if err != nil {
		return "", err
	}
	s, err := redis.String(reply, nil)
	if err != nil {
		return "", convertNil(err)
	}
	return s, nil
}

// HSet sets field in the hash stored at key.
// It returns true if the field was created rather than updated.
func (c *Client) HSet(ctx context.Context, key, field, value string) (bool, error) {
	reply, err := c.do(ctx, false, "HSET", key, field, value)
	if err != nil {
		return false, err
	}
	return redis.Bool(reply, nil)
}

// HGetAll returns every field and value of the hash stored at key.
// A missing key returns an empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	reply, err := c.do(ctx, false, "HGETALL", key)
	if err != nil {
		return nil, err
	}
	return redis.StringMap(reply, nil)
}

// HDel removes the given fields from the hash stored at key and returns
// how many existed.
func (c *Client) HDel(ctx context.Context, key string, fields ...string) (int, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(fields)+1)
	args = append(args, key)
	for _, f := range fields {
		args = append(args, f)
	}
	reply, err := c.do(ctx, false, "HDEL", args...)
	if err != nil {
		return 0, err
	}
	return redis.Int(reply, nil)
}

// LPush prepends value to the list stored at key and returns the new
// list length.
func (c *Client) LPush(ctx context.Context, key, value string) (int, error) {
	reply, err := c.do(ctx, false, "LPUSH", key, value)
	if err != nil {
		return 0, err
	}
	return redis.Int(reply, nil)
}

// RPush appends value to the list stored at key and returns the new
// list length.
func (c *Client) RPush(ctx context.Context, key, value string) (int, error) {
	reply, err := c.do(ctx, false, "RPUSH", key, value)
	if err != nil {
		return 0, err
	}
	return redis.Int(reply, nil)
}

// BLPop removes and returns the first element of the list stored at key,
// waiting on the store until one arrives. The wait has no client-side
// deadline and ties up one pooled connection for its whole duration.
func (c *Client) BLPop(ctx context.Context, key string) (string, error) {
	return c.blockingPop(ctx, "BLPOP", key)
}

// BRPop removes and returns the last element of the list stored at key,
// waiting on the store until one arrives. The wait has no client-side
// deadline and ties up one pooled connection for its whole duration.
func (c *Client) BRPop(ctx context.Context, key string) (string, error) {
	return c.blockingPop(ctx, "BRPOP", key)
}

// blockingPop issues a blocking pop with an infinite server-side timeout.
// The reply is a [key, element] pair; only the element is returned.
func (c *Client) blockingPop(ctx context.Context, commandName, key string) (string, error) {
	reply, err := c.do(ctx, true, commandName, key, 0)
	if err != nil {
		return "", err
	}
	pair, err := redis.Strings(reply, nil)
	if err != nil {
		return "", convertNil(err)
	}
	if len(pair) != 2 {
		return "", fmt.Errorf("%s: unexpected reply with %d elements", commandName, len(pair))
	}
	return pair[1], nil
}

// Do runs an arbitrary command and returns the raw reply. Arguments are
// passed through to the store without validation; replies are whatever
// the store sent ([]byte, int64, string, nested []interface{}).
func (c *Client) Do(ctx context.Context, command string, args ...interface{}) (interface{}, error) {
	return c.do(ctx, false, command, args...)
}

// Ping checks that the store is reachable through a pooled connection.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, false, "PING")
	return err
}

// Stats returns a snapshot of the underlying pool's statistics.
func (c *Client) Stats() pool.Stats {
	return c.pool.Stats()
}

// Name returns the identifier the client was created with.
func (c *Client) Name() string {
	return c.name
}

// Shutdown drains the pool, waiting for in-flight commands to finish,
// then destroys every connection. The client is unusable afterwards;
// all operations fail with ErrPoolClosed.
func (c *Client) Shutdown(ctx context.Context) error {
	log.WithField("client", c.name).Debug("shutting down client")
	return c.pool.Close(ctx)
}
