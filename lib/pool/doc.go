// Package pool provides a bounded connection pool with an explicit
// lifecycle for managing reusable connections to a backing store.
//
// The pool supports:
//   - Configurable maximum pool size
//   - An explicit lifecycle: Open, Drain, Clear, Close
//   - Connection idle timeout
//   - Health checking for pooled connections
//   - Metrics for pool utilization
//   - Context-aware acquisition with timeout support
//
// # Lifecycle
//
// A pool starts uninitialized. Open dials a first connection to prove
// the configuration works; until Open succeeds every Acquire fails.
// Drain stops new acquisitions and waits for in-use connections to
// come back, Clear then destroys what remains and makes the pool
// permanently unusable. Close combines the two.
//
// At most one Open may be in flight per pool: a racing Open fails fast
// with ErrConcurrentInit instead of dialing a duplicate connection.
//
// # Basic Usage
//
//	factory := func(ctx context.Context) (pool.Connection, error) {
//	    return store.Dial(ctx, storeCfg)
//	}
//
//	cfg := pool.DefaultConfig()
//	cfg.MaxSize = 30
//
//	p := pool.New(factory, cfg)
//	if err := p.Open(ctx); err != nil {
//	    return err
//	}
//	defer p.Close(ctx)
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Release(conn)
//
//	// Use connection...
//
// # Health Checking
//
// The pool supports health checking to remove broken connections:
//
//	cfg.HealthCheck = func(conn pool.Connection) bool {
//	    return conn.(*store.Conn).Err() == nil
//	}
//
// # Metrics
//
// Pool utilization metrics are automatically registered with the metrics package:
//   - redispool_pool_connections_max: Maximum pool size
//   - redispool_pool_connections_open: Current open connections
//   - redispool_pool_connections_idle: Current idle connections
//   - redispool_pool_connections_in_use: Connections currently in use
//   - redispool_pool_acquire_total: Total acquire attempts
//   - redispool_pool_acquire_success_total: Successful acquires
//   - redispool_pool_acquire_failed_total: Failed acquires
//   - redispool_pool_release_total: Total releases
//   - redispool_pool_healthcheck_fails_total: Health check failures
//   - redispool_pool_acquire_duration_seconds: Acquire latency
package pool
