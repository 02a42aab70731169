package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/go-i2p/redispool/lib/errors"
	"github.com/go-i2p/redispool/lib/metrics"
)

// Aliases to the central error definitions in lib/errors.
var (
	// ErrPoolClosed is returned when operating on a drained and cleared pool.
	ErrPoolClosed = apperrors.ErrPoolClosed
	// ErrPoolExhausted is returned when no connection could be acquired
	// within the configured timeout.
	ErrPoolExhausted = apperrors.ErrPoolExhausted
	// ErrNotOpen is returned when acquiring from a pool whose Open has
	// not completed.
	ErrNotOpen = apperrors.ErrNotOpen
	// ErrConcurrentInit is returned when Open races an in-flight Open
	// on the same pool.
	ErrConcurrentInit = apperrors.ErrConcurrentInit
)

// State is the lifecycle state of a pool.
type State int

const (
	// StateUninitialized is a pool that has never completed Open.
	StateUninitialized State = iota
	// StateInitializing is a pool with an Open in flight.
	StateInitializing
	// StateReady is a pool serving acquisitions.
	StateReady
	// StateDraining is a pool rejecting new acquisitions while waiting
	// for in-use connections to be released.
	StateDraining
	// StateClosed is a pool whose connections have been destroyed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection represents a poolable connection.
type Connection interface {
	// Close closes the connection.
	Close() error
}

// Factory creates new connections.
type Factory func(ctx context.Context) (Connection, error)

// HealthChecker checks if a connection is still valid.
type HealthChecker func(conn Connection) bool

// Config configures the connection pool.
type Config struct {
	// MaxSize is the maximum number of connections in the pool.
	// Default: 30
	MaxSize int
	// MaxIdleTime is how long an idle connection can stay in the pool.
	// Connections idle longer than this are closed.
	// Default: 10 minutes
	MaxIdleTime time.Duration
	// AcquireTimeout bounds how long Acquire waits for a connection
	// when the caller's context has no deadline of its own. Zero means
	// wait until the context is done, however long that takes.
	// Default: 0
	AcquireTimeout time.Duration
	// HealthCheckInterval is how often to run health checks on idle connections.
	// Set to 0 to disable periodic health checks.
	// Default: 1 minute
	HealthCheckInterval time.Duration
	// HealthCheck is a function to check if a connection is still valid.
	// If nil, no health checks are performed.
	HealthCheck HealthChecker
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:             30,
		MaxIdleTime:         10 * time.Minute,
		AcquireTimeout:      0,
		HealthCheckInterval: 1 * time.Minute,
	}
}

// pooledConn wraps a connection with metadata.
type pooledConn struct {
	conn      Connection
	createdAt time.Time
	lastUsed  time.Time
}

// Pool is a bounded connection pool with an explicit lifecycle.
type Pool struct {
	factory    Factory
	config     Config
	mu         sync.Mutex
	cond       *sync.Cond
	state      State
	idle       []*pooledConn
	numOpen    int
	stopHealth chan struct{}
	healthDone chan struct{}

	// Metrics
	acquireCount   uint64
	acquireSuccess uint64
	acquireFailed  uint64
	releaseCount   uint64
	healthFails    uint64
}

// New creates a new connection pool in the uninitialized state. Call
// Open before acquiring.
func New(factory Factory, cfg Config) *Pool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 30
	}
	if cfg.MaxIdleTime <= 0 {
		cfg.MaxIdleTime = 10 * time.Minute
	}

	p := &Pool{
		factory:    factory,
		config:     cfg,
		state:      StateUninitialized,
		idle:       make([]*pooledConn, 0, cfg.MaxSize),
		stopHealth: make(chan struct{}),
		healthDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	if cfg.HealthCheckInterval > 0 {
		go p.healthCheckLoop()
	} else {
		close(p.healthDone)
	}

	log.WithField("maxSize", cfg.MaxSize).WithField("maxIdleTime", cfg.MaxIdleTime).Debug("pool created")
	return p
}

// Open initializes the pool by dialing a first connection, proving the
// configuration can reach the store before any caller acquires. Open
// is idempotent once it has succeeded. At most one Open may be in
// flight: a second concurrent call fails fast with ErrConcurrentInit
// instead of dialing a duplicate connection.
func (p *Pool) Open(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateReady:
		p.mu.Unlock()
		return nil
	case StateInitializing:
		p.mu.Unlock()
		log.Warn("rejected initialization racing an in-flight one")
		return ErrConcurrentInit
	case StateDraining, StateClosed:
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.state = StateInitializing
	p.mu.Unlock()

	conn, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.state = StateUninitialized
		p.mu.Unlock()
		log.WithError(err).Error("pool initialization failed")
		return err
	}

	now := time.Now()
	p.mu.Lock()
	if p.state != StateInitializing {
		// The pool was closed while the first connection was dialing.
		// Destroy it rather than resurrect a closed pool.
		p.mu.Unlock()
		go conn.Close()
		log.Warn("pool closed during initialization")
		return ErrPoolClosed
	}
	p.numOpen++
	p.idle = append(p.idle, &pooledConn{conn: conn, createdAt: now, lastUsed: now})
	p.state = StateReady
	p.cond.Broadcast()
	p.mu.Unlock()

	log.WithField("maxSize", p.config.MaxSize).Debug("pool opened")
	return nil
}

// State returns the pool's current lifecycle state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Acquire gets a connection from the pool. It blocks until an idle
// connection is available or a new one can be created under the
// maximum; a full pool makes callers wait rather than fail. The wait
// ends early if the context is done or the configured AcquireTimeout
// passes, in which case ErrPoolExhausted is returned.
func (p *Pool) Acquire(ctx context.Context) (Connection, error) {
	atomic.AddUint64(&p.acquireCount, 1)
	PoolAcquireTotal.Inc()
	timer := metrics.NewTimer(PoolAcquireLatency)
	defer timer.ObserveDuration()

	// Use configured timeout if context has no deadline
	acquireCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && p.config.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.config.AcquireTimeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		switch p.state {
		case StateUninitialized, StateInitializing:
			p.failAcquireLocked()
			return nil, ErrNotOpen
		case StateDraining, StateClosed:
			p.failAcquireLocked()
			return nil, ErrPoolClosed
		}

		// Check context cancellation
		select {
		case <-acquireCtx.Done():
			p.failAcquireLocked()
			if acquireCtx.Err() == context.DeadlineExceeded {
				return nil, ErrPoolExhausted
			}
			return nil, acquireCtx.Err()
		default:
		}

		// Try to get an idle connection
		conn, ok := p.getIdleLocked()
		if ok {
			atomic.AddUint64(&p.acquireSuccess, 1)
			PoolAcquireSuccessTotal.Inc()
			log.Debug("acquired idle connection from pool")
			return conn, nil
		}

		// Try to create a new connection if under limit
		if p.numOpen < p.config.MaxSize {
			p.numOpen++
			p.mu.Unlock()

			conn, err := p.factory(acquireCtx)

			p.mu.Lock()
			if err != nil {
				p.numOpen--
				p.cond.Broadcast()
				p.failAcquireLocked()
				log.WithError(err).Debug("failed to create new connection")
				return nil, err
			}
			if p.state == StateClosed {
				// Cleared while the dial was in flight; the new
				// connection has no pool to live in.
				p.numOpen--
				p.cond.Broadcast()
				p.failAcquireLocked()
				go conn.Close()
				return nil, ErrPoolClosed
			}

			atomic.AddUint64(&p.acquireSuccess, 1)
			PoolAcquireSuccessTotal.Inc()
			log.Debug("created new connection")
			return conn, nil
		}

		// Wait for a connection to be released
		log.Debug("waiting for available connection")
		p.waitWithContext(acquireCtx)
	}
}

// failAcquireLocked records a failed acquisition attempt.
func (p *Pool) failAcquireLocked() {
	atomic.AddUint64(&p.acquireFailed, 1)
	PoolAcquireFailedTotal.Inc()
}

// getIdleLocked gets an idle connection (caller must hold lock).
// It removes stale connections and checks health if configured.
func (p *Pool) getIdleLocked() (Connection, bool) {
	now := time.Now()
	for len(p.idle) > 0 {
		// Get the most recently used connection (LIFO)
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		// Check if connection is too old
		if now.Sub(pc.lastUsed) > p.config.MaxIdleTime {
			log.Debug("closing stale connection")
			p.numOpen--
			go pc.conn.Close()
			continue
		}

		// Health check if configured
		if p.config.HealthCheck != nil && !p.config.HealthCheck(pc.conn) {
			log.Debug("closing unhealthy connection")
			atomic.AddUint64(&p.healthFails, 1)
			PoolHealthCheckFailsTotal.Inc()
			p.numOpen--
			go pc.conn.Close()
			continue
		}

		return pc.conn, true
	}
	return nil, false
}

// waitWithContext waits for a condition signal or context cancellation.
func (p *Pool) waitWithContext(ctx context.Context) {
	// Start a goroutine to signal on context cancellation
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()
	p.cond.Wait()
	close(done)
}

// Release returns a connection to the pool, waking the next waiter.
// If the pool has been cleared, the connection is closed instead.
func (p *Pool) Release(conn Connection) {
	if conn == nil {
		return
	}

	atomic.AddUint64(&p.releaseCount, 1)
	PoolReleaseTotal.Inc()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		log.Debug("pool closed, closing connection")
		p.numOpen--
		go conn.Close()
		return
	}

	// Add to idle pool
	pc := &pooledConn{
		conn:      conn,
		createdAt: time.Now(),
		lastUsed:  time.Now(),
	}
	p.idle = append(p.idle, pc)
	if p.state == StateDraining {
		// Drain waiters need to observe the return, not just the next
		// acquirer in line.
		p.cond.Broadcast()
	} else {
		p.cond.Signal()
	}
	log.Debug("connection released to pool")
}

// Discard removes a connection from the pool without returning it.
// Use this when a connection is known to be bad.
func (p *Pool) Discard(conn Connection) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	p.numOpen--
	p.cond.Broadcast()
	p.mu.Unlock()

	log.Debug("discarding bad connection")
	conn.Close()
}

// Drain stops new acquisitions and waits until every in-use connection
// has been released back to the idle set. Idle connections stay open;
// Clear destroys them. Blocked acquirers are woken and fail with
// ErrPoolClosed. The context bounds the wait; on cancellation the pool
// stays draining.
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return ErrPoolClosed
	}
	if p.state != StateDraining {
		p.state = StateDraining
		p.cond.Broadcast()
		log.WithField("inUse", p.numOpen-len(p.idle)).Debug("pool draining")
	}

	for p.numOpen > len(p.idle) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.waitWithContext(ctx)
	}

	log.Debug("pool drained")
	return nil
}

// Clear destroys every idle connection and marks the pool closed. It
// does not wait for in-use connections; call Drain first for that.
// Connections still in use when Clear runs are closed on release.
func (p *Pool) Clear() error {
	p.mu.Lock()

	if p.state == StateClosed {
		p.mu.Unlock()
		return ErrPoolClosed
	}

	p.state = StateClosed
	close(p.stopHealth)

	// Close all idle connections
	for _, pc := range p.idle {
		p.numOpen--
		go pc.conn.Close()
	}
	p.idle = nil

	p.cond.Broadcast()
	p.mu.Unlock()

	// Wait for health check goroutine
	<-p.healthDone

	log.Debug("pool cleared")
	return nil
}

// Close shuts the pool down: Drain, then Clear, sequentially. The
// context bounds the drain wait. A pool that is already closed
// returns ErrPoolClosed.
func (p *Pool) Close(ctx context.Context) error {
	if err := p.Drain(ctx); err != nil {
		return err
	}
	return p.Clear()
}

// healthCheckLoop periodically checks idle connections.
func (p *Pool) healthCheckLoop() {
	defer close(p.healthDone)

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopHealth:
			return
		case <-ticker.C:
			p.runHealthCheck()
			UpdateMetrics(p.Stats())
		}
	}
}

// runHealthCheck removes unhealthy idle connections.
func (p *Pool) runHealthCheck() {
	if p.config.HealthCheck == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateReady {
		return
	}

	var toClose []Connection
	healthy := make([]*pooledConn, 0, len(p.idle))
	now := time.Now()

	for _, pc := range p.idle {
		// Check if too old
		if now.Sub(pc.lastUsed) > p.config.MaxIdleTime {
			toClose = append(toClose, pc.conn)
			p.numOpen--
			continue
		}

		// Health check
		if !p.config.HealthCheck(pc.conn) {
			atomic.AddUint64(&p.healthFails, 1)
			PoolHealthCheckFailsTotal.Inc()
			toClose = append(toClose, pc.conn)
			p.numOpen--
			continue
		}

		healthy = append(healthy, pc)
	}

	p.idle = healthy

	// Close bad connections outside the lock
	for _, conn := range toClose {
		go conn.Close()
	}

	if len(toClose) > 0 {
		log.WithField("closed", len(toClose)).Debug("health check removed connections")
	}
}

// Stats holds a snapshot of pool statistics.
type Stats struct {
	// State is the pool's lifecycle state.
	State State
	// MaxSize is the maximum pool size.
	MaxSize int
	// NumOpen is the current number of open connections.
	NumOpen int
	// NumIdle is the current number of idle connections.
	NumIdle int
	// NumInUse is the number of connections currently in use.
	NumInUse int
	// AcquireCount is the total number of acquire attempts.
	AcquireCount uint64
	// AcquireSuccess is the number of successful acquires.
	AcquireSuccess uint64
	// AcquireFailed is the number of failed acquires.
	AcquireFailed uint64
	// ReleaseCount is the number of releases.
	ReleaseCount uint64
	// HealthCheckFails is the number of connections that failed health checks.
	HealthCheckFails uint64
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		State:            p.state,
		MaxSize:          p.config.MaxSize,
		NumOpen:          p.numOpen,
		NumIdle:          len(p.idle),
		NumInUse:         p.numOpen - len(p.idle),
		AcquireCount:     atomic.LoadUint64(&p.acquireCount),
		AcquireSuccess:   atomic.LoadUint64(&p.acquireSuccess),
		AcquireFailed:    atomic.LoadUint64(&p.acquireFailed),
		ReleaseCount:     atomic.LoadUint64(&p.releaseCount),
		HealthCheckFails: atomic.LoadUint64(&p.healthFails),
	}
}
