package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockConn is a mock connection for testing.
type mockConn struct {
	id       int
	closed   bool
	mu       sync.Mutex
	closedAt time.Time
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closedAt = time.Now()
	return nil
}

func (m *mockConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockFactory creates mock connections.
func mockFactory(counter *int32) Factory {
	return func(ctx context.Context) (Connection, error) {
		id := atomic.AddInt32(counter, 1)
		return &mockConn{id: int(id)}, nil
	}
}

// flakyFactory succeeds for the first succeed calls, then fails.
func flakyFactory(counter *int32, succeed int32) Factory {
	return func(ctx context.Context) (Connection, error) {
		n := atomic.AddInt32(counter, 1)
		if n > succeed {
			return nil, errors.New("connection failed")
		}
		return &mockConn{id: int(n)}, nil
	}
}

// openPool creates and opens a pool, failing the test on error.
func openPool(t *testing.T, factory Factory, cfg Config) *Pool {
	t.Helper()
	p := New(factory, cfg)
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return p
}

func TestPoolOpen(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 3
	cfg.HealthCheckInterval = 0

	p := New(mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	if p.State() != StateUninitialized {
		t.Errorf("state before Open = %v, want uninitialized", p.State())
	}

	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if p.State() != StateReady {
		t.Errorf("state after Open = %v, want ready", p.State())
	}

	// Open validates the config by dialing one connection.
	stats := p.Stats()
	if stats.NumOpen != 1 {
		t.Errorf("NumOpen after Open = %d, want 1", stats.NumOpen)
	}
	if stats.NumIdle != 1 {
		t.Errorf("NumIdle after Open = %d, want 1", stats.NumIdle)
	}

	// Open is idempotent once ready and dials nothing new.
	if err := p.Open(context.Background()); err != nil {
		t.Errorf("second Open failed: %v", err)
	}
	if counter != 1 {
		t.Errorf("connections created = %d, want 1", counter)
	}
}

func TestPoolOpenConcurrent(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	factory := func(ctx context.Context) (Connection, error) {
		close(entered)
		<-release
		return &mockConn{id: 1}, nil
	}

	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 0
	p := New(factory, cfg)
	defer p.Close(context.Background())

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- p.Open(context.Background())
	}()

	// Wait until the first Open is inside the factory, then race it.
	<-entered
	if err := p.Open(context.Background()); !errors.Is(err, ErrConcurrentInit) {
		t.Errorf("racing Open error = %v, want ErrConcurrentInit", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if p.State() != StateReady {
		t.Errorf("state = %v, want ready", p.State())
	}
}

func TestPoolOpenFailureAllowsRetry(t *testing.T) {
	var calls int32
	factory := func(ctx context.Context) (Connection, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("store down")
		}
		return &mockConn{id: int(calls)}, nil
	}

	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 0
	p := New(factory, cfg)
	defer p.Close(context.Background())

	if err := p.Open(context.Background()); err == nil {
		t.Fatal("expected first Open to fail")
	}
	if p.State() != StateUninitialized {
		t.Errorf("state after failed Open = %v, want uninitialized", p.State())
	}

	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("retry Open failed: %v", err)
	}
	if p.State() != StateReady {
		t.Errorf("state after retry = %v, want ready", p.State())
	}
}

func TestPoolCloseDuringOpen(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	conn := &mockConn{id: 1}
	factory := func(ctx context.Context) (Connection, error) {
		close(entered)
		<-release
		return conn, nil
	}

	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 0
	p := New(factory, cfg)

	openDone := make(chan error, 1)
	go func() {
		openDone <- p.Open(context.Background())
	}()

	// Close the pool while the first connection is still dialing.
	<-entered
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	close(release)
	if err := <-openDone; !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Open after Close error = %v, want ErrPoolClosed", err)
	}
	if p.State() != StateClosed {
		t.Errorf("state = %v, want closed", p.State())
	}

	// The connection the aborted Open dialed must not leak.
	deadline := time.Now().Add(time.Second)
	for !conn.IsClosed() {
		if time.Now().After(deadline) {
			t.Fatal("connection dialed during aborted Open was not closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoolAcquireBeforeOpen(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 0

	p := New(mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, ErrNotOpen) {
		t.Errorf("Acquire before Open error = %v, want ErrNotOpen", err)
	}
}

func TestPoolAcquireRelease(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 3
	cfg.HealthCheckInterval = 0 // disable for this test

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	// Acquire a connection
	conn1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if conn1 == nil {
		t.Fatal("Expected non-nil connection")
	}

	stats := p.Stats()
	if stats.NumOpen != 1 {
		t.Errorf("Expected 1 open, got %d", stats.NumOpen)
	}
	if stats.NumIdle != 0 {
		t.Errorf("Expected 0 idle, got %d", stats.NumIdle)
	}
	if stats.NumInUse != 1 {
		t.Errorf("Expected 1 in use, got %d", stats.NumInUse)
	}

	// Release the connection
	p.Release(conn1)

	stats = p.Stats()
	if stats.NumOpen != 1 {
		t.Errorf("Expected 1 open after release, got %d", stats.NumOpen)
	}
	if stats.NumIdle != 1 {
		t.Errorf("Expected 1 idle after release, got %d", stats.NumIdle)
	}
	if stats.NumInUse != 0 {
		t.Errorf("Expected 0 in use after release, got %d", stats.NumInUse)
	}

	// Acquire again - should get same connection
	conn2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}
	if conn2 != conn1 {
		t.Error("Expected to get same connection from pool")
	}
}

func TestPoolMaxSize(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	// Acquire both slots; the first comes from the Open seed.
	conn1, _ := p.Acquire(context.Background())
	conn2, _ := p.Acquire(context.Background())

	if counter != 2 {
		t.Errorf("Expected 2 connections created, got %d", counter)
	}

	// Third acquire should time out waiting, not create a third.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Acquire(ctx)
	if err == nil {
		t.Error("Expected timeout error, got nil")
	}
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Expected ErrPoolExhausted, got %v", err)
	}

	// Release one and try again
	p.Release(conn1)

	conn3, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Third acquire after release failed: %v", err)
	}
	if conn3 != conn1 {
		t.Error("Expected to get released connection")
	}

	p.Release(conn2)
	p.Release(conn3)
}

func TestPoolAcquireTimeoutConfig(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 1
	cfg.AcquireTimeout = 50 * time.Millisecond
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	conn, _ := p.Acquire(context.Background())

	// The configured timeout applies when the context has no deadline.
	_, err := p.Acquire(context.Background())
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Expected ErrPoolExhausted, got %v", err)
	}

	p.Release(conn)
}

func TestPoolFactoryError(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.HealthCheckInterval = 0

	// One successful creation for Open, failures afterwards.
	p := openPool(t, flakyFactory(&counter, 1), cfg)
	defer p.Close(context.Background())

	// Take the seeded connection so the next acquire must create.
	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	_, err = p.Acquire(context.Background())
	if err == nil {
		t.Error("Expected error from factory, got nil")
	}

	stats := p.Stats()
	if stats.NumOpen != 1 {
		t.Errorf("Expected 1 open after failed create, got %d", stats.NumOpen)
	}
	if stats.AcquireFailed != 1 {
		t.Errorf("Expected 1 acquire failure, got %d", stats.AcquireFailed)
	}

	p.Release(conn)
}

func TestPoolDrain(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 3
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)

	conn1, _ := p.Acquire(context.Background())
	conn2, _ := p.Acquire(context.Background())

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- p.Drain(context.Background())
	}()

	// Drain must wait while connections are in use.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-drainDone:
		t.Fatal("Drain completed with connections still in use")
	default:
	}
	if p.State() != StateDraining {
		t.Errorf("state = %v, want draining", p.State())
	}

	// New acquisitions are rejected while draining.
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Acquire while draining error = %v, want ErrPoolClosed", err)
	}

	p.Release(conn1)
	p.Release(conn2)

	select {
	case err := <-drainDone:
		if err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Drain did not complete after releases")
	}

	// Drain keeps the idle set open; Clear destroys it.
	stats := p.Stats()
	if stats.NumIdle != 2 {
		t.Errorf("NumIdle after drain = %d, want 2", stats.NumIdle)
	}
	if conn1.(*mockConn).IsClosed() {
		t.Error("drained connection should stay open until Clear")
	}

	if err := p.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if !conn1.(*mockConn).IsClosed() {
		t.Error("conn1 should be closed after Clear")
	}
	if !conn2.(*mockConn).IsClosed() {
		t.Error("conn2 should be closed after Clear")
	}
	if got := p.Stats().NumOpen; got != 0 {
		t.Errorf("NumOpen after Clear = %d, want 0", got)
	}
}

func TestPoolDrainContext(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)

	conn, _ := p.Acquire(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Drain(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain error = %v, want context.DeadlineExceeded", err)
	}

	// A timed-out drain leaves the pool draining, not reopened.
	if p.State() != StateDraining {
		t.Errorf("state = %v, want draining", p.State())
	}

	p.Release(conn)
	if err := p.Drain(context.Background()); err != nil {
		t.Errorf("second Drain failed: %v", err)
	}
	p.Clear()
}

func TestPoolClearWithoutDrain(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)

	conn, _ := p.Acquire(context.Background())

	if err := p.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if p.State() != StateClosed {
		t.Errorf("state = %v, want closed", p.State())
	}

	// The in-use connection is closed when it comes back.
	p.Release(conn)
	time.Sleep(10 * time.Millisecond)
	if !conn.(*mockConn).IsClosed() {
		t.Error("connection released after Clear should be closed")
	}
	if got := p.Stats().NumOpen; got != 0 {
		t.Errorf("NumOpen = %d, want 0", got)
	}

	if err := p.Clear(); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("second Clear error = %v, want ErrPoolClosed", err)
	}
}

func TestPoolClose(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 3
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)

	// Acquire and release some connections
	conn1, _ := p.Acquire(context.Background())
	conn2, _ := p.Acquire(context.Background())
	p.Release(conn1)
	p.Release(conn2)

	// Close the pool
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Wait a bit for async closes
	time.Sleep(10 * time.Millisecond)

	// Verify connections are closed
	if !conn1.(*mockConn).IsClosed() {
		t.Error("conn1 should be closed")
	}
	if !conn2.(*mockConn).IsClosed() {
		t.Error("conn2 should be closed")
	}

	// Acquire after close should fail
	_, err := p.Acquire(context.Background())
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}

	// Double close should return error
	if err := p.Close(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed on double close, got %v", err)
	}
}

func TestPoolDiscard(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	conn, _ := p.Acquire(context.Background())
	stats := p.Stats()
	if stats.NumOpen != 1 {
		t.Errorf("Expected 1 open, got %d", stats.NumOpen)
	}

	// Discard the connection
	p.Discard(conn)

	stats = p.Stats()
	if stats.NumOpen != 0 {
		t.Errorf("Expected 0 open after discard, got %d", stats.NumOpen)
	}
	if !conn.(*mockConn).IsClosed() {
		t.Error("Discarded connection should be closed")
	}
}

func TestPoolIdleTimeout(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.MaxIdleTime = 50 * time.Millisecond
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	conn, _ := p.Acquire(context.Background())
	p.Release(conn)

	// Wait for idle timeout
	time.Sleep(100 * time.Millisecond)

	// Acquire should create new connection (old one is stale)
	conn2, _ := p.Acquire(context.Background())
	if conn2 == conn {
		t.Error("Should get new connection after idle timeout")
	}

	// Old connection should be closed
	time.Sleep(10 * time.Millisecond)
	if !conn.(*mockConn).IsClosed() {
		t.Error("Stale connection should be closed")
	}

	p.Release(conn2)
}

func TestPoolHealthCheckOnAcquire(t *testing.T) {
	var counter int32
	healthyConns := make(map[*mockConn]bool)
	var mu sync.Mutex

	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.HealthCheckInterval = 0 // disable background check, we'll check on acquire
	cfg.HealthCheck = func(conn Connection) bool {
		mc := conn.(*mockConn)
		mu.Lock()
		defer mu.Unlock()
		healthy, exists := healthyConns[mc]
		if !exists {
			return true // default to healthy
		}
		return healthy
	}

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	conn, _ := p.Acquire(context.Background())
	mc := conn.(*mockConn)

	// Mark as unhealthy
	mu.Lock()
	healthyConns[mc] = false
	mu.Unlock()

	p.Release(conn)

	// Acquire should skip unhealthy connection
	conn2, _ := p.Acquire(context.Background())
	if conn2 == conn {
		t.Error("Should not get unhealthy connection")
	}

	// Old connection should be closed
	time.Sleep(10 * time.Millisecond)
	if !mc.IsClosed() {
		t.Error("Unhealthy connection should be closed")
	}

	p.Release(conn2)
}

func TestPoolConcurrentAcquireRelease(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 5
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	var wg sync.WaitGroup
	var inUse, peak int32
	numWorkers := 20
	opsPerWorker := 10

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerWorker; j++ {
				conn, err := p.Acquire(context.Background())
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}

				cur := atomic.AddInt32(&inUse, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
						break
					}
				}

				// Simulate some work
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inUse, -1)
				p.Release(conn)
			}
		}()
	}

	wg.Wait()

	// The pool bound holds across every interleaving.
	if got := atomic.LoadInt32(&peak); got > int32(cfg.MaxSize) {
		t.Errorf("peak concurrent connections = %d, exceeds max %d", got, cfg.MaxSize)
	}
	if counter > int32(cfg.MaxSize) {
		t.Errorf("connections created = %d, exceeds max %d", counter, cfg.MaxSize)
	}

	stats := p.Stats()
	if stats.AcquireSuccess != uint64(numWorkers*opsPerWorker) {
		t.Errorf("Expected %d successful acquires, got %d",
			numWorkers*opsPerWorker, stats.AcquireSuccess)
	}
	if stats.AcquireFailed != 0 {
		t.Errorf("Expected 0 failed acquires, got %d", stats.AcquireFailed)
	}
}

func TestPoolContextCancellation(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 1
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	// Acquire the only connection
	conn, _ := p.Acquire(context.Background())

	// Cancel the context while waiting
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	var acquireErr error
	go func() {
		defer wg.Done()
		_, acquireErr = p.Acquire(ctx)
	}()

	// Give the goroutine time to start waiting
	time.Sleep(20 * time.Millisecond)
	cancel()

	wg.Wait()

	if acquireErr == nil {
		t.Error("Expected error on cancelled context")
	}
	if !errors.Is(acquireErr, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", acquireErr)
	}

	p.Release(conn)
}

func TestPoolStats(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.MaxSize = 5
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	stats := p.Stats()
	if stats.State != StateReady {
		t.Errorf("Expected state ready, got %v", stats.State)
	}
	if stats.MaxSize != 5 {
		t.Errorf("Expected MaxSize 5, got %d", stats.MaxSize)
	}
	if stats.NumOpen != 1 {
		t.Errorf("Expected 1 open from Open seed, got %d", stats.NumOpen)
	}

	conn1, _ := p.Acquire(context.Background())
	conn2, _ := p.Acquire(context.Background())
	p.Release(conn1)

	stats = p.Stats()
	if stats.NumOpen != 2 {
		t.Errorf("Expected 2 open, got %d", stats.NumOpen)
	}
	if stats.NumIdle != 1 {
		t.Errorf("Expected 1 idle, got %d", stats.NumIdle)
	}
	if stats.NumInUse != 1 {
		t.Errorf("Expected 1 in use, got %d", stats.NumInUse)
	}
	if stats.AcquireCount != 2 {
		t.Errorf("Expected 2 acquire count, got %d", stats.AcquireCount)
	}
	if stats.AcquireSuccess != 2 {
		t.Errorf("Expected 2 acquire success, got %d", stats.AcquireSuccess)
	}
	if stats.ReleaseCount != 1 {
		t.Errorf("Expected 1 release count, got %d", stats.ReleaseCount)
	}

	p.Release(conn2)
}

func TestPoolReleaseNil(t *testing.T) {
	var counter int32
	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 0

	p := openPool(t, mockFactory(&counter), cfg)
	defer p.Close(context.Background())

	// Should not panic
	p.Release(nil)
	p.Discard(nil)
}

func TestPoolBackgroundHealthCheck(t *testing.T) {
	var counter int32
	var healthCheckCount int32
	healthyConns := sync.Map{}

	cfg := DefaultConfig()
	cfg.MaxSize = 3
	cfg.MaxIdleTime = 1 * time.Hour // don't expire by time
	cfg.HealthCheckInterval = 50 * time.Millisecond
	cfg.HealthCheck = func(conn Connection) bool {
		atomic.AddInt32(&healthCheckCount, 1)
		mc := conn.(*mockConn)
		healthy, exists := healthyConns.Load(mc)
		if !exists {
			return true
		}
		return healthy.(bool)
	}

	p := openPool(t, mockFactory(&counter), cfg)

	// Acquire and release connections
	conn1, _ := p.Acquire(context.Background())
	conn2, _ := p.Acquire(context.Background())
	p.Release(conn1)
	p.Release(conn2)

	// Mark one as unhealthy
	healthyConns.Store(conn1.(*mockConn), false)

	// Wait for health check
	time.Sleep(100 * time.Millisecond)

	p.Close(context.Background())

	// Check that health check ran
	if atomic.LoadInt32(&healthCheckCount) == 0 {
		t.Error("Health check should have run")
	}

	// Unhealthy connection should be closed
	if !conn1.(*mockConn).IsClosed() {
		t.Error("Unhealthy connection should be closed after health check")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxSize != 30 {
		t.Errorf("Expected default MaxSize 30, got %d", cfg.MaxSize)
	}
	if cfg.MaxIdleTime != 10*time.Minute {
		t.Errorf("Expected default MaxIdleTime 10m, got %v", cfg.MaxIdleTime)
	}
	if cfg.AcquireTimeout != 0 {
		t.Errorf("Expected default AcquireTimeout 0, got %v", cfg.AcquireTimeout)
	}
	if cfg.HealthCheckInterval != 1*time.Minute {
		t.Errorf("Expected default HealthCheckInterval 1m, got %v", cfg.HealthCheckInterval)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUninitialized, "uninitialized"},
		{StateInitializing, "initializing"},
		{StateReady, "ready"},
		{StateDraining, "draining"},
		{StateClosed, "closed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestUpdateMetrics(t *testing.T) {
	stats := Stats{
		MaxSize:  10,
		NumOpen:  5,
		NumIdle:  3,
		NumInUse: 2,
	}

	// Should not panic
	UpdateMetrics(stats)

	// Verify metrics were set
	if PoolConnectionsTotal.Value() != 10 {
		t.Errorf("Expected PoolConnectionsTotal 10, got %d", PoolConnectionsTotal.Value())
	}
	if PoolConnectionsOpen.Value() != 5 {
		t.Errorf("Expected PoolConnectionsOpen 5, got %d", PoolConnectionsOpen.Value())
	}
	if PoolConnectionsIdle.Value() != 3 {
		t.Errorf("Expected PoolConnectionsIdle 3, got %d", PoolConnectionsIdle.Value())
	}
	if PoolConnectionsInUse.Value() != 2 {
		t.Errorf("Expected PoolConnectionsInUse 2, got %d", PoolConnectionsInUse.Value())
	}
}
