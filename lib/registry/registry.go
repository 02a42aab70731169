// Package registry tracks named clients so independent parts of a program
// share one pool per store identifier instead of each dialing their own.
// A Registry is injectable for tests and embedders; most programs use the
// package-level Default registry through GetOrCreatePool.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/go-i2p/redispool/lib/client"
	apperrors "github.com/go-i2p/redispool/lib/errors"
	"github.com/go-i2p/redispool/lib/metrics"
)

// ErrShutdown is returned by operations on a registry that has been
// shut down.
var ErrShutdown = apperrors.ErrRegistryShutdown

// entry tracks one registered client. ready is closed once the client's
// initialization settles; err is set before the close when it failed.
type entry struct {
	client *client.Client
	ready  chan struct{}
	err    error
}

// Registry maps identifiers to clients, guaranteeing at most one client
// (and one pool initialization) per identifier no matter how many
// goroutines ask for it concurrently.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	shutdown bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// NewID returns a unique generated pool identifier.
func NewID() string {
	return "pool-" + ulid.Make().String()
}

// GetOrCreate returns the client registered under id, creating and opening
// it on first use. Concurrent calls with the same id observe exactly one
// initialization; late callers block until the first one settles and then
// share its client or its failure. Options are applied only by the call
// that creates the client. A failed initialization deregisters the id so
// a later call may retry. An empty id registers under a generated
// identifier, available afterwards through the client's Name.
func (r *Registry) GetOrCreate(ctx context.Context, id string, opts ...client.Option) (*client.Client, error) {
	if id == "" {
		id = NewID()
	}

	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return nil, ErrShutdown
	}
	if e, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return await(ctx, e)
	}

	e := &entry{
		client: client.New(id, opts...),
		ready:  make(chan struct{}),
	}
	r.entries[id] = e
	metrics.PoolsActive.Inc()
	r.mu.Unlock()

	if err := e.client.Open(ctx); err != nil {
		r.mu.Lock()
		// Shutdown or Remove may have deregistered the entry already.
		if cur, ok := r.entries[id]; ok && cur == e {
			delete(r.entries, id)
			metrics.PoolsActive.Dec()
		}
		r.mu.Unlock()

		// Stop the failed client's pool so nothing lingers; a retry
		// builds a fresh client.
		if cerr := e.client.Shutdown(context.Background()); cerr != nil && !apperrors.IsPoolClosed(cerr) {
			log.WithError(cerr).WithField("id", id).Warn("failed to dispose client after failed initialization")
		}

		e.err = fmt.Errorf("registry: open %s: %w", id, err)
		close(e.ready)
		log.WithError(err).WithField("id", id).Error("pool initialization failed")
		return nil, e.err
	}

	close(e.ready)
	log.WithField("id", id).Debug("registered pool")
	return e.client, nil
}

// await blocks until the entry's initialization settles or the context
// is done.
func await(ctx context.Context, e *entry) (*client.Client, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.client, nil
}

// Get returns the client registered under id, or false when the id is
// unknown or its initialization has not (yet) succeeded.
func (r *Registry) Get(id string) (*client.Client, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.ready:
	default:
		return nil, false
	}
	if e.err != nil {
		return nil, false
	}
	return e.client, true
}

// Remove deregisters id without shutting its pool down and reports
// whether it was present. The caller owns the client afterwards.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	metrics.PoolsActive.Dec()
	log.WithField("id", id).Debug("deregistered pool")
	return true
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown drains and clears every registered pool and empties the
// registry. Pools a caller already shut down directly are skipped, not
// errors. The registry rejects further use afterwards; build a new one
// instead of reviving it.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return ErrShutdown
	}
	r.shutdown = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	metrics.PoolsActive.Add(-int64(len(entries)))
	r.mu.Unlock()

	log.WithField("pools", len(entries)).Debug("shutting down registry")

	var errs []error
	for id, e := range entries {
		err := e.client.Shutdown(ctx)
		if err != nil && !apperrors.IsPoolClosed(err) {
			errs = append(errs, fmt.Errorf("registry: shutdown %s: %w", id, err))
		}
	}
	return apperrors.Join(errs...)
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by GetOrCreatePool.
func Default() *Registry {
	return defaultRegistry
}

// GetOrCreatePool returns the client registered under id in the default
// registry, creating and opening it on first use.
func GetOrCreatePool(ctx context.Context, id string, opts ...client.Option) (*client.Client, error) {
	return defaultRegistry.GetOrCreate(ctx, id, opts...)
}
