package web

import (
	"context"

	"github.com/go-i2p/redispool/lib/pool"
)

// StatsProvider is the view of a pooled client the status server needs.
// *client.Client satisfies it; tests substitute a fake.
type StatsProvider interface {
	// Name returns the pool identifier.
	Name() string
	// Stats returns a snapshot of the pool's statistics.
	Stats() pool.Stats
	// Ping checks that the backing store answers through a pooled
	// connection.
	Ping(ctx context.Context) error
}
