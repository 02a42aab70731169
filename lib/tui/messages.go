package tui

import (
	"time"

	"github.com/go-i2p/redispool/lib/pool"
)

// refreshMsg carries freshly polled pool statistics.
type refreshMsg struct {
	stats   pool.Stats
	latency time.Duration
	pingErr error
}

// tickMsg triggers a data refresh.
type tickMsg time.Time
