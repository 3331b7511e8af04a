// Package cache keeps short-lived wallet snapshots for read paths.
package cache

import (
	"context"
	"sync"

	"binarymlm/internal/models"
)

// Loader reads the authoritative wallet on a cache miss.
type Loader func(ctx context.Context) (*models.Wallet, error)

type WalletCache interface {
	Fetch(ctx context.Context, userID uint, load Loader) (*models.Wallet, error)
	Invalidate(ctx context.Context, userIDs ...uint)
}

// generations counts invalidations per user. A loaded snapshot is stored only
// if no invalidation happened while it was being read.
type generations struct {
	mu  sync.Mutex
	gen map[uint]uint64
}

func newGenerations() *generations {
	return &generations{gen: make(map[uint]uint64)}
}

func (g *generations) current(id uint) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen[id]
}

func (g *generations) bump(ids ...uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		g.gen[id]++
	}
}
