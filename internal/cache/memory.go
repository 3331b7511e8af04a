package cache

import (
	"context"
	"sync"
	"time"

	"binarymlm/internal/metrics"
	"binarymlm/internal/models"
)

type memoryEntry struct {
	wallet    models.Wallet
	expiresAt time.Time
}

// Memory is a process-local WalletCache.
type Memory struct {
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Collectors

	mu      sync.Mutex
	entries map[uint]memoryEntry
	gens    *generations
}

func NewMemory(ttl time.Duration, m *metrics.Collectors) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		metrics: m,
		entries: make(map[uint]memoryEntry),
		gens:    newGenerations(),
	}
}

func (c *Memory) Fetch(ctx context.Context, userID uint, load Loader) (*models.Wallet, error) {
	c.mu.Lock()
	if e, ok := c.entries[userID]; ok {
		if c.now().Before(e.expiresAt) {
			c.mu.Unlock()
			c.metrics.ObserveCacheLookup(true)
			w := e.wallet
			return &w, nil
		}
		delete(c.entries, userID)
	}
	c.mu.Unlock()
	c.metrics.ObserveCacheLookup(false)

	gen := c.gens.current(userID)
	w, err := load(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gens.current(userID) == gen {
		c.entries[userID] = memoryEntry{wallet: *w, expiresAt: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
	return w, nil
}

func (c *Memory) Invalidate(_ context.Context, userIDs ...uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens.bump(userIDs...)
	for _, id := range userIDs {
		delete(c.entries, id)
	}
}

func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
