package algod

import (
	"sync"
	"time"

	"github.com/algodash/nftbuy/chain"
	"github.com/lightningnetwork/lnd/clock"
)

// cache keeps confirmed transaction lookups. A confirmation is final, so the
// TTL only bounds memory, never correctness. Pending and unknown answers are
// not cached.
type cache struct {
	confirmed map[string]cacheEntry

	size  int
	ttl   time.Duration
	clock clock.Clock
	mu    sync.RWMutex
}

// newCache creates a new cache.
func newCache(size int, ttl time.Duration, clk clock.Clock) *cache {
	return &cache{
		confirmed: make(map[string]cacheEntry, size),
		size:      size,
		ttl:       ttl,
		clock:     clk,
	}
}

// getConfirmation returns the cached confirmation if valid.
func (c *cache) getConfirmation(txid string) (*chain.Confirmation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.confirmed[txid]
	if !ok {
		return nil, false
	}

	if c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}

	conf, ok := entry.value.(chain.Confirmation)
	if !ok {
		return nil, false
	}
	return &conf, true
}

// setConfirmation caches a confirmed transaction.
func (c *cache) setConfirmation(conf *chain.Confirmation) {
	if conf == nil || conf.Status != chain.StatusConfirmed {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.confirmed[conf.TxID] = cacheEntry{
		value:     *conf,
		expiresAt: now.Add(c.ttl),
	}

	// Simple LRU: remove the entry closest to expiry if over capacity.
	if len(c.confirmed) > c.size {
		var (
			oldest     string
			oldestTime time.Time
		)
		for txid, entry := range c.confirmed {
			if txid == conf.TxID {
				continue
			}
			if oldest == "" || entry.expiresAt.Before(oldestTime) {
				oldestTime = entry.expiresAt
				oldest = txid
			}
		}
		delete(c.confirmed, oldest)
	}
}

// cleanup removes expired entries from the cache.
func (c *cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for txid, entry := range c.confirmed {
		if now.After(entry.expiresAt) {
			delete(c.confirmed, txid)
		}
	}
}

// len returns the number of cached entries.
func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.confirmed)
}
