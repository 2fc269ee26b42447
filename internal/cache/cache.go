package cache

import (
	"sync"
	"time"

	"paygate/internal/models"
)

// AddressCache maps a lower-cased receiving address to the deposit record
// expected at that address. Callers must normalize keys before use; the cache
// performs no normalization of its own. Entries expire after a fixed TTL and
// an expired entry is indistinguishable from one that was never inserted.
type AddressCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	stop    chan struct{}
	once    sync.Once
	now     func() time.Time
}

type entry struct {
	record    models.DepositRecord
	expiresAt time.Time
}

// New creates a cache with the given TTL and starts a background sweep that
// drops expired entries once per TTL interval.
func New(ttl time.Duration) *AddressCache {
	c := &AddressCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go c.janitor()
	return c
}

// Put inserts a record under the given key. Records are never updated in
// place; a second Put for the same key replaces the entry wholesale.
func (c *AddressCache) Put(address string, record models.DepositRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[address] = entry{record: record, expiresAt: c.now().Add(c.ttl)}
}

// Get returns the live record for the key, if any. Expired entries report
// absent even if the sweep has not removed them yet.
func (c *AddressCache) Get(address string) (models.DepositRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[address]
	if !ok || c.now().After(e.expiresAt) {
		return models.DepositRecord{}, false
	}
	return e.record, true
}

// Len reports the number of stored entries, including not-yet-swept expired ones.
func (c *AddressCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop terminates the background sweep.
func (c *AddressCache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *AddressCache) janitor() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *AddressCache) sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
