package data

import (
	"os"
	"sync"
	"time"

	"market-clearing/internal/backtest"

	"github.com/google/uuid"
)

const DefaultResultTTL = time.Hour

type cacheEntry struct {
	result    *backtest.Result
	expiresAt time.Time
}

// ResultCache keeps finished clearing runs in memory so their ledgers can be
// fetched by ID after the run request has returned.
type ResultCache struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

var globalResults *ResultCache
var resultsOnce sync.Once

// GetResultCache returns the process-wide cache. RESULT_CACHE_TTL overrides
// the default one hour lifetime.
func GetResultCache() *ResultCache {
	resultsOnce.Do(func() {
		ttl := DefaultResultTTL
		if ttlStr := os.Getenv("RESULT_CACHE_TTL"); ttlStr != "" {
			if parsed, err := time.ParseDuration(ttlStr); err == nil {
				ttl = parsed
			}
		}
		globalResults = NewResultCache(ttl)
		go globalResults.cleanup(5 * time.Minute)
	})
	return globalResults
}

// NewResultCache returns a cache without a background cleanup; expired
// entries are still never returned.
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &ResultCache{
		store: make(map[string]*cacheEntry),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
}

// Put stores a result and returns its new ID.
func (c *ResultCache) Put(res *backtest.Result) string {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[id] = &cacheEntry{result: res, expiresAt: c.now().Add(c.ttl)}
	return id
}

func (c *ResultCache) Get(id string) (*backtest.Result, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[id]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*cacheEntry)
}

// Close stops the cleanup goroutine, if any.
func (c *ResultCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *ResultCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, entry := range c.store {
		if now.After(entry.expiresAt) {
			delete(c.store, id)
		}
	}
}

func (c *ResultCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}
