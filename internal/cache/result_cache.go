// Package cache implements the tool-result caches used by the workflow
// runtime. Entries are keyed by tool name plus a canonical hash of the
// input arguments, so equivalent inputs hit regardless of map ordering.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
)

const (
	// DefaultTTL is how long a cached tool result stays valid.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries bounds the cache size; the oldest entry is evicted
	// when the bound is reached.
	DefaultMaxEntries = 100

	// sweepInterval is how often the background sweeper removes expired
	// entries.
	sweepInterval = 60 * time.Second
)

type cacheEntry struct {
	result     toolweave.ToolResult
	insertedAt time.Time
	expiration int64
}

// ResultCache is a thread-safe in-memory cache for tool results with TTL
// expiry, a capacity bound, and hit/miss accounting.
type ResultCache struct {
	store      map[string]cacheEntry
	mutex      sync.RWMutex
	ttl        time.Duration
	maxEntries int
	hits       uint64
	misses     uint64
	done       chan struct{}
	closeOnce  sync.Once
}

// ResultCacheOption configures a ResultCache.
type ResultCacheOption func(*ResultCache)

// WithTTL overrides the default entry TTL.
func WithTTL(ttl time.Duration) ResultCacheOption {
	return func(c *ResultCache) {
		c.ttl = ttl
	}
}

// WithMaxEntries overrides the default capacity bound.
func WithMaxEntries(max int) ResultCacheOption {
	return func(c *ResultCache) {
		c.maxEntries = max
	}
}

// NewResultCache creates a new result cache and starts its background
// sweeper. Call Stop when the cache is no longer needed.
func NewResultCache(options ...ResultCacheOption) *ResultCache {
	c := &ResultCache{
		store:      make(map[string]cacheEntry),
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		done:       make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	go c.sweepLoop(sweepInterval)
	return c
}

// CanonicalKey builds the cache key for a tool invocation: the tool name
// joined with a SHA-256 digest of the JSON-encoded input. JSON encoding of a
// Go map sorts its keys, so argument order never changes the key. Inputs that
// cannot be encoded fall back to their formatted representation.
func CanonicalKey(toolName string, input map[string]interface{}) string {
	encoded, err := json.Marshal(input)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", input))
	}
	sum := sha256.Sum256(encoded)
	return toolName + ":" + hex.EncodeToString(sum[:])
}

// Get retrieves a cached result for the given invocation. A miss, an expired
// entry, and a cancelled context all return an error.
func (c *ResultCache) Get(ctx context.Context, toolName string, input map[string]interface{}) (*toolweave.ToolResult, error) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	key := CanonicalKey(toolName, input)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, found := c.store[key]
	if !found {
		c.misses++
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache entry not found", nil))
	}

	if time.Now().UnixNano() > entry.expiration {
		// Expired entries count as misses (lazy cleanup)
		delete(c.store, key)
		c.misses++
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache entry expired", nil))
	}

	c.hits++
	result := entry.result
	return &result, nil
}

// Put stores a tool result, evicting the oldest entry when the cache is full.
func (c *ResultCache) Put(ctx context.Context, toolName string, input map[string]interface{}, result *toolweave.ToolResult) error {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return err
	}
	if result == nil {
		return errbuilder.GenericErr("cannot cache a nil result", nil)
	}

	key := CanonicalKey(toolName, input)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.store[key] = cacheEntry{
		result:     *result,
		insertedAt: time.Now(),
		expiration: time.Now().Add(c.ttl).UnixNano(),
	}
	return nil
}

// evictOldestLocked removes the entry with the earliest insertion time.
// Caller must hold the write lock.
func (c *ResultCache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.store {
		if oldestKey == "" || entry.insertedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.insertedAt
		}
	}
	if oldestKey != "" {
		log.Printf("Cache full, evicting oldest entry: %s", oldestKey)
		delete(c.store, oldestKey)
	}
}

// Clear removes all entries. Hit/miss counters are preserved.
func (c *ResultCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.store = make(map[string]cacheEntry)
}

// Stats returns a snapshot of the cache state.
func (c *ResultCache) Stats() toolweave.CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := toolweave.CacheStats{
		Size:   len(c.store),
		Hits:   c.hits,
		Misses: c.misses,
	}
	for _, entry := range c.store {
		if stats.OldestInsertedAt.IsZero() || entry.insertedAt.Before(stats.OldestInsertedAt) {
			stats.OldestInsertedAt = entry.insertedAt
		}
	}
	return stats
}

// Stop terminates the background sweeper. Safe to call more than once.
func (c *ResultCache) Stop() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// sweepLoop periodically removes expired entries.
func (c *ResultCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := time.Now().UnixNano()
			for key, entry := range c.store {
				if now > entry.expiration {
					delete(c.store, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}
