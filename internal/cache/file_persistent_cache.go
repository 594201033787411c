package cache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
)

// persistedEntry is the on-disk form of a cached tool result.
type persistedEntry struct {
	Result     toolweave.ToolResult `json:"result"`
	InsertedAt time.Time            `json:"inserted_at"`
	Expiration int64                `json:"expiration"`
}

// FilePersistentCache is a file-backed result cache. It mirrors ResultCache
// semantics but survives process restarts; every write rewrites the backing
// file, so it suits low-volume tool sets.
type FilePersistentCache struct {
	store    map[string]persistedEntry
	mutex    sync.RWMutex
	ttl      time.Duration
	filePath string
	logger   Logger
	hits     uint64
	misses   uint64
}

// NewFilePersistentCache creates a persistent cache backed by filePath,
// loading any previously saved entries.
func NewFilePersistentCache(ttl time.Duration, filePath string, logger Logger) *FilePersistentCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &FilePersistentCache{
		store:    make(map[string]persistedEntry),
		ttl:      ttl,
		filePath: filePath,
		logger:   logger,
	}
	c.loadFromFile()
	return c
}

func (c *FilePersistentCache) loadFromFile() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	file, err := os.Open(c.filePath)
	if err != nil {
		return
	}
	defer file.Close()
	decoder := json.NewDecoder(file)
	_ = decoder.Decode(&c.store)
}

// saveToFileLocked writes the store to disk. Caller must hold the lock.
func (c *FilePersistentCache) saveToFileLocked() {
	file, err := os.Create(c.filePath)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("Persistent cache save failed", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	_ = encoder.Encode(c.store)
}

// Get retrieves a cached result for the given invocation.
func (c *FilePersistentCache) Get(ctx context.Context, toolName string, input map[string]interface{}) (*toolweave.ToolResult, error) {
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
	if time.Now().UnixNano() > entry.Expiration {
		if c.logger != nil {
			c.logger.Info("Persistent cache entry expired", map[string]interface{}{"key": key})
		}
		delete(c.store, key)
		c.misses++
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache entry expired", nil))
	}

	c.hits++
	result := entry.Result
	return &result, nil
}

// Put stores a tool result and persists the store to disk.
func (c *FilePersistentCache) Put(ctx context.Context, toolName string, input map[string]interface{}, result *toolweave.ToolResult) error {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return err
	}
	if result == nil {
		return errbuilder.GenericErr("cannot cache a nil result", nil)
	}

	key := CanonicalKey(toolName, input)

	c.mutex.Lock()
	c.store[key] = persistedEntry{
		Result:     *result,
		InsertedAt: time.Now(),
		Expiration: time.Now().Add(c.ttl).UnixNano(),
	}
	c.saveToFileLocked()
	c.mutex.Unlock()

	if c.logger != nil {
		c.logger.Info("Persistent cache entry set", map[string]interface{}{"key": key})
	}
	return nil
}

// Clear removes all entries and rewrites the backing file.
func (c *FilePersistentCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.store = make(map[string]persistedEntry)
	c.saveToFileLocked()
}

// Stats returns a snapshot of the cache state.
func (c *FilePersistentCache) Stats() toolweave.CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := toolweave.CacheStats{
		Size:   len(c.store),
		Hits:   c.hits,
		Misses: c.misses,
	}
	for _, entry := range c.store {
		if stats.OldestInsertedAt.IsZero() || entry.InsertedAt.Before(stats.OldestInsertedAt) {
			stats.OldestInsertedAt = entry.InsertedAt
		}
	}
	return stats
}
