// Package rendercache memoizes rasterized object output keyed by a
// fingerprint of the state that affects rendering.
package rendercache

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dshills/asciicanvas/internal/renderer/core"
)

// DefaultCapacity is the capacity used when New is given a non-positive size.
const DefaultCapacity = 256

// Cache is an LRU cache of rasterized cells.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*list.Element
	order     *list.List // front is most recently used
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheEntry struct {
	key   string
	cells []core.Cell
}

// New creates a cache holding at most capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

// Get returns the cells stored under key and marks the entry most recently
// used. The returned slice is shared and must not be modified.
func (c *Cache) Get(key string) ([]core.Cell, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits.Add(1)
	return el.Value.(*cacheEntry).cells, true
}

// Contains reports whether key is cached without touching recency.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Set stores cells under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache) Set(key string, cells []core.Cell) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).cells = cells
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, cells: cells})
	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
		c.evictions.Add(1)
	}
}

// GetOrCompute returns the cached cells for key, calling compute and storing
// its result on a miss.
func (c *Cache) GetOrCompute(key string, compute func() []core.Cell) []core.Cell {
	if cells, ok := c.Get(key); ok {
		return cells
	}
	cells := compute()
	c.Set(key, cells)
	return cells
}

// Invalidate removes one entry. It returns false if key was not cached.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, el := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(el)
			n++
		}
	}
	return n
}

// removeElement must be called with the lock held.
func (c *Cache) removeElement(el *list.Element) {
	entry := c.order.Remove(el).(*cacheEntry)
	delete(c.entries, entry.key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the cached keys from most to least recently used.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*cacheEntry).key)
	}
	return keys
}

// Clear removes every entry. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	size := c.order.Len()
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Size:      size,
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   hitRate,
	}
}

// ResetStats resets the cache statistics counters.
func (c *Cache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Size      int     // Current number of entries
	Capacity  int     // Maximum entries allowed
	Hits      uint64  // Number of cache hits
	Misses    uint64  // Number of cache misses
	Evictions uint64  // Number of evicted entries
	HitRate   float64 // Hit rate (0.0 - 1.0)
}

// Fingerprint joins the render-relevant parts of an object's state into a
// deterministic key. Put the object id first so InvalidatePrefix can drop
// every version of one object.
func Fingerprint(parts ...any) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			sb.WriteByte('|')
		}
		switch v := p.(type) {
		case string:
			sb.WriteString(v)
		case float64:
			// Fixed precision keeps equal positions equal after float noise
			fmt.Fprintf(&sb, "%.4f", v)
		default:
			fmt.Fprint(&sb, v)
		}
	}
	return sb.String()
}

// Hash returns a short FNV-1a digest of s, for fingerprinting long content
// such as script source.
func Hash(s string) string {
	h := fnv.New64a()
	// Include length to reduce collision probability
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
	h.Write(buf[:])
	h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
