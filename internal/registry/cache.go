package registry

import (
	"container/list"
	"sync"
	"time"
)

// handleCache is an LRU cache of loaded index handles keyed by registry key.
// A cached handle is only returned while its build timestamp matches the
// current entry, so a republish naturally invalidates stale loads.
type handleCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type handleEntry struct {
	key     string
	builtAt time.Time
	value   *Handle
}

func newHandleCache(capacity int) *handleCache {
	if capacity <= 0 {
		capacity = 8
	}
	return &handleCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached handle for key if present and built at builtAt.
func (c *handleCache) Get(key string, builtAt time.Time) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*handleEntry)
	if !entry.builtAt.Equal(builtAt) {
		c.lru.Remove(elem)
		delete(c.cache, key)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.value, true
}

// Set stores the handle for key, evicting the oldest entry if at capacity.
func (c *handleCache) Set(key string, builtAt time.Time, h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*handleEntry)
		entry.builtAt = builtAt
		entry.value = h
		return
	}
	elem := c.lru.PushFront(&handleEntry{key: key, builtAt: builtAt, value: h})
	c.cache[key] = elem
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*handleEntry).key)
		}
	}
}

// Invalidate drops any cached handle for key.
func (c *handleCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.Remove(elem)
		delete(c.cache, key)
	}
}
