package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
)

// Key identifies one cached scan result.
type Key struct {
	Scope string
	ID    uuid.UUID
	From  uint32
	To    uint32
}

// LRU is a size-bounded LRU of segment scan results.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   Key
	value []backend.Segment
	size  int64
}

// NewLRU creates a new LRU with the given capacity in bytes.
func NewLRU(capacity int64) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
	}
}

func sizeOf(segs []backend.Segment) int64 {
	// Account a small fixed cost per row so empty segments are not free.
	var n int64
	for _, s := range segs {
		n += int64(len(s.Data)) + 8
	}
	return n
}

// Get returns a cached scan result.
func (c *LRU) Get(key Key) ([]backend.Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches a scan result. Callers must treat segs as immutable afterwards.
func (c *LRU) Set(key Key, segs []backend.Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	itemSize := sizeOf(segs)

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry)
		c.size += itemSize - e.size
		e.value = segs
		e.size = itemSize
		c.evict()
		return
	}

	// If item is larger than capacity, don't cache
	if itemSize > c.capacity {
		return
	}

	for c.size+itemSize > c.capacity {
		ent := c.evictList.Back()
		if ent == nil {
			break
		}
		c.removeElement(ent)
	}

	element := c.evictList.PushFront(&entry{key: key, value: segs, size: itemSize})
	c.items[key] = element
	c.size += itemSize
}

// Invalidate removes entries matching the predicate.
func (c *LRU) Invalidate(predicate func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for key, element := range c.items {
		if predicate(key) {
			toRemove = append(toRemove, element)
		}
	}

	for _, e := range toRemove {
		c.removeElement(e)
	}
}

func (c *LRU) evict() {
	for c.size > c.capacity {
		element := c.evictList.Back()
		if element == nil {
			break
		}
		c.removeElement(element)
	}
}

func (c *LRU) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry)
	delete(c.items, kv.key)
	c.size -= kv.size
}

// Stats returns hit and miss counters.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the current size of the cache in bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached scan results.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
