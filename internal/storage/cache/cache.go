// Package cache provides the bounded, shared cache of decoded pages.
package cache

import (
	"sync"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/page"
)

// Loader reads and decodes a page on a cache miss.
type Loader func(pos codec.Position) (*page.Page, error)

type entry struct {
	pos     codec.Position
	page    *page.Page
	size    int
	pins    int
	invalid bool // invalidated while pinned; bytes freed on last release
}

// Stats holds cache counters.
type Stats struct {
	Policy    storage.EvictionPolicy
	Capacity  uint64
	Bytes     uint64
	Entries   int
	Pinned    int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// Uncached counts loaded pages handed out without being cached
	// because no unpinned space could be reclaimed for them.
	Uncached uint64
}

// PageCache maps positions to decoded pages within a byte budget.
//
// All bookkeeping runs under one mutex; page loads run outside it. Pinned
// entries are never evicted, and an entry invalidated while pinned keeps
// its bytes charged until its last Release. The resident total never
// exceeds the capacity: a page that cannot fit is returned uncached.
type PageCache struct {
	mu      sync.Mutex
	cfg     storage.CacheConfig
	entries map[codec.Position]*entry
	policy  Policy
	loader  Loader
	used    uint64
	pinned  int
	stats   Stats
}

// New creates a page cache. loader is called on misses.
func New(cfg storage.CacheConfig, loader Loader) (*PageCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, storage.InvalidArgumentf("cache loader is nil")
	}
	c := &PageCache{
		cfg:     cfg,
		entries: make(map[codec.Position]*entry),
		loader:  loader,
	}
	c.policy = newPolicy(cfg)
	return c, nil
}

func newPolicy(cfg storage.CacheConfig) Policy {
	if cfg.Policy == storage.PolicyLRU {
		return NewLRU()
	}
	return NewTwoQ(cfg.CapacityBytes, cfg.ProtectedRatio)
}

// Handle is a pinned reference to a page. The page stays resident until
// Release.
type Handle struct {
	cache *PageCache
	page  *page.Page
	e     *entry
}

// Page returns the referenced page.
func (h *Handle) Page() *page.Page { return h.page }

// Release unpins the page. It is safe to call more than once.
func (h *Handle) Release() {
	if h == nil || h.e == nil {
		return
	}
	h.cache.unpin(h.e)
	h.e = nil
}

// Acquire returns a pinned handle for the page at pos, loading it on a miss.
func (c *PageCache) Acquire(pos codec.Position) (*Handle, error) {
	c.mu.Lock()
	if e, ok := c.entries[pos]; ok {
		h := c.pinLocked(e, true)
		c.stats.Hits++
		c.mu.Unlock()
		return h, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	p, err := c.loader(pos)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[pos]; ok {
		// loaded concurrently by another reader
		return c.pinLocked(e, true), nil
	}
	e := c.insertLocked(pos, p)
	if e == nil {
		return &Handle{cache: c, page: p}, nil
	}
	return c.pinLocked(e, false), nil
}

// Get returns the page at pos without keeping it pinned.
func (c *PageCache) Get(pos codec.Position) (*page.Page, error) {
	h, err := c.Acquire(pos)
	if err != nil {
		return nil, err
	}
	defer h.Release()
	return h.Page(), nil
}

// Put inserts an already decoded page, typically one just written. It
// reports whether the page is resident afterwards.
func (c *PageCache) Put(pos codec.Position, p *page.Page) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[pos]; ok {
		return true
	}
	return c.insertLocked(pos, p) != nil
}

// Invalidate drops the page at pos. A pinned page is detached at once and
// its bytes are reclaimed when the last handle is released.
func (c *PageCache) Invalidate(pos codec.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[pos]
	if !ok {
		return
	}
	delete(c.entries, pos)
	c.policy.Remove(pos)
	if e.pins > 0 {
		e.invalid = true
		return
	}
	c.used -= uint64(e.size)
}

// Contains reports whether pos is resident.
func (c *PageCache) Contains(pos codec.Position) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[pos]
	return ok
}

// PinCount returns the number of open handles on pos.
func (c *PageCache) PinCount(pos codec.Position) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[pos]; ok {
		return e.pins
	}
	return 0
}

// Len returns the number of resident pages.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size returns the bytes charged to the budget.
func (c *PageCache) Size() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Capacity returns the byte budget.
func (c *PageCache) Capacity() uint64 { return c.cfg.CapacityBytes }

// Stats returns a snapshot of the cache counters.
func (c *PageCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Policy = c.cfg.Policy
	s.Capacity = c.cfg.CapacityBytes
	s.Bytes = c.used
	s.Entries = len(c.entries)
	s.Pinned = c.pinned
	return s
}

// Clear drops every unpinned page.
func (c *PageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pos, e := range c.entries {
		if e.pins > 0 {
			continue
		}
		delete(c.entries, pos)
		c.policy.Remove(pos)
		c.used -= uint64(e.size)
	}
}

// pinLocked pins e. touch is false for the access that just inserted it,
// so that a load counts as a single access.
func (c *PageCache) pinLocked(e *entry, touch bool) *Handle {
	if e.pins == 0 {
		c.pinned++
	}
	e.pins++
	if touch {
		c.policy.Access(e.pos)
	}
	return &Handle{cache: c, page: e.page, e: e}
}

func (c *PageCache) unpin(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.pins--
	if e.pins > 0 {
		return
	}
	c.pinned--
	if e.invalid {
		c.used -= uint64(e.size)
	}
}

// insertLocked makes room and inserts p. It returns nil when p cannot fit.
func (c *PageCache) insertLocked(pos codec.Position, p *page.Page) *entry {
	size := uint64(p.Memory())
	if size > c.cfg.CapacityBytes {
		c.stats.Uncached++
		return nil
	}
	skip := func(v codec.Position) bool { return c.entries[v].pins > 0 }
	for c.used+size > c.cfg.CapacityBytes {
		victim, ok := c.policy.Victim(skip)
		if !ok {
			c.stats.Uncached++
			return nil
		}
		c.evictLocked(victim)
	}

	e := &entry{pos: pos, page: p, size: int(size)}
	c.entries[pos] = e
	c.used += size
	c.policy.Insert(pos, int(size))
	return e
}

func (c *PageCache) evictLocked(pos codec.Position) {
	e := c.entries[pos]
	delete(c.entries, pos)
	c.policy.Remove(pos)
	c.used -= uint64(e.size)
	c.stats.Evictions++
}
