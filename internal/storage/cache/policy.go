package cache

import (
	"container/list"

	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
)

// Policy orders resident pages for eviction. Implementations are not
// safe for concurrent use; PageCache calls them under its own lock.
type Policy interface {
	// Insert records a newly resident page of the given memory size.
	Insert(pos codec.Position, size int)
	// Access records a hit on a resident page.
	Access(pos codec.Position)
	// Remove forgets a page.
	Remove(pos codec.Position)
	// Victim returns the next page to evict, passing over pages for which
	// skip returns true.
	Victim(skip func(codec.Position) bool) (codec.Position, bool)
	// Len returns the number of tracked pages.
	Len() int
	// Clear forgets every page.
	Clear()
}

// LRU evicts the least recently used page first. Insertion and access both
// make a page the most recently used.
type LRU struct {
	list    *list.List                      // front is most recently used
	entries map[codec.Position]*list.Element // for O(1) lookup
}

// NewLRU creates an empty LRU policy.
func NewLRU() *LRU {
	return &LRU{
		list:    list.New(),
		entries: make(map[codec.Position]*list.Element),
	}
}

// Insert adds pos at the front, or refreshes it if already present.
func (c *LRU) Insert(pos codec.Position, _ int) {
	c.Access(pos)
}

// Access moves pos to the front. An unknown pos is added.
func (c *LRU) Access(pos codec.Position) {
	if elem, exists := c.entries[pos]; exists {
		c.list.MoveToFront(elem)
		return
	}
	c.entries[pos] = c.list.PushFront(pos)
}

// Remove removes pos.
func (c *LRU) Remove(pos codec.Position) {
	if elem, exists := c.entries[pos]; exists {
		c.list.Remove(elem)
		delete(c.entries, pos)
	}
}

// Victim walks from the least recently used end.
func (c *LRU) Victim(skip func(codec.Position) bool) (codec.Position, bool) {
	for elem := c.list.Back(); elem != nil; elem = elem.Prev() {
		pos := elem.Value.(codec.Position)
		if skip == nil || !skip(pos) {
			return pos, true
		}
	}
	return 0, false
}

// Contains reports whether pos is tracked.
func (c *LRU) Contains(pos codec.Position) bool {
	_, exists := c.entries[pos]
	return exists
}

// Len returns the number of tracked pages.
func (c *LRU) Len() int { return c.list.Len() }

// Clear removes all pages.
func (c *LRU) Clear() {
	c.list.Init()
	c.entries = make(map[codec.Position]*list.Element)
}

// Order returns the tracked pages from least to most recently used.
func (c *LRU) Order() []codec.Position {
	result := make([]codec.Position, 0, c.list.Len())
	for elem := c.list.Back(); elem != nil; elem = elem.Prev() {
		result = append(result, elem.Value.(codec.Position))
	}
	return result
}
