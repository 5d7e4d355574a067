package cache

import (
	"container/list"

	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
)

// TwoQ is a segmented policy. New pages enter a probation FIFO; a second
// access while in probation promotes a page to the protected LRU queue.
// Victims are taken from probation first, so a scan that touches each page
// once cannot push out pages that were used twice.
//
// The protected queue holds at most protectedCap bytes. On overflow its
// least recently used pages are demoted to the head of probation.
type TwoQ struct {
	probation      *list.List
	protected      *list.List
	entries        map[codec.Position]*list.Element
	protectedBytes int
	protectedCap   int
}

type twoQEntry struct {
	pos       codec.Position
	size      int
	protected bool
}

// NewTwoQ creates a 2Q policy for a cache of capacity bytes, reserving
// ratio of it for the protected queue.
func NewTwoQ(capacity uint64, ratio float64) *TwoQ {
	return &TwoQ{
		probation:    list.New(),
		protected:    list.New(),
		entries:      make(map[codec.Position]*list.Element),
		protectedCap: int(float64(capacity) * ratio),
	}
}

// Insert places a new page at the head of probation.
func (q *TwoQ) Insert(pos codec.Position, size int) {
	if _, exists := q.entries[pos]; exists {
		q.Access(pos)
		return
	}
	q.entries[pos] = q.probation.PushFront(&twoQEntry{pos: pos, size: size})
}

// Access promotes a probation page or refreshes a protected one.
func (q *TwoQ) Access(pos codec.Position) {
	elem, exists := q.entries[pos]
	if !exists {
		return
	}
	e := elem.Value.(*twoQEntry)
	if e.protected {
		q.protected.MoveToFront(elem)
		return
	}

	q.probation.Remove(elem)
	e.protected = true
	q.entries[pos] = q.protected.PushFront(e)
	q.protectedBytes += e.size

	for q.protectedBytes > q.protectedCap && q.protected.Len() > 1 {
		q.demote(q.protected.Back())
	}
}

func (q *TwoQ) demote(elem *list.Element) {
	e := elem.Value.(*twoQEntry)
	q.protected.Remove(elem)
	q.protectedBytes -= e.size
	e.protected = false
	q.entries[e.pos] = q.probation.PushFront(e)
}

// Remove forgets pos.
func (q *TwoQ) Remove(pos codec.Position) {
	elem, exists := q.entries[pos]
	if !exists {
		return
	}
	e := elem.Value.(*twoQEntry)
	if e.protected {
		q.protected.Remove(elem)
		q.protectedBytes -= e.size
	} else {
		q.probation.Remove(elem)
	}
	delete(q.entries, pos)
}

// Victim returns the oldest unskipped probation page, or failing that the
// least recently used unskipped protected page.
func (q *TwoQ) Victim(skip func(codec.Position) bool) (codec.Position, bool) {
	for _, l := range []*list.List{q.probation, q.protected} {
		for elem := l.Back(); elem != nil; elem = elem.Prev() {
			pos := elem.Value.(*twoQEntry).pos
			if skip == nil || !skip(pos) {
				return pos, true
			}
		}
	}
	return 0, false
}

// IsProtected reports whether pos sits in the protected queue.
func (q *TwoQ) IsProtected(pos codec.Position) bool {
	elem, exists := q.entries[pos]
	return exists && elem.Value.(*twoQEntry).protected
}

// Len returns the number of tracked pages.
func (q *TwoQ) Len() int { return len(q.entries) }

// Clear forgets every page.
func (q *TwoQ) Clear() {
	q.probation.Init()
	q.protected.Init()
	q.entries = make(map[codec.Position]*list.Element)
	q.protectedBytes = 0
}
