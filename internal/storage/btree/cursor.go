package btree

import (
	"github.com/KilimcininKorOglu/mvstore/internal/storage/cache"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/page"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
)

type frame struct {
	h *cache.Handle
	i int // next key index in a leaf, current child index in a node
}

// Cursor iterates a range of a tree in key order. It pins the pages on its
// current root-to-leaf path and must be closed.
type Cursor struct {
	pages *cache.PageCache
	rng   Range
	stack []frame
	key   value.Value
	row   page.Row
	err   error
	done  bool
}

// NewCursor positions a cursor before the first key of r.
func (t *Tree) NewCursor(r Range) (*Cursor, error) {
	c := &Cursor{pages: t.pages, rng: r}
	if t.root == 0 {
		c.done = true
		return c, nil
	}
	if err := c.descend(t.root, r.Low); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// descend pushes the path from pos to the leaf holding low, or to the
// leftmost leaf when low is nil.
func (c *Cursor) descend(pos codec.Position, low *value.Value) error {
	for {
		h, err := c.pages.Acquire(pos)
		if err != nil {
			return err
		}
		p := h.Page()
		if p.IsLeaf() {
			i := 0
			if low != nil {
				i, _ = p.Search(*low)
			}
			c.stack = append(c.stack, frame{h: h, i: i})
			return nil
		}
		i := 0
		if low != nil {
			i = p.ChildIndex(*low)
		}
		c.stack = append(c.stack, frame{h: h, i: i})
		pos = p.Child(i).Pos
	}
}

// Next advances to the next key in range.
func (c *Cursor) Next() bool {
	for !c.done && c.err == nil {
		top := &c.stack[len(c.stack)-1]
		p := top.h.Page()
		if top.i < p.KeyCount() {
			k := p.Key(top.i)
			if c.rng.Above(k) {
				c.Close()
				return false
			}
			c.key, c.row = k, p.Row(top.i)
			top.i++
			return true
		}
		if err := c.nextLeaf(); err != nil {
			c.err = err
			c.Close()
		}
	}
	return false
}

// nextLeaf pops exhausted pages and descends into the next subtree.
func (c *Cursor) nextLeaf() error {
	c.pop()
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		top.i++
		p := top.h.Page()
		if top.i < p.ChildCount() {
			return c.descend(p.Child(top.i).Pos, nil)
		}
		c.pop()
	}
	c.done = true
	return nil
}

func (c *Cursor) pop() {
	n := len(c.stack) - 1
	c.stack[n].h.Release()
	c.stack = c.stack[:n]
}

// Key returns the current key.
func (c *Cursor) Key() value.Value { return c.key }

// Row returns the current row.
func (c *Cursor) Row() page.Row { return c.row }

// Err returns the error that stopped the cursor, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the cursor's pins. It is safe to call more than once.
func (c *Cursor) Close() {
	for len(c.stack) > 0 {
		c.pop()
	}
	c.done = true
}
