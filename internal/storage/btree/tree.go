package btree

import (
	"github.com/KilimcininKorOglu/mvstore/internal/storage/cache"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/page"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
)

// Range bounds a scan. Both ends are inclusive; a nil end is unbounded.
type Range struct {
	Low  *value.Value
	High *value.Value
}

// Between returns the range [low, high].
func Between(low, high value.Value) Range {
	return Range{Low: &low, High: &high}
}

// From returns the range [low, +inf).
func From(low value.Value) Range {
	return Range{Low: &low}
}

// Contains reports whether key lies within r.
func (r Range) Contains(key value.Value) bool {
	return !r.below(key) && !r.Above(key)
}

// Above reports whether key sorts after the high end.
func (r Range) Above(key value.Value) bool {
	return r.High != nil && value.Compare(key, *r.High) > 0
}

func (r Range) below(key value.Value) bool {
	return r.Low != nil && value.Compare(key, *r.Low) < 0
}

// Tree is a read-only view of a saved root. The zero root is the empty
// tree.
type Tree struct {
	pages *cache.PageCache
	root  codec.Position
}

// New returns the tree rooted at root.
func New(pages *cache.PageCache, root codec.Position) *Tree {
	return &Tree{pages: pages, root: root}
}

// Root returns the root position.
func (t *Tree) Root() codec.Position { return t.root }

// IsEmpty reports whether the tree has no keys.
func (t *Tree) IsEmpty() bool { return t.root == 0 }

// Search looks up key and returns its row.
func (t *Tree) Search(key value.Value) (page.Row, bool, error) {
	pos := t.root
	for pos != 0 {
		h, err := t.pages.Acquire(pos)
		if err != nil {
			return page.Row{}, false, err
		}
		p := h.Page()
		if p.IsLeaf() {
			i, found := p.Search(key)
			var row page.Row
			if found {
				row = p.Row(i)
			}
			h.Release()
			return row, found, nil
		}
		pos = p.Child(p.ChildIndex(key)).Pos
		h.Release()
	}
	return page.Row{}, false, nil
}

// Depth returns the number of levels, 0 for the empty tree.
func (t *Tree) Depth() (int, error) {
	depth := 0
	pos := t.root
	for pos != 0 {
		p, err := t.pages.Get(pos)
		if err != nil {
			return 0, err
		}
		depth++
		if p.IsLeaf() {
			break
		}
		pos = p.Child(0).Pos
	}
	return depth, nil
}

// Walk calls fn with the position of every page reachable from root,
// parents before children. Only nodes are loaded; leaf positions come from
// their parent.
func Walk(pages *cache.PageCache, root codec.Position, fn func(codec.Position) error) error {
	if root == 0 {
		return nil
	}
	if err := fn(root); err != nil {
		return err
	}
	if root.Type() == codec.PageLeaf {
		return nil
	}
	p, err := pages.Get(root)
	if err != nil {
		return err
	}
	for i := 0; i < p.ChildCount(); i++ {
		if err := Walk(pages, p.Child(i).Pos, fn); err != nil {
			return err
		}
	}
	return nil
}
