// Package page implements the B-tree page unit: a leaf holding keys and
// rows, or a node holding separator keys and child positions.
//
// Pages are immutable. Every editor returns a new unsaved page and leaves
// the receiver untouched, which is what lets readers keep walking an old
// root while a commit builds a new one.
package page

import (
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
)

// Row is a committed row stored in a leaf.
type Row struct {
	// Version is the commit version that produced the row.
	Version uint64
	// Session is the id of a session whose write is pending on this row,
	// or 0 for a plain committed row.
	Session uint64
	// Values are the row's column values.
	Values []value.Value
}

// Child references a subtree. Page is set only while the child has not
// been written yet; a saved child is identified by Pos alone.
type Child struct {
	Pos  codec.Position
	Page *Page
}

// Page is a tagged variant: leaves use rows, nodes use children.
// For a node, len(children) == len(keys)+1 and child i+1 holds the keys
// greater than or equal to keys[i].
type Page struct {
	typ      codec.PageType
	keys     []value.Value
	rows     []Row
	children []Child
	pos      codec.Position

	memory   int
	diskSize int
}

const (
	pageOverhead  = 64
	rowOverhead   = 24
	childOverhead = 16
	headerMax     = 4 + 2 + codec.MaxVarIntLen + 1 + 1 + codec.MaxVarIntLen
)

// NewLeaf creates an unsaved leaf. keys and rows must have equal length
// and keys must be strictly ascending.
func NewLeaf(keys []value.Value, rows []Row) *Page {
	p := &Page{typ: codec.PageLeaf, keys: keys, rows: rows}
	p.measure()
	return p
}

// NewNode creates an unsaved node. len(children) must be len(keys)+1.
func NewNode(keys []value.Value, children []Child) *Page {
	p := &Page{typ: codec.PageNode, keys: keys, children: children}
	p.measure()
	return p
}

// EmptyLeaf returns a leaf with no keys, the root of an empty tree.
func EmptyLeaf() *Page {
	return NewLeaf(nil, nil)
}

func (p *Page) measure() {
	mem := pageOverhead
	disk := headerMax
	for _, k := range p.keys {
		mem += k.MemorySize()
		disk += value.EncodedSize(k)
	}
	for _, r := range p.rows {
		mem += rowOverhead
		disk += codec.VarLongLen(r.Version) + codec.VarLongLen(r.Session) + codec.VarIntLen(uint32(len(r.Values)))
		for _, v := range r.Values {
			mem += v.MemorySize()
			disk += value.EncodedSize(v)
		}
	}
	mem += len(p.children) * childOverhead
	disk += len(p.children) * 8
	p.memory = mem
	p.diskSize = disk
}

// Type returns the page type.
func (p *Page) Type() codec.PageType { return p.typ }

// IsLeaf reports whether p is a leaf.
func (p *Page) IsLeaf() bool { return p.typ == codec.PageLeaf }

// Pos returns the position the page was written to, or 0 if unsaved.
func (p *Page) Pos() codec.Position { return p.pos }

// IsSaved reports whether the page has a position.
func (p *Page) IsSaved() bool { return p.pos != 0 }

// KeyCount returns the number of keys.
func (p *Page) KeyCount() int { return len(p.keys) }

// Key returns the key at index i.
func (p *Page) Key(i int) value.Value { return p.keys[i] }

// Row returns the row at index i of a leaf.
func (p *Page) Row(i int) Row { return p.rows[i] }

// ChildCount returns the number of children of a node.
func (p *Page) ChildCount() int { return len(p.children) }

// Child returns the child at index i of a node.
func (p *Page) Child(i int) Child { return p.children[i] }

// Memory returns the estimated in-memory size, used by the cache budget.
func (p *Page) Memory() int { return p.memory }

// EstimatedSize returns an upper estimate of the uncompressed serialized
// size, used by the split policy.
func (p *Page) EstimatedSize() int { return p.diskSize }

// Search binary-searches the keys. It returns the index of key and true,
// or the insertion index and false.
func (p *Page) Search(key value.Value) (int, bool) {
	low, high := 0, len(p.keys)
	for low < high {
		mid := int(uint(low+high) >> 1)
		cmp := value.Compare(p.keys[mid], key)
		if cmp < 0 {
			low = mid + 1
		} else if cmp > 0 {
			high = mid
		} else {
			return mid, true
		}
	}
	return low, false
}

// ChildIndex returns the index of the child whose range contains key: the
// number of separator keys less than or equal to key.
func (p *Page) ChildIndex(key value.Value) int {
	i, found := p.Search(key)
	if found {
		return i + 1
	}
	return i
}

// =============================================================================
// Copy-on-write editors
// =============================================================================

// SetRow returns a copy of the leaf with the row at i replaced.
func (p *Page) SetRow(i int, row Row) *Page {
	rows := make([]Row, len(p.rows))
	copy(rows, p.rows)
	rows[i] = row
	return NewLeaf(p.keys, rows)
}

// InsertRow returns a copy of the leaf with key and row inserted at i.
func (p *Page) InsertRow(i int, key value.Value, row Row) *Page {
	return NewLeaf(codec.InsertAt(p.keys, i, key), codec.InsertAt(p.rows, i, row))
}

// RemoveRow returns a copy of the leaf without the entry at i.
func (p *Page) RemoveRow(i int) *Page {
	return NewLeaf(codec.RemoveAt(p.keys, i), codec.RemoveAt(p.rows, i))
}

// SetChild returns a copy of the node with child i replaced.
func (p *Page) SetChild(i int, c Child) *Page {
	children := make([]Child, len(p.children))
	copy(children, p.children)
	children[i] = c
	return NewNode(p.keys, children)
}

// InsertChild returns a copy of the node with key inserted at i and c
// inserted to its right, at child index i+1.
func (p *Page) InsertChild(i int, key value.Value, c Child) *Page {
	return NewNode(codec.InsertAt(p.keys, i, key), codec.InsertAt(p.children, i+1, c))
}

// RemoveChild returns a copy of the node without child i and the separator
// bounding it: the key on its left, or for the first child the key on its
// right.
func (p *Page) RemoveChild(i int) *Page {
	k := i - 1
	if i == 0 {
		k = 0
	}
	return NewNode(codec.RemoveAt(p.keys, k), codec.RemoveAt(p.children, i))
}

// CanSplit reports whether Split can produce two non-empty halves.
func (p *Page) CanSplit() bool {
	if p.IsLeaf() {
		return len(p.keys) >= 2
	}
	return len(p.keys) >= 3
}

// Split divides the page at its median key. For a leaf, the separator is
// the first key of the right half. For a node, the separator moves up and
// belongs to neither half.
func (p *Page) Split() (left *Page, sep value.Value, right *Page) {
	at := len(p.keys) / 2
	sep = p.keys[at]
	if p.IsLeaf() {
		left = NewLeaf(cloneSlice(p.keys[:at]), cloneSlice(p.rows[:at]))
		right = NewLeaf(cloneSlice(p.keys[at:]), cloneSlice(p.rows[at:]))
		return left, sep, right
	}
	left = NewNode(cloneSlice(p.keys[:at]), cloneSlice(p.children[:at+1]))
	right = NewNode(cloneSlice(p.keys[at+1:]), cloneSlice(p.children[at+1:]))
	return left, sep, right
}

func cloneSlice[T any](s []T) []T {
	return append([]T(nil), s...)
}

// saved returns a copy of p carrying pos, with unsaved child pointers
// dropped.
func (p *Page) saved(pos codec.Position) *Page {
	cp := *p
	cp.pos = pos
	if len(p.children) > 0 {
		cp.children = make([]Child, len(p.children))
		for i, c := range p.children {
			cp.children[i] = Child{Pos: c.Pos}
		}
	}
	return &cp
}
