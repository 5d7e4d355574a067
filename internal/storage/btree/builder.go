package btree

import (
	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/cache"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/page"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
)

// Builder applies a batch of changes to a tree without altering any saved
// page. It is not safe for concurrent use.
type Builder struct {
	pages      *cache.PageCache
	root       *page.Page
	splitSize  int
	superseded []codec.Position
	written    []*page.Page
}

// NewBuilder starts a batch on the tree rooted at root.
func NewBuilder(pages *cache.PageCache, root codec.Position, splitSize int) (*Builder, error) {
	if splitSize <= 0 {
		return nil, storage.InvalidArgumentf("split size must be positive, got %d", splitSize)
	}
	b := &Builder{pages: pages, splitSize: splitSize}
	if root == 0 {
		b.root = page.EmptyLeaf()
		return b, nil
	}
	p, err := pages.Get(root)
	if err != nil {
		return nil, err
	}
	b.root = p
	return b, nil
}

// Root returns the current root page, which may be unsaved.
func (b *Builder) Root() *page.Page { return b.root }

// Superseded returns the saved positions replaced by the batch so far.
func (b *Builder) Superseded() []codec.Position { return b.superseded }

// Written returns the pages written by Save. They belong to a chunk that is
// not sealed yet and must only be cached once it is.
func (b *Builder) Written() []*page.Page { return b.written }

// Put inserts or replaces the row for key.
func (b *Builder) Put(key value.Value, row page.Row) error {
	root, err := b.put(b.root, key, row)
	if err != nil {
		return err
	}
	if b.needsSplit(root) {
		left, sep, right := root.Split()
		root = page.NewNode([]value.Value{sep}, []page.Child{{Page: left}, {Page: right}})
	}
	b.root = root
	return nil
}

func (b *Builder) put(p *page.Page, key value.Value, row page.Row) (*page.Page, error) {
	b.replace(p)
	if p.IsLeaf() {
		i, found := p.Search(key)
		if found {
			return p.SetRow(i, row), nil
		}
		return p.InsertRow(i, key, row), nil
	}

	i := p.ChildIndex(key)
	child, err := b.child(p, i)
	if err != nil {
		return nil, err
	}
	child, err = b.put(child, key, row)
	if err != nil {
		return nil, err
	}
	if b.needsSplit(child) {
		left, sep, right := child.Split()
		return p.SetChild(i, page.Child{Page: left}).InsertChild(i, sep, page.Child{Page: right}), nil
	}
	return p.SetChild(i, page.Child{Page: child}), nil
}

// Delete removes key. It reports whether the key was present.
func (b *Builder) Delete(key value.Value) (bool, error) {
	root, found, err := b.remove(b.root, key)
	if err != nil || !found {
		return false, err
	}
	b.root = root
	return true, nil
}

func (b *Builder) remove(p *page.Page, key value.Value) (*page.Page, bool, error) {
	if p.IsLeaf() {
		i, found := p.Search(key)
		if !found {
			return p, false, nil
		}
		b.replace(p)
		return p.RemoveRow(i), true, nil
	}

	i := p.ChildIndex(key)
	child, err := b.child(p, i)
	if err != nil {
		return nil, false, err
	}
	child, found, err := b.remove(child, key)
	if err != nil || !found {
		return p, found, err
	}
	b.replace(p)
	if child.KeyCount() > 0 {
		return p.SetChild(i, ref(child)), true, nil
	}

	// child is an emptied leaf
	p = p.RemoveChild(i)
	if p.KeyCount() == 0 {
		only := p.Child(0)
		if only.Page != nil {
			return only.Page, true, nil
		}
		last, err := b.pages.Get(only.Pos)
		if err != nil {
			return nil, false, err
		}
		return last, true, nil
	}
	return p, true, nil
}

// Save writes every unsaved page, children first, and returns the root
// position. An empty tree is not written and saves as the zero position.
// Nothing is added to the cache; see Written.
func (b *Builder) Save(w page.Appender, comp storage.Compression) (codec.Position, error) {
	if b.root.IsLeaf() && b.root.KeyCount() == 0 {
		return 0, nil
	}
	root, err := b.save(w, b.root, comp)
	if err != nil {
		return 0, err
	}
	b.root = root
	return root.Pos(), nil
}

func (b *Builder) save(w page.Appender, p *page.Page, comp storage.Compression) (*page.Page, error) {
	if p.IsSaved() {
		return p, nil
	}
	for i := 0; i < p.ChildCount(); i++ {
		c := p.Child(i)
		if c.Page == nil {
			continue
		}
		saved, err := b.save(w, c.Page, comp)
		if err != nil {
			return nil, err
		}
		p = p.SetChild(i, page.Child{Pos: saved.Pos()})
	}
	saved, err := page.Write(w, p, comp)
	if err != nil {
		return nil, err
	}
	b.written = append(b.written, saved)
	return saved, nil
}

func (b *Builder) needsSplit(p *page.Page) bool {
	return p.EstimatedSize() > b.splitSize && p.CanSplit()
}

// replace records that the saved page p is being rewritten.
func (b *Builder) replace(p *page.Page) {
	if p.IsSaved() {
		b.superseded = append(b.superseded, p.Pos())
	}
}

func (b *Builder) child(p *page.Page, i int) (*page.Page, error) {
	c := p.Child(i)
	if c.Page != nil {
		return c.Page, nil
	}
	return b.pages.Get(c.Pos)
}

func ref(p *page.Page) page.Child {
	if p.IsSaved() {
		return page.Child{Pos: p.Pos()}
	}
	return page.Child{Page: p}
}
