// Package btree implements the copy-on-write B-tree that holds one table's
// committed rows.
//
// # Overview
//
// A tree is identified by the position of its root page. Readers walk a
// root through the shared page cache and never see later changes, because
// a write never touches a saved page:
//
//   - Builder applies a batch of puts and deletes by copying every page on
//     the path from the root to the changed leaf
//   - Save writes the unsaved pages bottom-up into a chunk and returns the
//     new root position
//   - Superseded lists the saved positions the batch replaced, which the
//     engine uses for chunk liveness
//
// # Shape
//
// Leaves hold keys and rows; nodes hold separator keys and children, child
// i+1 covering keys greater than or equal to separator i. A page splits at
// its median once its estimated serialized size exceeds the split size.
// Pages are never merged: an emptied leaf is dropped from its parent and a
// node left with one child is replaced by that child.
//
// # Usage
//
//	b, err := btree.NewBuilder(pages, root, splitSize)
//	err = b.Put(value.Long(1), page.Row{Version: v, Values: cols})
//	root, err = b.Save(writer, storage.CompressionSnappy)
//
//	c, err := btree.New(pages, root).NewCursor(btree.Range{})
//	defer c.Close()
//	for c.Next() {
//	    key, row := c.Key(), c.Row()
//	}
package btree
