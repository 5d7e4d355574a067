package mvcc

import (
	"github.com/KilimcininKorOglu/mvstore/internal/storage/btree"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
	"github.com/cockroachdb/errors"
)

// State is the cursor lifecycle state.
type State int

const (
	StateInit State = iota
	StateScanning
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateScanning:
		return "SCANNING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Cursor yields the rows of a key range as seen by one session.
type Cursor struct {
	state   State
	session uint64
	snap    *Snapshot
	snaps   *SnapshotManager
	tree    *btree.Tree
	rng     btree.Range

	delta []*VersionedRow
	di    int

	committed *btree.Cursor
	hasRow    bool // committed is positioned on a row

	key    value.Value
	values []value.Value
	err    error
}

// NewCursor creates a cursor for session over r. tree must be rooted at
// snap's root for the table; the cursor owns the reference to snap and
// releases it through snaps once done. delta may be nil.
func NewCursor(tree *btree.Tree, r btree.Range, session uint64, delta *Delta, snap *Snapshot, snaps *SnapshotManager) *Cursor {
	c := &Cursor{
		state:   StateInit,
		session: session,
		snap:    snap,
		snaps:   snaps,
		tree:    tree,
		rng:     r,
	}
	if delta != nil {
		c.delta = delta.Rows(r)
	}
	return c
}

// State returns the cursor state.
func (c *Cursor) State() State { return c.state }

// Next advances to the next visible row.
func (c *Cursor) Next() bool {
	if c.state == StateInit {
		committed, err := c.tree.NewCursor(c.rng)
		if err != nil {
			c.fail(err)
			return false
		}
		c.committed = committed
		c.state = StateScanning
		c.advanceCommitted()
	}

	for c.state == StateScanning {
		var d *VersionedRow
		if c.di < len(c.delta) {
			d = c.delta[c.di]
		}
		if d == nil && !c.hasRow {
			c.Close()
			return false
		}

		if d != nil {
			cmp := -1
			if c.hasRow {
				cmp = value.Compare(d.Key, c.committed.Key())
			}
			if cmp <= 0 {
				c.di++
				if cmp == 0 {
					c.advanceCommitted()
				}
				if !IsOwnVisible(d, c.session) {
					continue
				}
				c.key, c.values = d.Key, d.Values
				return true
			}
		}

		key, row := c.committed.Key(), c.committed.Row()
		c.advanceCommitted()
		if !IsVisible(row, c.snap, c.session) {
			continue
		}
		c.key, c.values = key, row.Values
		return true
	}
	return false
}

func (c *Cursor) advanceCommitted() {
	c.hasRow = c.committed.Next()
	if !c.hasRow {
		if err := c.committed.Err(); err != nil {
			c.fail(err)
		}
	}
}

func (c *Cursor) fail(err error) {
	c.err = err
	c.Close()
}

// Key returns the current row key.
func (c *Cursor) Key() value.Value { return c.key }

// Values returns the current row columns.
func (c *Cursor) Values() []value.Value { return c.values }

// Err returns the error that ended the scan, if any.
func (c *Cursor) Err() error { return c.err }

// Close ends the scan and releases its snapshot and page pins. It is safe
// to call more than once; the snapshot is released exactly once. A failed
// release is reported by Err.
func (c *Cursor) Close() {
	if c.state == StateDone {
		return
	}
	c.state = StateDone
	if c.committed != nil {
		c.committed.Close()
	}
	if c.snap != nil && c.snaps != nil {
		if err := c.snaps.Release(c.snap); err != nil && c.err == nil {
			c.err = errors.Wrapf(err, "release snapshot of version %d", c.snap.Version)
		}
	}
	c.delta = nil
}
