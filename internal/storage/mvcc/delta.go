package mvcc

import (
	"sort"

	"github.com/KilimcininKorOglu/mvstore/internal/storage/btree"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
)

// VersionedRow is one uncommitted version of a row.
type VersionedRow struct {
	// Key is the row key.
	Key value.Value
	// Values are the row columns; nil for a tombstone.
	Values []value.Value
	// SessionID is the session that owns the change.
	SessionID uint64
	// Deleted marks a tombstone.
	Deleted bool
	// Base is the committed version of the key when the session first
	// wrote it, 0 if the key did not exist.
	Base uint64
	// ReadAt is the committed version current when the session first
	// wrote the key.
	ReadAt uint64
	// Seq is the statement sequence that produced this version.
	Seq uint64
	// Prev is the previous version of the same key in the same session.
	Prev *VersionedRow
}

// Delta holds one session's pending changes to one table, ordered by key.
// It is owned by its session and not safe for concurrent use.
type Delta struct {
	rows []*VersionedRow // newest version per key
}

// NewDelta creates an empty delta.
func NewDelta() *Delta {
	return &Delta{}
}

func (d *Delta) search(key value.Value) (int, bool) {
	i := sort.Search(len(d.rows), func(i int) bool {
		return value.Compare(d.rows[i].Key, key) >= 0
	})
	return i, i < len(d.rows) && value.Equal(d.rows[i].Key, key)
}

// Put stages row as the newest version of its key. A key already in the
// delta keeps its original Base and ReadAt.
func (d *Delta) Put(row *VersionedRow) {
	i, found := d.search(row.Key)
	if found {
		row.Prev = d.rows[i]
		row.Base = row.Prev.Base
		row.ReadAt = row.Prev.ReadAt
		d.rows[i] = row
		return
	}
	row.Prev = nil
	d.rows = codec.InsertAt(d.rows, i, row)
}

// Get returns the newest version of key.
func (d *Delta) Get(key value.Value) (*VersionedRow, bool) {
	i, found := d.search(key)
	if !found {
		return nil, false
	}
	return d.rows[i], true
}

// Rows returns the newest version of every key in r, in key order. The
// returned slice is a copy.
func (d *Delta) Rows(r btree.Range) []*VersionedRow {
	start := 0
	if r.Low != nil {
		start, _ = d.search(*r.Low)
	}
	var out []*VersionedRow
	for _, row := range d.rows[start:] {
		if r.Above(row.Key) {
			break
		}
		out = append(out, row)
	}
	return out
}

// Len returns the number of keys with pending changes.
func (d *Delta) Len() int { return len(d.rows) }

// RollbackTo discards every version with Seq >= seq. Keys left without a
// version are removed.
func (d *Delta) RollbackTo(seq uint64) {
	kept := d.rows[:0]
	for _, row := range d.rows {
		for row != nil && row.Seq >= seq {
			row = row.Prev
		}
		if row != nil {
			kept = append(kept, row)
		}
	}
	for i := len(kept); i < len(d.rows); i++ {
		d.rows[i] = nil
	}
	d.rows = kept
}
