package mvcc

import (
	"testing"

	"github.com/KilimcininKorOglu/mvstore/internal/logging"
	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/btree"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/cache"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/chunk"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/page"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
	"github.com/cockroachdb/errors"
)

// committedTree writes rows for keys into a fresh store and returns the
// tree. Every row is committed at version 1 unless sessions names a
// pending session id for the key.
func committedTree(t *testing.T, keys []int64, sessions map[int64]uint64) *btree.Tree {
	t.Helper()
	st, err := chunk.Open(chunk.NewMemBackend(), false, logging.NewNop())
	if err != nil {
		t.Fatalf("chunk.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	pages, err := cache.New(storage.DefaultCacheConfig(), func(pos codec.Position) (*page.Page, error) {
		return page.Read(st, pos)
	})
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}

	b, _ := btree.NewBuilder(pages, 0, 128)
	for _, k := range keys {
		row := page.Row{Version: 1, Session: sessions[k], Values: []value.Value{value.String("committed")}}
		if err := b.Put(value.Long(k), row); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	w, _ := st.NewWriter()
	root, err := b.Save(w, storage.CompressionNone)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := w.Seal(1, map[string]codec.Position{"t": root}); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	return btree.New(pages, root)
}

func put(d *Delta, session uint64, seq uint64, key int64, col string) {
	d.Put(&VersionedRow{Key: value.Long(key), Values: []value.Value{value.String(col)}, SessionID: session, Seq: seq})
}

func del(d *Delta, session uint64, seq uint64, key int64) {
	d.Put(&VersionedRow{Key: value.Long(key), SessionID: session, Deleted: true, Seq: seq})
}

type seen struct {
	key int64
	col string
}

func drain(t *testing.T, c *Cursor) []seen {
	t.Helper()
	var out []seen
	for c.Next() {
		out = append(out, seen{keyInt(c.Key()), c.Values()[0].Str()})
	}
	if err := c.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}
	return out
}

func keyInt(v value.Value) int64 {
	n, _ := v.Int64()
	return n
}

func keysOf(rows []seen) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.key
	}
	return out
}

func equalKeys(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func seq(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// =============================================================================
// Delta Tests
// =============================================================================

func TestDeltaOrderAndChain(t *testing.T) {
	d := NewDelta()
	for _, k := range []int64{5, 1, 3} {
		d.Put(&VersionedRow{Key: value.Long(k), SessionID: 1, Base: uint64(k), Seq: 1})
	}
	put(d, 1, 2, 3, "second")

	if d.Len() != 3 {
		t.Fatalf("Len = %d, want 3", d.Len())
	}
	rows := d.Rows(btree.Range{})
	for i, want := range []int64{1, 3, 5} {
		if keyInt(rows[i].Key) != want {
			t.Errorf("rows[%d] = %d, want %d", i, keyInt(rows[i].Key), want)
		}
	}

	head, ok := d.Get(value.Long(3))
	if !ok || head.Values[0].Str() != "second" {
		t.Fatalf("Get(3) = %+v, %v", head, ok)
	}
	if head.Base != 3 {
		t.Errorf("Base = %d, the first write's base must be kept", head.Base)
	}
	if head.Prev == nil || head.Prev.Seq != 1 {
		t.Error("previous version not chained")
	}
	if _, ok := d.Get(value.Long(4)); ok {
		t.Error("Get(4) found a missing key")
	}
}

func TestDeltaRowsRange(t *testing.T) {
	d := NewDelta()
	for k := int64(1); k <= 10; k++ {
		put(d, 1, 1, k, "v")
	}
	rows := d.Rows(btree.Between(value.Long(3), value.Long(6)))
	got := make([]int64, len(rows))
	for i, r := range rows {
		got[i] = keyInt(r.Key)
	}
	if !equalKeys(got, []int64{3, 4, 5, 6}) {
		t.Errorf("Rows = %v", got)
	}
}

func TestDeltaRollbackTo(t *testing.T) {
	d := NewDelta()
	put(d, 1, 1, 1, "a1")
	put(d, 1, 1, 2, "b1")
	put(d, 1, 2, 2, "b2")
	put(d, 1, 2, 3, "c2")
	put(d, 1, 3, 1, "a3")

	d.RollbackTo(2)
	if d.Len() != 2 {
		t.Fatalf("Len = %d after rollback, want 2", d.Len())
	}
	a, _ := d.Get(value.Long(1))
	b, _ := d.Get(value.Long(2))
	if a.Values[0].Str() != "a1" || b.Values[0].Str() != "b1" {
		t.Errorf("got %s, %s", a.Values[0].Str(), b.Values[0].Str())
	}
	if _, ok := d.Get(value.Long(3)); ok {
		t.Error("key written after the savepoint should be gone")
	}

	d.RollbackTo(0)
	if d.Len() != 0 {
		t.Errorf("Len = %d after full rollback", d.Len())
	}
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func TestSnapshotManager(t *testing.T) {
	m := NewSnapshotManager()
	if _, ok := m.Oldest(); ok {
		t.Error("empty manager reports an oldest version")
	}

	a := m.Acquire(5, map[string]codec.Position{"t": 1})
	b := m.Acquire(5, nil)
	c := m.Acquire(9, nil)
	if a != b {
		t.Error("same version should share a snapshot")
	}
	if a.Root("t") != 1 || a.Root("missing") != 0 {
		t.Error("roots not kept from the first acquire")
	}
	if m.RefCount(5) != 2 || m.Count() != 2 {
		t.Errorf("RefCount = %d, Count = %d", m.RefCount(5), m.Count())
	}
	if v, _ := m.Oldest(); v != 5 {
		t.Errorf("Oldest = %d, want 5", v)
	}

	m.Release(a)
	m.Release(b)
	if v, _ := m.Oldest(); v != 9 {
		t.Errorf("Oldest = %d after release, want 9", v)
	}
	if err := m.Release(a); !errors.Is(err, ErrSnapshotReleased) {
		t.Errorf("double release = %v", err)
	}
	m.Release(c)
	if m.Count() != 0 {
		t.Errorf("Count = %d", m.Count())
	}
}

func TestIsVisible(t *testing.T) {
	snap := &Snapshot{Version: 10}
	tests := []struct {
		name string
		row  page.Row
		want bool
	}{
		{"plain committed", page.Row{Version: 3}, true},
		{"at snapshot", page.Row{Version: 10}, true},
		{"after snapshot", page.Row{Version: 11}, false},
		{"own pending", page.Row{Version: 3, Session: 7}, true},
		{"foreign pending", page.Row{Version: 3, Session: 8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVisible(tt.row, snap, 7); got != tt.want {
				t.Errorf("IsVisible = %v, want %v", got, tt.want)
			}
		})
	}

	if IsOwnVisible(&VersionedRow{SessionID: 7, Deleted: true}, 7) {
		t.Error("own tombstone must be hidden")
	}
	if IsOwnVisible(&VersionedRow{SessionID: 8}, 7) {
		t.Error("foreign pending row must be hidden")
	}
}

// =============================================================================
// Cursor Tests
// =============================================================================

func TestCursorMergesDelta(t *testing.T) {
	tree := committedTree(t, seq(1, 10), nil)

	d := NewDelta()
	put(d, 1, 1, 0, "inserted")
	put(d, 1, 1, 3, "updated")
	del(d, 1, 1, 5)
	put(d, 1, 1, 11, "inserted")
	del(d, 1, 1, 100)

	rows := drain(t, NewCursor(tree, btree.Range{}, 1, d, nil, nil))
	want := []int64{0, 1, 2, 3, 4, 6, 7, 8, 9, 10, 11}
	if !equalKeys(keysOf(rows), want) {
		t.Fatalf("keys = %v, want %v", keysOf(rows), want)
	}
	for _, r := range rows {
		wantCol := "committed"
		if r.key == 0 || r.key == 11 {
			wantCol = "inserted"
		} else if r.key == 3 {
			wantCol = "updated"
		}
		if r.col != wantCol {
			t.Errorf("key %d = %q, want %q", r.key, r.col, wantCol)
		}
	}
}

func TestCursorRangeAppliesToDelta(t *testing.T) {
	tree := committedTree(t, seq(1, 50), nil)
	d := NewDelta()
	put(d, 1, 1, 2, "x")
	put(d, 1, 1, 25, "x")
	put(d, 1, 1, 99, "x")

	rows := drain(t, NewCursor(tree, btree.Between(value.Long(20), value.Long(30)), 1, d, nil, nil))
	if !equalKeys(keysOf(rows), seq(20, 30)) {
		t.Errorf("keys = %v", keysOf(rows))
	}
	if rows[5].col != "x" {
		t.Errorf("key 25 = %q, want the pending version", rows[5].col)
	}
}

func TestCursorSkipsForeignPendingRows(t *testing.T) {
	tree := committedTree(t, seq(1, 6), map[int64]uint64{4: 99})

	if got := keysOf(drain(t, NewCursor(tree, btree.Range{}, 1, nil, nil, nil))); !equalKeys(got, []int64{1, 2, 3, 5, 6}) {
		t.Errorf("session 1 sees %v", got)
	}
	if got := keysOf(drain(t, NewCursor(tree, btree.Range{}, 99, nil, nil, nil))); !equalKeys(got, seq(1, 6)) {
		t.Errorf("session 99 sees %v", got)
	}
}

func TestCursorOnEmptyTree(t *testing.T) {
	tree := committedTree(t, nil, nil)
	d := NewDelta()
	put(d, 1, 1, 7, "only")
	if got := keysOf(drain(t, NewCursor(tree, btree.Range{}, 1, d, nil, nil))); !equalKeys(got, []int64{7}) {
		t.Errorf("keys = %v", got)
	}
	if got := drain(t, NewCursor(tree, btree.Range{}, 1, nil, nil, nil)); len(got) != 0 {
		t.Errorf("keys = %v", got)
	}
}

func TestCursorIgnoresLaterDeltaWrites(t *testing.T) {
	tree := committedTree(t, seq(1, 3), nil)
	d := NewDelta()
	c := NewCursor(tree, btree.Range{}, 1, d, nil, nil)
	put(d, 1, 1, 10, "late")
	if got := keysOf(drain(t, c)); !equalKeys(got, seq(1, 3)) {
		t.Errorf("keys = %v", got)
	}
}

func TestCursorStatesAndSnapshotRelease(t *testing.T) {
	tree := committedTree(t, seq(1, 20), nil)
	snaps := NewSnapshotManager()

	snap := snaps.Acquire(1, map[string]codec.Position{"t": tree.Root()})
	c := NewCursor(tree, btree.Range{}, 1, nil, snap, snaps)
	if c.State() != StateInit {
		t.Fatalf("state = %s before Next", c.State())
	}
	if !c.Next() || c.State() != StateScanning {
		t.Fatalf("state = %s after first Next", c.State())
	}
	for c.Next() {
	}
	if c.State() != StateDone {
		t.Errorf("state = %s after exhaustion", c.State())
	}
	if snaps.RefCount(1) != 0 {
		t.Error("snapshot not released at DONE")
	}
	c.Close()
	if snaps.Count() != 0 {
		t.Error("Close after DONE released twice")
	}

	snap = snaps.Acquire(1, nil)
	c = NewCursor(tree, btree.Range{}, 1, nil, snap, snaps)
	c.Next()
	c.Close()
	if snaps.Count() != 0 || c.Next() {
		t.Error("abandoned cursor kept its snapshot")
	}
}

func TestCursorReportsFailedRelease(t *testing.T) {
	tree := committedTree(t, seq(1, 5), nil)
	snaps := NewSnapshotManager()

	snap := snaps.Acquire(1, nil)
	c := NewCursor(tree, btree.Range{}, 1, nil, snap, snaps)
	c.Next()
	if err := snaps.Release(snap); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	c.Close()
	if !errors.Is(c.Err(), ErrSnapshotReleased) {
		t.Errorf("Err after over-release = %v, want ErrSnapshotReleased", c.Err())
	}
	c.Close()
	if snaps.Count() != 0 {
		t.Errorf("%d snapshots open", snaps.Count())
	}
}

// =============================================================================
// ChangeLog Tests
// =============================================================================

func TestChangeLog(t *testing.T) {
	l := NewChangeLog()
	if got := l.LastChange("t", value.Long(1)); got != 0 {
		t.Errorf("empty LastChange = %d", got)
	}

	l.Record("t", value.Long(1), 3)
	l.Record("t", value.Int(1), 5)
	l.Record("t", value.Long(1), 4)
	l.Record("t", value.String("a"), 2)
	l.Record("u", value.Long(1), 6)

	tests := []struct {
		name  string
		table string
		key   value.Value
		want  uint64
	}{
		{"newest kept", "t", value.Long(1), 5},
		{"widths share a key", "t", value.Byte(1), 5},
		{"string key", "t", value.String("a"), 2},
		{"tables are separate", "u", value.Long(1), 6},
		{"missing key", "t", value.Long(2), 0},
		{"missing table", "v", value.Long(1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.LastChange(tt.table, tt.key); got != tt.want {
				t.Errorf("LastChange = %d, want %d", got, tt.want)
			}
		})
	}
	if l.Len() != 3 {
		t.Errorf("Len = %d, want 3", l.Len())
	}

	if n := l.Prune(5); n != 2 {
		t.Errorf("Prune(5) dropped %d, want 2", n)
	}
	if l.LastChange("t", value.Long(1)) != 0 || l.LastChange("u", value.Long(1)) != 6 {
		t.Error("Prune kept or dropped the wrong entries")
	}
	if n := l.Prune(10); n != 1 || l.Len() != 0 {
		t.Errorf("Prune(10) dropped %d, Len = %d", n, l.Len())
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateInit: "INIT", StateScanning: "SCANNING", StateDone: "DONE", State(9): "UNKNOWN"} {
		if s.String() != want {
			t.Errorf("%d.String() = %s", s, s.String())
		}
	}
}
