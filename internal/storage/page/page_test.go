package page

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/chunk"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/flate"
)

func longKeys(from, to int) []value.Value {
	var keys []value.Value
	for i := from; i < to; i++ {
		keys = append(keys, value.Long(int64(i)))
	}
	return keys
}

func sampleLeaf(n int) *Page {
	keys := longKeys(0, n)
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			Version: uint64(i + 1),
			Values:  []value.Value{value.String(strings.Repeat("v", 20) + fmt.Sprint(i)), value.Int(int32(i))},
		}
	}
	return NewLeaf(keys, rows)
}

func pos(t *testing.T, chunkID uint32, typ codec.PageType) codec.Position {
	t.Helper()
	p, err := codec.GetPagePos(chunkID, chunk.HeaderSize, 1<<20, typ)
	if err != nil {
		t.Fatalf("GetPagePos failed: %v", err)
	}
	return p
}

// =============================================================================
// Encoding Tests
// =============================================================================

func TestEncodeDecodeLeaf(t *testing.T) {
	for _, comp := range []storage.Compression{storage.CompressionNone, storage.CompressionSnappy, storage.CompressionDeflate} {
		t.Run(string(comp), func(t *testing.T) {
			p := sampleLeaf(50)
			data, err := Encode(p, comp)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(data) > p.EstimatedSize() {
				t.Errorf("encoded %d bytes, estimate %d", len(data), p.EstimatedSize())
			}
			compressed := data[6+codec.VarIntLen(50)]&flagCompressed != 0
			if compressed != (comp != storage.CompressionNone) {
				t.Errorf("compressed flag = %v for %s", compressed, comp)
			}

			got, err := Decode(data, pos(t, 1, codec.PageLeaf))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got.KeyCount() != 50 || !got.IsLeaf() {
				t.Fatalf("decoded %d keys, leaf=%v", got.KeyCount(), got.IsLeaf())
			}
			for i := 0; i < 50; i++ {
				if !value.Equal(got.Key(i), p.Key(i)) {
					t.Errorf("key %d = %v", i, got.Key(i))
				}
				row := got.Row(i)
				if row.Version != uint64(i+1) || len(row.Values) != 2 || !value.Equal(row.Values[0], p.Row(i).Values[0]) {
					t.Errorf("row %d = %+v", i, row)
				}
			}
		})
	}
}

func TestEncodeDecodeNode(t *testing.T) {
	c1 := pos(t, 1, codec.PageLeaf)
	c2 := pos(t, 2, codec.PageLeaf)
	c3 := pos(t, 3, codec.PageNode)
	n := NewNode(longKeys(10, 12), []Child{{Pos: c1}, {Pos: c2}, {Pos: c3}})

	data, err := Encode(n, storage.CompressionNone)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data, pos(t, 3, codec.PageNode))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.IsLeaf() || got.ChildCount() != 3 {
		t.Fatalf("decoded leaf=%v children=%d", got.IsLeaf(), got.ChildCount())
	}
	if got.Child(0).Pos != c1 || got.Child(2).Pos != c3 {
		t.Errorf("children = %v %v %v", got.Child(0).Pos, got.Child(1).Pos, got.Child(2).Pos)
	}
}

func TestEncodeRejectsUnsavedChild(t *testing.T) {
	n := NewNode(longKeys(1, 2), []Child{{Page: EmptyLeaf()}, {Page: EmptyLeaf()}})
	if _, err := Encode(n, storage.CompressionNone); !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

// =============================================================================
// Corruption Tests
// =============================================================================

func TestDecodeChecksumMismatch(t *testing.T) {
	data, _ := Encode(sampleLeaf(5), storage.CompressionNone)
	data[len(data)-1] ^= 0x01
	if _, err := Decode(data, pos(t, 1, codec.PageLeaf)); !errors.Is(err, storage.ErrCorruptPage) {
		t.Errorf("expected ErrCorruptPage, got %v", err)
	}
}

func TestDecodeKeyOrderViolation(t *testing.T) {
	keys := []value.Value{value.Long(2), value.Long(1)}
	rows := []Row{{Version: 1}, {Version: 1}}
	data, _ := Encode(NewLeaf(keys, rows), storage.CompressionNone)
	if _, err := Decode(data, pos(t, 1, codec.PageLeaf)); !errors.Is(err, storage.ErrCorruptPage) {
		t.Errorf("expected ErrCorruptPage, got %v", err)
	}

	dup := []value.Value{value.Long(1), value.Long(1)}
	data, _ = Encode(NewLeaf(dup, rows), storage.CompressionNone)
	if _, err := Decode(data, pos(t, 1, codec.PageLeaf)); !errors.Is(err, storage.ErrCorruptPage) {
		t.Errorf("duplicate keys: expected ErrCorruptPage, got %v", err)
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	data, _ := Encode(sampleLeaf(3), storage.CompressionNone)
	if _, err := Decode(data, pos(t, 1, codec.PageNode)); !errors.Is(err, storage.ErrCorruptPage) {
		t.Errorf("expected ErrCorruptPage, got %v", err)
	}
}

func TestDecodeForwardChildReference(t *testing.T) {
	later := pos(t, 9, codec.PageLeaf)
	n := NewNode(longKeys(1, 2), []Child{{Pos: pos(t, 1, codec.PageLeaf)}, {Pos: later}})
	data, _ := Encode(n, storage.CompressionNone)
	if _, err := Decode(data, pos(t, 2, codec.PageNode)); !errors.Is(err, storage.ErrCorruptPage) {
		t.Errorf("expected ErrCorruptPage, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	data, _ := Encode(sampleLeaf(5), storage.CompressionNone)
	if _, err := Decode(data[:len(data)-3], pos(t, 1, codec.PageLeaf)); !errors.Is(err, storage.ErrTruncatedData) {
		t.Errorf("expected ErrTruncatedData, got %v", err)
	}
	if _, err := Decode(data[:2], pos(t, 1, codec.PageLeaf)); !errors.Is(err, storage.ErrTruncatedData) {
		t.Errorf("short header: expected ErrTruncatedData, got %v", err)
	}
}

func TestDecodeLengthBeyondClass(t *testing.T) {
	data, _ := Encode(sampleLeaf(5), storage.CompressionNone)
	small, _ := codec.GetPagePos(1, chunk.HeaderSize, 10, codec.PageLeaf)
	if _, err := Decode(data, small); !errors.Is(err, storage.ErrCorruptPage) {
		t.Errorf("expected ErrCorruptPage, got %v", err)
	}
}

func TestDecodeRawLengthBound(t *testing.T) {
	body := bytes.Repeat([]byte{0}, 128)
	var packed bytes.Buffer
	fw, _ := flate.NewWriter(&packed, flate.BestSpeed)
	fw.Write(body)
	fw.Close()

	tests := []struct {
		name   string
		rawLen uint32
	}{
		{"above bound", MaxRawLength + 1},
		{"near 4 GiB", 1<<32 - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := codec.NewWriter(64)
			w.WriteUint32(0)
			w.WriteUint16(Checksum(body))
			w.WriteVarInt(0)
			w.WriteByte(flagCompressed)
			w.WriteByte(algoDeflate)
			w.WriteVarInt(tt.rawLen)
			w.Write(packed.Bytes())
			w.PutUint32At(0, uint32(w.Len()))

			if _, err := Decode(w.Bytes(), pos(t, 1, codec.PageLeaf)); !errors.Is(err, storage.ErrCorruptPage) {
				t.Errorf("expected ErrCorruptPage, got %v", err)
			}
		})
	}
}

// =============================================================================
// Chunk Round Trip Tests
// =============================================================================

func TestWriteReadThroughChunk(t *testing.T) {
	s, err := chunk.Open(chunk.NewMemBackend(), false, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	w, _ := s.NewWriter()
	leaf, err := Write(w, sampleLeaf(10), storage.CompressionSnappy)
	if err != nil {
		t.Fatalf("Write leaf failed: %v", err)
	}
	if !leaf.IsSaved() || leaf.Pos().Type() != codec.PageLeaf {
		t.Fatalf("leaf pos = %s", leaf.Pos())
	}
	node, err := Write(w, NewNode(longKeys(5, 6), []Child{{Pos: leaf.Pos()}, {Pos: leaf.Pos()}}), storage.CompressionNone)
	if err != nil {
		t.Fatalf("Write node failed: %v", err)
	}
	if _, err := w.Seal(1, map[string]codec.Position{"t": node.Pos()}); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	got, err := Read(s, node.Pos())
	if err != nil {
		t.Fatalf("Read node failed: %v", err)
	}
	if got.Child(0).Pos != leaf.Pos() {
		t.Errorf("child = %s, want %s", got.Child(0).Pos, leaf.Pos())
	}
	gotLeaf, err := Read(s, leaf.Pos())
	if err != nil {
		t.Fatalf("Read leaf failed: %v", err)
	}
	if gotLeaf.KeyCount() != 10 || gotLeaf.Pos() != leaf.Pos() {
		t.Errorf("leaf keys = %d pos = %s", gotLeaf.KeyCount(), gotLeaf.Pos())
	}
}

// =============================================================================
// Copy-on-write Tests
// =============================================================================

func TestSearchAndChildIndex(t *testing.T) {
	p := NewLeaf([]value.Value{value.Long(10), value.Long(20), value.Long(30)}, make([]Row, 3))
	tests := []struct {
		key   int64
		idx   int
		found bool
		child int
	}{
		{5, 0, false, 0},
		{10, 0, true, 1},
		{15, 1, false, 1},
		{30, 2, true, 3},
		{35, 3, false, 3},
	}
	for _, tt := range tests {
		idx, found := p.Search(value.Long(tt.key))
		if idx != tt.idx || found != tt.found {
			t.Errorf("Search(%d) = %d, %v", tt.key, idx, found)
		}
		if c := p.ChildIndex(value.Long(tt.key)); c != tt.child {
			t.Errorf("ChildIndex(%d) = %d, want %d", tt.key, c, tt.child)
		}
	}
}

func TestEditorsDoNotMutate(t *testing.T) {
	p := sampleLeaf(3)
	q := p.InsertRow(1, value.Long(100), Row{Version: 9})
	r := q.RemoveRow(0)
	s := r.SetRow(0, Row{Version: 42})

	if p.KeyCount() != 3 || q.KeyCount() != 4 || r.KeyCount() != 3 {
		t.Fatalf("key counts %d %d %d", p.KeyCount(), q.KeyCount(), r.KeyCount())
	}
	if p.Row(0).Version != 1 || r.Row(0).Version != 9 || s.Row(0).Version != 42 {
		t.Errorf("versions %d %d %d", p.Row(0).Version, r.Row(0).Version, s.Row(0).Version)
	}
	if s.IsSaved() {
		t.Error("edited page must be unsaved")
	}
}

func TestNodeEditors(t *testing.T) {
	a, b, c := pos(t, 1, codec.PageLeaf), pos(t, 2, codec.PageLeaf), pos(t, 3, codec.PageLeaf)
	n := NewNode(longKeys(10, 11), []Child{{Pos: a}, {Pos: b}})

	n2 := n.InsertChild(1, value.Long(20), Child{Pos: c})
	if n2.KeyCount() != 2 || n2.Child(2).Pos != c {
		t.Fatalf("InsertChild: keys=%d child2=%s", n2.KeyCount(), n2.Child(2).Pos)
	}

	n3 := n2.RemoveChild(0)
	if n3.KeyCount() != 1 || !value.Equal(n3.Key(0), value.Long(20)) || n3.Child(0).Pos != b {
		t.Errorf("RemoveChild(0): key=%v child0=%s", n3.Key(0), n3.Child(0).Pos)
	}
	n4 := n2.RemoveChild(2)
	if n4.KeyCount() != 1 || !value.Equal(n4.Key(0), value.Long(10)) || n4.Child(1).Pos != b {
		t.Errorf("RemoveChild(2): key=%v child1=%s", n4.Key(0), n4.Child(1).Pos)
	}
	if n.SetChild(0, Child{Pos: c}).Child(0).Pos != c || n.Child(0).Pos != a {
		t.Error("SetChild mutated the original")
	}
}

func TestSplit(t *testing.T) {
	leaf := sampleLeaf(5)
	left, sep, right := leaf.Split()
	if left.KeyCount() != 2 || right.KeyCount() != 3 {
		t.Fatalf("leaf split %d/%d", left.KeyCount(), right.KeyCount())
	}
	if !value.Equal(sep, right.Key(0)) {
		t.Errorf("leaf separator %v, right starts at %v", sep, right.Key(0))
	}

	children := make([]Child, 5)
	for i := range children {
		children[i] = Child{Pos: pos(t, uint32(i+1), codec.PageLeaf)}
	}
	node := NewNode(longKeys(1, 5), children)
	left, sep, right = node.Split()
	if left.KeyCount() != 2 || right.KeyCount() != 1 {
		t.Fatalf("node split %d/%d", left.KeyCount(), right.KeyCount())
	}
	if left.ChildCount() != 3 || right.ChildCount() != 2 {
		t.Errorf("node split children %d/%d", left.ChildCount(), right.ChildCount())
	}
	if !value.Equal(sep, value.Long(3)) {
		t.Errorf("node separator = %v, want 3", sep)
	}
	if NewNode(longKeys(1, 3), children[:3]).CanSplit() {
		t.Error("two-key node must not split")
	}
}
