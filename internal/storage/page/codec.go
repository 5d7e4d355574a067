package page

import (
	"bytes"
	"io"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
)

// Serialized page layout:
//
//	uint32 length     total bytes of the page, this field included
//	uint16 check      CheckValue of the low 32 bits of xxhash64(body)
//	varint keyCount
//	byte   flags      bit 0 node, bit 1 compressed
//	[byte algorithm, varint rawLength]   when compressed
//	body              keys, then children or rows; compressed when flagged
//
// The check always covers the uncompressed body. Keys and column values use
// the value encoding. Children are uint64 positions. A row is varlong
// version, varlong session, varint column count and the columns.
const (
	flagNode       = 0x01
	flagCompressed = 0x02

	algoSnappy  = 1
	algoDeflate = 2

	// bodies below this size are never compressed
	minCompressSize = 64

	// MaxRawLength bounds the uncompressed body a page header may declare.
	MaxRawLength = 64 << 20
)

// Viewer exposes serialized pages by position. chunk.Store implements it.
type Viewer interface {
	View(pos codec.Position, fn func([]byte) error) error
}

// Appender accepts serialized pages. chunk.Writer implements it.
type Appender interface {
	Append(data []byte, typ codec.PageType) (codec.Position, error)
}

// Checksum returns the stored check value for an uncompressed body.
func Checksum(body []byte) uint16 {
	return codec.CheckValue(uint32(xxhash.Sum64(body)))
}

// Encode serializes p. Every child of a node must already be saved.
func Encode(p *Page, comp storage.Compression) ([]byte, error) {
	raw := codec.NewWriter(p.diskSize)
	for _, k := range p.keys {
		raw.Write(value.Append(nil, k))
	}
	if p.IsLeaf() {
		var buf []byte
		for _, r := range p.rows {
			buf = codec.AppendVarLong(buf[:0], r.Version)
			buf = codec.AppendVarLong(buf, r.Session)
			buf = codec.AppendVarInt(buf, uint32(len(r.Values)))
			for _, v := range r.Values {
				buf = value.Append(buf, v)
			}
			raw.Write(buf)
		}
	} else {
		for i, c := range p.children {
			if c.Pos == 0 {
				return nil, storage.InvalidArgumentf("child %d of node is not saved", i)
			}
			raw.WriteUint64(uint64(c.Pos))
		}
	}
	body := raw.Bytes()

	flags := byte(0)
	if !p.IsLeaf() {
		flags |= flagNode
	}
	algo, packed, err := compress(body, comp)
	if err != nil {
		return nil, err
	}

	out := codec.NewWriter(headerMax + len(body))
	out.WriteUint32(0)
	out.WriteUint16(Checksum(body))
	out.WriteVarInt(uint32(len(p.keys)))
	if algo != 0 {
		out.WriteByte(flags | flagCompressed)
		out.WriteByte(algo)
		out.WriteVarInt(uint32(len(body)))
		out.Write(packed)
	} else {
		out.WriteByte(flags)
		out.Write(body)
	}
	out.PutUint32At(0, uint32(out.Len()))
	return out.Bytes(), nil
}

// compress returns algorithm 0 when the body is stored as is.
func compress(body []byte, comp storage.Compression) (byte, []byte, error) {
	if len(body) < minCompressSize {
		return 0, nil, nil
	}
	var algo byte
	var packed []byte
	switch comp {
	case storage.CompressionSnappy:
		algo, packed = algoSnappy, snappy.Encode(nil, body)
	case storage.CompressionDeflate:
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.BestSpeed)
		if err != nil {
			return 0, nil, err
		}
		if _, err := fw.Write(body); err != nil {
			return 0, nil, err
		}
		if err := fw.Close(); err != nil {
			return 0, nil, err
		}
		algo, packed = algoDeflate, buf.Bytes()
	default:
		return 0, nil, nil
	}
	if len(packed) >= len(body) {
		return 0, nil, nil
	}
	return algo, packed, nil
}

func decompress(algo byte, packed []byte, rawLen int) ([]byte, error) {
	if rawLen > MaxRawLength {
		return nil, storage.Corruptf("raw body length %d exceeds %d", rawLen, MaxRawLength)
	}
	switch algo {
	case algoSnappy:
		n, err := snappy.DecodedLen(packed)
		if err != nil || n != rawLen {
			return nil, storage.Corruptf("snappy body length %d, want %d", n, rawLen)
		}
		raw, err := snappy.Decode(nil, packed)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "snappy decode"), storage.ErrCorruptPage)
		}
		return raw, nil
	case algoDeflate:
		fr := flate.NewReader(bytes.NewReader(packed))
		defer fr.Close()
		raw := make([]byte, rawLen)
		if _, err := io.ReadFull(fr, raw); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "deflate decode"), storage.ErrCorruptPage)
		}
		return raw, nil
	default:
		return nil, storage.Corruptf("unknown compression algorithm %d", algo)
	}
}

// Decode parses the page at pos from data, which may extend past the
// page's end. It fails with storage.ErrCorruptPage when the check value,
// key order, page type, child count or child chunk ids are wrong, and with
// storage.ErrTruncatedData when data ends before the declared length.
func Decode(data []byte, pos codec.Position) (*Page, error) {
	r := codec.NewReader(data)
	length, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int(length) > pos.MaxLength() {
		return nil, storage.Corruptf("page %s: length %d exceeds class bound %d", pos, length, pos.MaxLength())
	}
	if int(length) > len(data) {
		return nil, storage.Truncatedf("page %s: length %d, have %d bytes", pos, length, len(data))
	}
	r = codec.NewReader(data[:length])
	r.ReadUint32()
	check, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	keyCount, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	typ := codec.PageLeaf
	if flags&flagNode != 0 {
		typ = codec.PageNode
	}
	if typ != pos.Type() {
		return nil, storage.Corruptf("page %s: stored type %s", pos, typ)
	}

	var body []byte
	if flags&flagCompressed != 0 {
		algo, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		rawLen, err := r.ReadVarInt()
		if err != nil {
			return nil, err
		}
		packed, _ := r.ReadBytes(r.Remaining())
		if body, err = decompress(algo, packed, int(rawLen)); err != nil {
			return nil, errors.Wrapf(err, "page %s", pos)
		}
	} else {
		body, _ = r.ReadBytes(r.Remaining())
	}

	if Checksum(body) != check {
		return nil, storage.Corruptf("page %s: check value mismatch", pos)
	}

	p, err := decodeBody(body, int(keyCount), typ, pos)
	if err != nil {
		return nil, err
	}
	p.pos = pos
	return p, nil
}

func decodeBody(body []byte, keyCount int, typ codec.PageType, pos codec.Position) (*Page, error) {
	r := codec.NewReader(body)
	if keyCount > len(body) {
		return nil, storage.Corruptf("page %s: %d keys in %d bytes", pos, keyCount, len(body))
	}
	keys := make([]value.Value, keyCount)
	for i := range keys {
		k, err := value.Read(r)
		if err != nil {
			return nil, errors.Wrapf(err, "page %s key %d", pos, i)
		}
		if i > 0 && value.Compare(keys[i-1], k) >= 0 {
			return nil, storage.Corruptf("page %s: key %d out of order", pos, i)
		}
		keys[i] = k
	}

	var p *Page
	if typ == codec.PageNode {
		if keyCount == 0 {
			return nil, storage.Corruptf("page %s: node without keys", pos)
		}
		children := make([]Child, keyCount+1)
		for i := range children {
			raw, err := r.ReadUint64()
			if err != nil {
				return nil, errors.Wrapf(err, "page %s child %d", pos, i)
			}
			c := codec.Position(raw)
			if c == 0 || c.ChunkID() > pos.ChunkID() {
				return nil, storage.Corruptf("page %s: child %d references %s", pos, i, c)
			}
			children[i] = Child{Pos: c}
		}
		p = NewNode(keys, children)
	} else {
		rows := make([]Row, keyCount)
		for i := range rows {
			row, err := readRow(r)
			if err != nil {
				return nil, errors.Wrapf(err, "page %s row %d", pos, i)
			}
			rows[i] = row
		}
		p = NewLeaf(keys, rows)
	}

	if r.Remaining() != 0 {
		return nil, storage.Corruptf("page %s: %d trailing bytes", pos, r.Remaining())
	}
	return p, nil
}

func readRow(r *codec.Reader) (Row, error) {
	var row Row
	var err error
	if row.Version, err = r.ReadVarLong(); err != nil {
		return row, err
	}
	if row.Session, err = r.ReadVarLong(); err != nil {
		return row, err
	}
	n, err := r.ReadVarInt()
	if err != nil {
		return row, err
	}
	if int(n) > r.Remaining() {
		return row, storage.Truncatedf("row declares %d columns, %d bytes left", n, r.Remaining())
	}
	row.Values = make([]value.Value, n)
	for i := range row.Values {
		if row.Values[i], err = value.Read(r); err != nil {
			return row, err
		}
	}
	return row, nil
}

// Write serializes p into w and returns the saved copy carrying its
// position.
func Write(w Appender, p *Page, comp storage.Compression) (*Page, error) {
	data, err := Encode(p, comp)
	if err != nil {
		return nil, err
	}
	pos, err := w.Append(data, p.typ)
	if err != nil {
		return nil, err
	}
	return p.saved(pos), nil
}

// Read fetches and decodes the page at pos.
func Read(v Viewer, pos codec.Position) (*Page, error) {
	if pos == 0 {
		return nil, storage.InvalidArgumentf("read of the zero position")
	}
	var p *Page
	err := v.View(pos, func(data []byte) error {
		var err error
		p, err = Decode(data, pos)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
