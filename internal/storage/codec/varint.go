package codec

import (
	"encoding/binary"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
)

// Encoded size limits.
const (
	MaxVarIntLen  = 5
	MaxVarLongLen = 10
)

// VarIntLen returns the number of bytes WriteVarInt uses for x.
func VarIntLen(x uint32) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// VarLongLen returns the number of bytes WriteVarLong uses for x.
func VarLongLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// AppendVarInt appends the VarInt encoding of x to dst.
func AppendVarInt(dst []byte, x uint32) []byte {
	for x >= 0x80 {
		dst = append(dst, byte(x)|0x80)
		x >>= 7
	}
	return append(dst, byte(x))
}

// AppendVarLong appends the VarLong encoding of x to dst.
func AppendVarLong(dst []byte, x uint64) []byte {
	for x >= 0x80 {
		dst = append(dst, byte(x)|0x80)
		x >>= 7
	}
	return append(dst, byte(x))
}

// Writer is an append-only byte cursor.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the written bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards the written bytes and keeps the buffer.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// WriteVarInt appends a VarInt.
func (w *Writer) WriteVarInt(x uint32) { w.buf = AppendVarInt(w.buf, x) }

// WriteVarLong appends a VarLong.
func (w *Writer) WriteVarLong(x uint64) { w.buf = AppendVarLong(w.buf, x) }

// WriteByte appends one byte. It never fails.
func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

// WriteUint16 appends a little-endian uint16.
func (w *Writer) WriteUint16(x uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, x) }

// WriteUint32 appends a little-endian uint32.
func (w *Writer) WriteUint32(x uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, x) }

// WriteUint64 appends a little-endian uint64.
func (w *Writer) WriteUint64(x uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, x) }

// Write appends p. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// PutUint32At overwrites four bytes at off, used to backfill lengths.
func (w *Writer) PutUint32At(off int, x uint32) {
	binary.LittleEndian.PutUint32(w.buf[off:], x)
}

// PutUint16At overwrites two bytes at off.
func (w *Writer) PutUint16At(off int, x uint16) {
	binary.LittleEndian.PutUint16(w.buf[off:], x)
}

// Reader is a forward-only cursor over a byte slice. Every read fails with
// storage.ErrTruncatedData instead of running past the end.
type Reader struct {
	buf []byte
	pos int
}

// NewReader creates a reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Pos returns the number of bytes consumed.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// ReadVarInt decodes a VarInt. The fifth byte contributes its value shifted
// left by 28 bits unmasked.
func (r *Reader) ReadVarInt() (uint32, error) {
	var x uint32
	for i := 0; i < MaxVarIntLen; i++ {
		if r.pos >= len(r.buf) {
			return 0, storage.Truncatedf("varint ended after %d bytes", i)
		}
		b := r.buf[r.pos]
		r.pos++
		if i == MaxVarIntLen-1 {
			return x | uint32(b)<<28, nil
		}
		x |= uint32(b&0x7f) << (7 * i)
		if b < 0x80 {
			return x, nil
		}
	}
	return x, nil
}

// ReadVarLong decodes a VarLong. A continuation bit on the tenth byte is
// reported as truncated data.
func (r *Reader) ReadVarLong() (uint64, error) {
	var x uint64
	for i := 0; i < MaxVarLongLen; i++ {
		if r.pos >= len(r.buf) {
			return 0, storage.Truncatedf("varlong ended after %d bytes", i)
		}
		b := r.buf[r.pos]
		r.pos++
		x |= uint64(b&0x7f) << (7 * i)
		if b < 0x80 {
			return x, nil
		}
	}
	return 0, storage.Truncatedf("varlong has no terminator within %d bytes", MaxVarLongLen)
}

// ReadByte reads one byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, storage.Truncatedf("need 1 byte at offset %d", r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadBytes returns the next n bytes. The slice aliases the reader's buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, storage.Truncatedf("need %d bytes at offset %d, have %d", n, r.pos, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
