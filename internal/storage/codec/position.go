package codec

import (
	"fmt"
	"math"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
)

// Position is the 64-bit locator of a serialized page.
// The zero Position refers to no page; chunk ids start at 1.
type Position uint64

// PageType distinguishes leaves from internal nodes.
type PageType uint8

const (
	// PageLeaf holds keys and rows.
	PageLeaf PageType = 0
	// PageNode holds separator keys and child positions.
	PageNode PageType = 1
)

// String returns the string representation of the page type.
func (t PageType) String() string {
	if t == PageNode {
		return "node"
	}
	return "leaf"
}

// Field limits of the position layout.
const (
	MaxChunkID     = 1<<26 - 1
	MaxOffset      = 1<<32 - 1
	UnboundedClass = 31

	typeBits   = 1
	classBits  = 5
	offsetBits = 32

	classShift  = typeBits
	offsetShift = typeBits + classBits
	chunkShift  = offsetShift + offsetBits
)

// EncodeLength maps a byte length to its length class. Lengths up to 32
// bytes map to class 0, and the mapping never decreases as n grows.
func EncodeLength(n int) int {
	if n <= 32 {
		return 0
	}
	x := n
	shift := 0
	for x > 3 {
		shift++
		x = (x >> 1) + (x & 1)
	}
	shift = max(0, shift-4)
	code := (shift << 1) + (x & 1)
	return min(UnboundedClass, code)
}

// MaxLengthForClass returns the largest byte length admitted by a class.
// Class 31 returns math.MaxInt32.
func MaxLengthForClass(class int) int {
	if class >= UnboundedClass {
		return math.MaxInt32
	}
	return (2 + (class & 1)) << ((class >> 1) + 4)
}

// GetPagePos packs a position. It fails with storage.ErrInvalidArgument
// when the chunk id or offset does not fit its field.
func GetPagePos(chunkID uint32, offset int64, length int, typ PageType) (Position, error) {
	if chunkID > MaxChunkID {
		return 0, storage.InvalidArgumentf("chunk id %d exceeds %d", chunkID, MaxChunkID)
	}
	if offset < 0 || offset > MaxOffset {
		return 0, storage.InvalidArgumentf("offset %d outside [0, %d]", offset, int64(MaxOffset))
	}
	if length < 0 {
		return 0, storage.InvalidArgumentf("negative length %d", length)
	}
	if typ > PageNode {
		return 0, storage.InvalidArgumentf("page type %d", typ)
	}
	pos := uint64(chunkID)<<chunkShift |
		uint64(offset)<<offsetShift |
		uint64(EncodeLength(length))<<classShift |
		uint64(typ)
	return Position(pos), nil
}

// ChunkID returns the id of the chunk holding the page.
func (p Position) ChunkID() uint32 { return uint32(p >> chunkShift) }

// Offset returns the page's byte offset within its chunk.
func (p Position) Offset() uint32 { return uint32(p >> offsetShift) }

// LengthClass returns the encoded length class.
func (p Position) LengthClass() int { return int(p>>classShift) & (1<<classBits - 1) }

// MaxLength returns the upper bound on the page's serialized length.
func (p Position) MaxLength() int { return MaxLengthForClass(p.LengthClass()) }

// Type returns the page type.
func (p Position) Type() PageType { return PageType(p & 1) }

// IsZero reports whether p refers to no page.
func (p Position) IsZero() bool { return p == 0 }

// String returns chunk:offset/class and the type, for logs and tools.
func (p Position) String() string {
	if p == 0 {
		return "none"
	}
	return fmt.Sprintf("%d:%d/%d(%s)", p.ChunkID(), p.Offset(), p.LengthClass(), p.Type())
}

// CheckValue folds a 32-bit digest into the 16-bit check stored with pages
// and chunk footers.
func CheckValue(x uint32) uint16 {
	return uint16((x >> 16) ^ x)
}
