// Package codec implements the bit-exact encodings shared by every layer of
// the storage format.
//
// # Positions
//
// A Position locates a serialized page inside a chunk. It packs four fields
// into a uint64, least significant bit first:
//
//	bit  0      page type (0 = leaf, 1 = node)
//	bits 1-5    length class
//	bits 6-37   byte offset within the chunk
//	bits 38-63  chunk id
//
// The length class is an upper bound on the page's serialized length. Class
// c < 31 admits at most (2 + (c & 1)) << ((c >> 1) + 4) bytes; class 31 is
// unbounded. A reader never needs the exact length to fetch a page.
//
// # Variable-Length Integers
//
// VarInt and VarLong store 7 data bits per byte, least significant group
// first, with the high bit set on every byte except the last. A VarInt takes
// at most 5 bytes and a VarLong at most 10.
//
//	w := codec.NewWriter(16)
//	w.WriteVarInt(300)     // 0xAC 0x02
//	r := codec.NewReader(w.Bytes())
//	v, err := r.ReadVarInt()
package codec
