// Package value defines the typed values stored in keys and rows, their
// ordering, their binary encoding and overflow-checked arithmetic.
package value

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
)

// Type is the tag of a Value. Tags order values of unrelated types.
type Type uint8

const (
	TypeNull Type = iota
	TypeByte
	TypeInt
	TypeLong
	TypeString
	TypeBytes
)

// String returns the string representation of the type.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeByte:
		return "byte"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged value.
type Value struct {
	typ Type
	i   int64
	s   string
	b   []byte
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Byte returns a single-byte integer.
func Byte(x int8) Value { return Value{typ: TypeByte, i: int64(x)} }

// Int returns a 32-bit integer.
func Int(x int32) Value { return Value{typ: TypeInt, i: int64(x)} }

// Long returns a 64-bit integer.
func Long(x int64) Value { return Value{typ: TypeLong, i: x} }

// String returns a string value.
func String(s string) Value { return Value{typ: TypeString, s: s} }

// Bytes returns a binary value. The slice is retained.
func Bytes(b []byte) Value { return Value{typ: TypeBytes, b: b} }

// Type returns the value's tag.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.typ == TypeNull }

// IsNumeric reports whether v is an integer of any width.
func (v Value) IsNumeric() bool {
	return v.typ == TypeByte || v.typ == TypeInt || v.typ == TypeLong
}

// Int64 returns the integer held by v, widened to 64 bits.
func (v Value) Int64() (int64, bool) {
	return v.i, v.IsNumeric()
}

// Str returns the string held by v, or "" for other types.
func (v Value) Str() string { return v.s }

// Raw returns the bytes held by v, or nil for other types.
func (v Value) Raw() []byte { return v.b }

// String formats v for tools and logs.
func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "NULL"
	case TypeByte, TypeInt, TypeLong:
		return strconv.FormatInt(v.i, 10)
	case TypeString:
		return strconv.Quote(v.s)
	case TypeBytes:
		return fmt.Sprintf("X'%x'", v.b)
	default:
		return "?"
	}
}

// MemorySize estimates the bytes retained by v.
func (v Value) MemorySize() int {
	return 32 + len(v.s) + len(v.b)
}

// Compare orders two values. NULL sorts first, integers compare numerically
// across widths, strings and byte strings compare lexicographically, and
// values of unrelated types order by tag.
func Compare(a, b Value) int {
	if a.typ == TypeNull || b.typ == TypeNull {
		switch {
		case a.typ == b.typ:
			return 0
		case a.typ == TypeNull:
			return -1
		default:
			return 1
		}
	}
	if a.IsNumeric() && b.IsNumeric() {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	}
	if a.typ != b.typ {
		if a.typ < b.typ {
			return -1
		}
		return 1
	}
	switch a.typ {
	case TypeString:
		return strings.Compare(a.s, b.s)
	case TypeBytes:
		return bytes.Compare(a.b, b.b)
	}
	return 0
}

// Equal reports whether Compare(a, b) == 0.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// Parse reads the textual form produced by String. Bare integers become
// Long values; anything that is neither quoted, hex nor numeric is taken
// as a plain string.
func Parse(s string) Value {
	s = strings.TrimSpace(s)
	switch {
	case s == "NULL" || s == "":
		return Null()
	case strings.HasPrefix(s, `"`):
		if u, err := strconv.Unquote(s); err == nil {
			return String(u)
		}
	case strings.HasPrefix(s, "X'") && strings.HasSuffix(s, "'"):
		if b, err := hex.DecodeString(s[2 : len(s)-1]); err == nil {
			return Bytes(b)
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Long(n)
	}
	return String(s)
}

// Append appends the encoding of v to dst: a tag byte, then a zig-zag
// VarLong for integers or a VarInt length and the data for strings and
// byte strings.
func Append(dst []byte, v Value) []byte {
	dst = append(dst, byte(v.typ))
	switch v.typ {
	case TypeByte, TypeInt, TypeLong:
		dst = codec.AppendVarLong(dst, zigzag(v.i))
	case TypeString:
		dst = codec.AppendVarInt(dst, uint32(len(v.s)))
		dst = append(dst, v.s...)
	case TypeBytes:
		dst = codec.AppendVarInt(dst, uint32(len(v.b)))
		dst = append(dst, v.b...)
	}
	return dst
}

// EncodedSize returns len(Append(nil, v)).
func EncodedSize(v Value) int {
	switch v.typ {
	case TypeByte, TypeInt, TypeLong:
		return 1 + codec.VarLongLen(zigzag(v.i))
	case TypeString:
		return 1 + codec.VarIntLen(uint32(len(v.s))) + len(v.s)
	case TypeBytes:
		return 1 + codec.VarIntLen(uint32(len(v.b))) + len(v.b)
	default:
		return 1
	}
}

// Read decodes one value. Decoded strings and byte strings are copied out
// of the reader's buffer.
func Read(r *codec.Reader) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	switch Type(tag) {
	case TypeNull:
		return Null(), nil
	case TypeByte, TypeInt, TypeLong:
		u, err := r.ReadVarLong()
		if err != nil {
			return Value{}, err
		}
		x := unzigzag(u)
		v := Value{typ: Type(tag), i: x}
		if lo, hi := bounds(v.typ); x < lo || x > hi {
			return Value{}, storage.Corruptf("%s value %d out of range", v.typ, x)
		}
		return v, nil
	case TypeString, TypeBytes:
		n, err := r.ReadVarInt()
		if err != nil {
			return Value{}, err
		}
		data, err := r.ReadBytes(int(n))
		if err != nil {
			return Value{}, err
		}
		if Type(tag) == TypeString {
			return String(string(data)), nil
		}
		return Bytes(append([]byte(nil), data...)), nil
	default:
		return Value{}, storage.Corruptf("unknown value tag %d", tag)
	}
}

func zigzag(x int64) uint64 { return uint64(x<<1) ^ uint64(x>>63) }

func unzigzag(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }
