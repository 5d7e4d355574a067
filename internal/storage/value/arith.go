package value

import (
	"math"

	"github.com/cockroachdb/errors"
)

// Arithmetic errors.
var (
	ErrOverflow       = errors.New("numeric value out of range")
	ErrDivisionByZero = errors.New("division by zero")
	ErrTypeMismatch   = errors.New("arithmetic on non-numeric value")
)

// OverflowMode selects what happens when a result leaves the range of its
// type.
type OverflowMode int

const (
	// OverflowError rejects out-of-range results with ErrOverflow.
	OverflowError OverflowMode = iota
	// OverflowWrap truncates results to the width of their type.
	OverflowWrap
)

// String returns the string representation of the mode.
func (m OverflowMode) String() string {
	if m == OverflowWrap {
		return "wrap"
	}
	return "error"
}

// ParseOverflowMode parses "error" or "wrap". Anything else is OverflowError.
func ParseOverflowMode(s string) OverflowMode {
	if s == "wrap" {
		return OverflowWrap
	}
	return OverflowError
}

type op int

const (
	opAdd op = iota
	opSub
	opMul
	opDiv
)

var opNames = [...]string{"+", "-", "*", "/"}

// Add returns a + b in the wider of the two operand types.
func Add(a, b Value, mode OverflowMode) (Value, error) { return arith(opAdd, a, b, mode) }

// Subtract returns a - b in the wider of the two operand types.
func Subtract(a, b Value, mode OverflowMode) (Value, error) { return arith(opSub, a, b, mode) }

// Multiply returns a * b in the wider of the two operand types.
func Multiply(a, b Value, mode OverflowMode) (Value, error) { return arith(opMul, a, b, mode) }

// Divide returns a / b truncated toward zero, in the wider operand type.
func Divide(a, b Value, mode OverflowMode) (Value, error) { return arith(opDiv, a, b, mode) }

// Negate returns -a in a's type.
func Negate(a Value, mode OverflowMode) (Value, error) {
	if a.IsNull() {
		return Null(), nil
	}
	return arith(opSub, Value{typ: a.typ}, a, mode)
}

func arith(o op, a, b Value, mode OverflowMode) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return Value{}, errors.Wrapf(ErrTypeMismatch, "%s %s %s", a.typ, opNames[o], b.typ)
	}

	typ := a.typ
	if b.typ > typ {
		typ = b.typ
	}
	x, y := a.i, b.i

	var r int64
	overflow := false
	switch o {
	case opAdd:
		r = x + y
		overflow = (x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0)
	case opSub:
		r = x - y
		overflow = (y > 0 && r > x) || (y < 0 && r < x)
	case opMul:
		r = x * y
		if x != 0 && y != 0 {
			overflow = r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64)
		}
	case opDiv:
		if y == 0 {
			return Value{}, errors.Wrapf(ErrDivisionByZero, "%d / 0", x)
		}
		if x == math.MinInt64 && y == -1 {
			r, overflow = math.MinInt64, true
		} else {
			r = x / y
		}
	}

	lo, hi := bounds(typ)
	if overflow || r < lo || r > hi {
		if mode == OverflowError {
			return Value{}, errors.Wrapf(ErrOverflow, "%s %d %s %d", typ, x, opNames[o], y)
		}
		r = wrap(r, typ)
	}
	return Value{typ: typ, i: r}, nil
}

func bounds(t Type) (int64, int64) {
	switch t {
	case TypeByte:
		return math.MinInt8, math.MaxInt8
	case TypeInt:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

func wrap(r int64, t Type) int64 {
	switch t {
	case TypeByte:
		return int64(int8(r))
	case TypeInt:
		return int64(int32(r))
	default:
		return r
	}
}
