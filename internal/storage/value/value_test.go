package value

import (
	"math"
	"testing"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/cockroachdb/errors"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"null equals null", Null(), Null(), 0},
		{"null before int", Null(), Int(-5), -1},
		{"int after null", Int(-5), Null(), 1},
		{"byte vs long", Byte(3), Long(4), -1},
		{"int equals long", Int(7), Long(7), 0},
		{"long vs byte", Long(-1), Byte(-2), 1},
		{"strings", String("abc"), String("abd"), -1},
		{"bytes", Bytes([]byte{1, 2}), Bytes([]byte{1}), 1},
		{"number before string", Long(math.MaxInt64), String(""), -1},
		{"string before bytes", String("z"), Bytes(nil), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	values := []Value{
		Null(),
		Byte(math.MinInt8),
		Byte(math.MaxInt8),
		Int(math.MinInt32),
		Long(math.MaxInt64),
		Long(math.MinInt64),
		Long(0),
		String(""),
		String("héllo"),
		Bytes([]byte{0, 1, 2, 255}),
	}

	var buf []byte
	for _, v := range values {
		before := len(buf)
		buf = Append(buf, v)
		if n := len(buf) - before; n != EncodedSize(v) {
			t.Errorf("EncodedSize(%v) = %d, wrote %d", v, EncodedSize(v), n)
		}
	}

	r := codec.NewReader(buf)
	for _, want := range values {
		got, err := Read(r)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if got.Type() != want.Type() || !Equal(got, want) {
			t.Errorf("Read = %v (%s), want %v (%s)", got, got.Type(), want, want.Type())
		}
	}
}

func TestReadRejectsBadInput(t *testing.T) {
	if _, err := Read(codec.NewReader([]byte{99})); !errors.Is(err, storage.ErrCorruptPage) {
		t.Errorf("unknown tag: expected ErrCorruptPage, got %v", err)
	}
	if _, err := Read(codec.NewReader([]byte{byte(TypeString), 5, 'a'})); !errors.Is(err, storage.ErrTruncatedData) {
		t.Errorf("short string: expected ErrTruncatedData, got %v", err)
	}
	outOfRange := Append(nil, Long(300))
	outOfRange[0] = byte(TypeByte)
	if _, err := Read(codec.NewReader(outOfRange)); !errors.Is(err, storage.ErrCorruptPage) {
		t.Errorf("byte out of range: expected ErrCorruptPage, got %v", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"42", Long(42)},
		{"-7", Long(-7)},
		{`"quoted"`, String("quoted")},
		{"plain", String("plain")},
		{"NULL", Null()},
		{"X'00ff'", Bytes([]byte{0, 0xff})},
	}
	for _, tt := range tests {
		got := Parse(tt.in)
		if got.Type() != tt.want.Type() || !Equal(got, tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if Parse(got.String()).Type() != got.Type() {
			t.Errorf("Parse(String(%v)) changed type", got)
		}
	}
}

// =============================================================================
// Arithmetic Tests
// =============================================================================

func TestByteArithmeticOverflow(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(a, b Value, m OverflowMode) (Value, error)
		a, b    Value
		wrapped int64
	}{
		{"add", Add, Byte(100), Byte(100), -56},
		{"subtract", Subtract, Byte(-100), Byte(100), 56},
		{"multiply", Multiply, Byte(16), Byte(16), 0},
		{"divide", Divide, Byte(-128), Byte(-1), -128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(tt.a, tt.b, OverflowError); !errors.Is(err, ErrOverflow) {
				t.Errorf("error mode: expected ErrOverflow, got %v", err)
			}
			got, err := tt.fn(tt.a, tt.b, OverflowWrap)
			if err != nil {
				t.Fatalf("wrap mode failed: %v", err)
			}
			if got.Type() != TypeByte {
				t.Errorf("type = %s, want byte", got.Type())
			}
			if n, _ := got.Int64(); n != tt.wrapped {
				t.Errorf("wrapped = %d, want %d", n, tt.wrapped)
			}
		})
	}
}

func TestArithmeticWidening(t *testing.T) {
	got, err := Add(Byte(100), Int(100), OverflowError)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got.Type() != TypeInt {
		t.Errorf("type = %s, want int", got.Type())
	}
	if n, _ := got.Int64(); n != 200 {
		t.Errorf("sum = %d, want 200", n)
	}
}

func TestLongOverflow(t *testing.T) {
	if _, err := Add(Long(math.MaxInt64), Long(1), OverflowError); !errors.Is(err, ErrOverflow) {
		t.Errorf("Add: expected ErrOverflow, got %v", err)
	}
	if _, err := Multiply(Long(math.MinInt64), Long(-1), OverflowError); !errors.Is(err, ErrOverflow) {
		t.Errorf("Multiply: expected ErrOverflow, got %v", err)
	}
	if _, err := Multiply(Long(1<<32), Long(1<<32), OverflowError); !errors.Is(err, ErrOverflow) {
		t.Errorf("Multiply large: expected ErrOverflow, got %v", err)
	}
	got, err := Add(Long(math.MaxInt64), Long(1), OverflowWrap)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	if n, _ := got.Int64(); n != math.MinInt64 {
		t.Errorf("wrapped = %d", n)
	}
}

func TestNegate(t *testing.T) {
	if _, err := Negate(Byte(math.MinInt8), OverflowError); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	got, err := Negate(Int(5), OverflowError)
	if err != nil {
		t.Fatalf("Negate failed: %v", err)
	}
	if n, _ := got.Int64(); n != -5 || got.Type() != TypeInt {
		t.Errorf("Negate(5) = %v", got)
	}
	if got, _ := Negate(Null(), OverflowError); !got.IsNull() {
		t.Errorf("Negate(NULL) = %v", got)
	}
}

func TestArithmeticErrors(t *testing.T) {
	if _, err := Divide(Int(1), Int(0), OverflowWrap); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
	if _, err := Add(String("a"), Int(1), OverflowError); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	got, err := Add(Null(), Int(1), OverflowError)
	if err != nil || !got.IsNull() {
		t.Errorf("NULL + 1 = %v, %v", got, err)
	}
}
