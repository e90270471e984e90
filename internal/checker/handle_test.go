package checker

import (
	"testing"

	"github.com/Siddhesh-Ghadi/rumur/internal/test"
)

func TestHandleRoundTrip(t *testing.T) {
	// Write then read every value in range through a misaligned handle.
	base := make([]byte, 4)
	h := NewHandle(base, 3, 5) // 5-bit field starting mid-byte

	const lb, ub = -7, 8
	for v := int64(lb); v <= ub; v++ {
		if err := h.Write(lb, ub, v); err != nil {
			t.Fatalf("Write(%d): %v", v, err)
		}
		got, err := h.Read(lb, ub)
		if err != nil {
			t.Fatalf("Read after Write(%d): %v", v, err)
		}
		test.AssertEqual(t, got, v)
	}
}

func TestHandleReadPurity(t *testing.T) {
	base := make([]byte, 8)
	h := NewHandle(base, 13, 11)
	if err := h.Write(0, 2000, 1234); err != nil {
		t.Fatal(err)
	}
	a, err := h.Read(0, 2000)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Read(0, 2000)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, a, b)
}

func TestHandleUndefinedRead(t *testing.T) {
	base := make([]byte, 2)
	h := NewHandle(base, 4, 6)

	if !h.IsUndefined() {
		t.Error("fresh field not undefined")
	}
	_, err := h.Read(0, 10)
	f, ok := err.(*Failure)
	if !ok || f.Kind != UndefinedRead {
		t.Errorf("Read of undefined = %v, want UndefinedRead", err)
	}
}

func TestHandleZeroIdempotent(t *testing.T) {
	base := []byte{0xff, 0xff, 0xff}
	h := NewHandle(base, 5, 9)

	h.Zero()
	if !h.IsUndefined() {
		t.Error("field still defined after Zero")
	}

	// Neighboring bits survive.
	for i := uint64(0); i < 5; i++ {
		if base[0]>>(i)&1 == 0 {
			t.Errorf("bit %d below the field was cleared", i)
		}
	}
	for i := uint64(14); i < 24; i++ {
		if base[i/8]>>(i%8)&1 == 0 {
			t.Errorf("bit %d above the field was cleared", i)
		}
	}

	h.Zero()
	if !h.IsUndefined() {
		t.Error("Zero not idempotent")
	}
}

func TestHandleOutOfRangeWrite(t *testing.T) {
	base := make([]byte, 2)
	h := NewHandle(base, 0, 9)

	err := h.Write(0, 255, 300)
	f, ok := err.(*Failure)
	if !ok || f.Kind != OutOfRangeWrite {
		t.Errorf("Write(300) = %v, want OutOfRangeWrite", err)
	}
}

func TestHandleCopy(t *testing.T) {
	src := make([]byte, 3)
	dst := make([]byte, 3)

	sh := NewHandle(src, 2, 13)
	dh := NewHandle(dst, 7, 13)

	sh.WriteRaw(0x1234 & 0x1fff)
	Copy(dh, sh)
	test.AssertEqual(t, dh.ReadRaw(), sh.ReadRaw())
}

func TestHandleNarrow(t *testing.T) {
	base := make([]byte, 4)
	h := NewHandle(base, 3, 20)

	n := h.Narrow(5, 7)
	test.AssertEqual(t, n.Offset, uint64(8))
	test.AssertEqual(t, n.Width, uint64(7))

	n.WriteRaw(0x55)
	test.AssertEqual(t, n.ReadRaw(), uint64(0x55))
}

func TestHandleIndex(t *testing.T) {
	base := make([]byte, 8)
	root := NewHandle(base, 4, 30) // 10 elements of 3 bits

	h, err := root.Index(3, 2, 11, 5)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, h.Offset, uint64(4+3*3))
	test.AssertEqual(t, h.Width, uint64(3))

	_, err = root.Index(3, 2, 11, 12)
	f, ok := err.(*Failure)
	if !ok || f.Kind != IndexOutOfRange {
		t.Errorf("out-of-range index = %v, want IndexOutOfRange", err)
	}
}

func TestEncodingUndefinedIsZero(t *testing.T) {
	// The encoding reserves 0: value lb encodes to 1.
	base := make([]byte, 1)
	h := NewHandle(base, 0, 4)
	if err := h.Write(-3, 3, -3); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, h.ReadRaw(), uint64(1))
}

func TestDecodeValue(t *testing.T) {
	v, err := DecodeValue(-3, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, v, int64(-3))

	v, err = DecodeValue(-3, 3, 7)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, v, int64(3))

	if _, err := DecodeValue(-3, 3, 8); err == nil {
		t.Error("decode of out-of-range encoding succeeded")
	}
}

func TestMurmurHashKnownBehavior(t *testing.T) {
	a := murmurHash64A([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	b := murmurHash64A([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	test.AssertEqual(t, a, b)

	c := murmurHash64A([]byte{1, 2, 3, 4, 5, 6, 7, 8, 10})
	if a == c {
		t.Error("distinct inputs hashed equal")
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if _, err := add(int64(1)<<62, int64(1)<<62); err == nil {
		t.Error("overflowing add succeeded")
	}
	if v, err := add(2, 3); err != nil || v != 5 {
		t.Errorf("add(2, 3) = %d, %v", v, err)
	}
	if _, err := divide(1, 0); err == nil {
		t.Error("division by zero succeeded")
	}
	if _, err := mod(1, 0); err == nil {
		t.Error("modulus by zero succeeded")
	}
	if v, err := negate(-5); err != nil || v != 5 {
		t.Errorf("negate(-5) = %d, %v", v, err)
	}
}
