package core

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

func TestFieldAddCommutative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := FieldFromUint64(rapid.Uint64().Draw(t, "a"))
		b := FieldFromUint64(rapid.Uint64().Draw(t, "b"))
		if !a.Add(b).Equal(b.Add(a)) {
			t.Fatalf("a+b != b+a")
		}
	})
}

func TestFieldMulAssociative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := FieldFromUint64(rapid.Uint64().Draw(t, "a"))
		b := FieldFromUint64(rapid.Uint64().Draw(t, "b"))
		c := FieldFromUint64(rapid.Uint64().Draw(t, "c"))
		lhs := a.Mul(b).Mul(c)
		rhs := a.Mul(b.Mul(c))
		if !lhs.Equal(rhs) {
			t.Fatalf("(a*b)*c != a*(b*c)")
		}
	})
}

func TestFieldIdentities(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := FieldFromUint64(rapid.Uint64().Draw(t, "a"))
		if !a.Add(FieldZero()).Equal(a) {
			t.Fatalf("a+0 != a")
		}
		if !a.Mul(FieldOne()).Equal(a) {
			t.Fatalf("a*1 != a")
		}
	})
}

func TestFieldInverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Uint64Range(1, ^uint64(0)).Draw(t, "n")
		a := FieldFromUint64(n)
		inv, err := a.Inverse()
		if err != nil {
			t.Fatalf("inverse: %v", err)
		}
		if !a.Mul(inv).Equal(FieldOne()) {
			t.Fatalf("a * inverse(a) != 1")
		}
	})
}

func TestFieldInverseOfZero(t *testing.T) {
	_, err := FieldZero().Inverse()
	if err == nil {
		t.Fatal("expected ZeroInverse error")
	}
	var se *ShamirError
	if !asShamirError(err, &se) || se.Kind != ZeroInverse {
		t.Fatalf("expected ZeroInverse, got %v", err)
	}
}

func TestFieldBytesRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Uint64().Draw(t, "n")
		a := FieldFromUint64(n)
		b := a.ToBytes()
		back, err := FieldFromBytes(b[:])
		if err != nil {
			t.Fatalf("from_bytes: %v", err)
		}
		if !back.Equal(a) {
			t.Fatalf("round trip mismatch")
		}
	})
}

func TestFieldFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := FieldFromBytes(make([]byte, 31)); err == nil {
		t.Fatal("expected error for 31-byte input")
	}
	if _, err := FieldFromBytes(make([]byte, 33)); err == nil {
		t.Fatal("expected error for 33-byte input")
	}
}

func asShamirError(err error, target **ShamirError) bool {
	se, ok := err.(*ShamirError)
	if !ok {
		return false
	}
	*target = se
	return true
}

func TestFieldToBytesCanonicalLength(t *testing.T) {
	a := FieldFromUint64(1)
	b := a.ToBytes()
	if len(b) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(b))
	}
	if !bytes.Equal(b[:31], make([]byte, 31)) {
		t.Fatalf("expected leading zero padding")
	}
}
