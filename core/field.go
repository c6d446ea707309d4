package core

import "math/big"

// fieldPrime is 2^256 - 189, the modulus every FieldElement is reduced
// against. All arithmetic here uses math/big exclusively — no floats, ever.
var fieldPrime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 256)
	return p.Sub(p, big.NewInt(189))
}()

// FieldElement is a non-negative integer modulo fieldPrime, always stored
// canonically reduced into [0, p).
type FieldElement struct {
	v *big.Int
}

// FieldZero and FieldOne are the additive and multiplicative identities.
func FieldZero() FieldElement { return FieldElement{v: big.NewInt(0)} }
func FieldOne() FieldElement  { return FieldElement{v: big.NewInt(1)} }

// FieldFromUint64 builds a FieldElement from a small unsigned integer.
func FieldFromUint64(n uint64) FieldElement {
	return FieldElement{v: reduce(new(big.Int).SetUint64(n))}
}

// FieldFromBytes accepts exactly 32 bytes, big-endian, and reduces mod p.
func FieldFromBytes(b []byte) (FieldElement, error) {
	if len(b) != 32 {
		return FieldElement{}, newShamirErr(InconsistentBlocks, "field element requires exactly 32 bytes")
	}
	v := new(big.Int).SetBytes(b)
	return FieldElement{v: reduce(v)}, nil
}

// ToBytes emits the canonical 32-byte big-endian representation.
func (f FieldElement) ToBytes() [32]byte {
	var out [32]byte
	b := f.v.Bytes()
	copy(out[32-len(b):], b)
	return out
}

func reduce(v *big.Int) *big.Int {
	r := new(big.Int).Mod(v, fieldPrime)
	if r.Sign() < 0 {
		r.Add(r, fieldPrime)
	}
	return r
}

// Add returns f + g mod p.
func (f FieldElement) Add(g FieldElement) FieldElement {
	return FieldElement{v: reduce(new(big.Int).Add(f.v, g.v))}
}

// Sub returns f - g mod p.
func (f FieldElement) Sub(g FieldElement) FieldElement {
	return FieldElement{v: reduce(new(big.Int).Sub(f.v, g.v))}
}

// Mul returns f * g mod p.
func (f FieldElement) Mul(g FieldElement) FieldElement {
	return FieldElement{v: reduce(new(big.Int).Mul(f.v, g.v))}
}

// Inverse returns f^-1 mod p via Fermat's little theorem (a^(p-2) mod p).
// Fails with ZeroInverse when f is zero.
func (f FieldElement) Inverse() (FieldElement, error) {
	if f.v.Sign() == 0 {
		return FieldElement{}, newShamirErr(ZeroInverse, "")
	}
	exp := new(big.Int).Sub(fieldPrime, big.NewInt(2))
	r := new(big.Int).Exp(f.v, exp, fieldPrime)
	return FieldElement{v: r}, nil
}

// Div returns f / g mod p, i.e. f * g^-1.
func (f FieldElement) Div(g FieldElement) (FieldElement, error) {
	inv, err := g.Inverse()
	if err != nil {
		return FieldElement{}, err
	}
	return f.Mul(inv), nil
}

// IsZero reports whether f is the additive identity.
func (f FieldElement) IsZero() bool { return f.v.Sign() == 0 }

// Equal reports whether f and g hold the same reduced value.
func (f FieldElement) Equal(g FieldElement) bool { return f.v.Cmp(g.v) == 0 }
