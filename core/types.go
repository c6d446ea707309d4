// Package core implements the storage-and-trust primitives of the network:
// threshold secret sharing, the fragment store, the append-only ledger and
// proof-of-availability. It has no knowledge of peers, transport or the
// node daemon — those live one layer up.
package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash256 is a fixed 32-byte opaque digest.
type Hash256 [32]byte

// String returns the lowercase hex encoding of the digest.
func (h Hash256) String() string { return hex.EncodeToString(h[:]) }

// RepoHash identifies a logical repository.
type RepoHash = Hash256

// MicroUnit is the smallest indivisible unit of the internal token; all
// economic arithmetic is integer, never floating point.
type MicroUnit uint64

// Address is the lowercase hex of the SHA-256 of a public key (64 chars).
type Address [32]byte

// String returns the 64-character lowercase hex form of the address.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// NewAddress derives an Address from a raw public key by hashing it.
func NewAddress(pubKey []byte) Address {
	return Address(sha256.Sum256(pubKey))
}

// AddressFromHex parses a 64-character hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, err
	}
	if len(b) != 32 {
		return Address{}, newStorageErr(DatabaseError, "address must decode to 32 bytes")
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// Sha256 hashes data with SHA-256.
func Sha256(data []byte) Hash256 {
	return sha256.Sum256(data)
}

// Sha256Pair hashes the concatenation of a and b — the Merkle internal-node
// combiner.
func Sha256Pair(a, b Hash256) Hash256 {
	buf := make([]byte, 0, 64)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return sha256.Sum256(buf)
}

// Sha256Hex produces the lowercase 64-char hex digest of data.
func Sha256Hex(data []byte) string {
	h := Sha256(data)
	return h.String()
}
