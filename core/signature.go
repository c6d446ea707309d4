package core

import (
	"crypto/ed25519"
	"errors"
	"io"
)

// KeyPair holds an Ed25519 signing keypair. Seed round-trips to exactly 32
// bytes, as required by §4.B.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 keypair from rng, which must be a
// cryptographically secure source (§5: "split and generate ... must accept a
// cryptographically secure RNG handle").
func GenerateKeyPair(rng io.Reader) (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rng)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// KeyPairFromSeed rebuilds a keypair from its 32-byte seed.
func KeyPairFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, errors.New("signature: seed must be 32 bytes")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return KeyPair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

// Seed returns the 32-byte seed this keypair was derived from.
func (kp KeyPair) Seed() []byte { return kp.Private.Seed() }

// Address derives this keypair's network Address from its public key.
func (kp KeyPair) Address() Address { return NewAddress(kp.Public) }

// Sign signs msg with the keypair's private key.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify checks sig for msg against pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}
