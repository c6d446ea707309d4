package core

import (
	"crypto/ed25519"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
)

// Challenge asks a node to prove it currently holds a specific byte range of
// a stored fragment.
type Challenge struct {
	ChallengeID string
	RepoHash    RepoHash
	FragmentID  uint32
	ShareID     uint8
	RangeStart  uint64
	RangeLen    uint32
	Nonce       [32]byte
	IssuedAt    time.Time
	TimeoutSecs uint32
}

// ChallengeProof is a node's response to a Challenge.
type ChallengeProof struct {
	ChallengeID string
	ResponseHash Hash256
	Signature    [ed25519.SignatureSize]byte
	SignerPubKey ed25519.PublicKey
	RespondedAt  time.Time
}

// GenerateChallenge picks a random range within [0, fragmentSize) sized
// between cfg.ChallengeMinBytes and min(cfg.ChallengeMaxBytes, fragmentSize),
// and a fresh nonce and UUIDv4 challenge id, using rng as the sole source of
// randomness (§4.E, §9 Open Question 3: rng must be cryptographically
// secure).
func GenerateChallenge(rng io.Reader, repo RepoHash, fragmentID uint32, shareID uint8, fragmentSize uint64, cfg Config) (Challenge, error) {
	if fragmentSize < uint64(cfg.ChallengeMinBytes) {
		return Challenge{}, newChallengeErr(FragmentTooSmall, "")
	}

	maxLen := cfg.ChallengeMaxBytes
	if uint64(maxLen) > fragmentSize {
		maxLen = uint32(fragmentSize)
	}

	rangeLen, err := randomUint32InRange(rng, cfg.ChallengeMinBytes, maxLen)
	if err != nil {
		return Challenge{}, err
	}

	maxStart := fragmentSize - uint64(rangeLen)
	rangeStart, err := randomUint64InRange(rng, 0, maxStart)
	if err != nil {
		return Challenge{}, err
	}

	var nonce [32]byte
	if _, err := io.ReadFull(rng, nonce[:]); err != nil {
		return Challenge{}, err
	}

	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return Challenge{}, err
	}

	return Challenge{
		ChallengeID: id.String(),
		RepoHash:    repo,
		FragmentID:  fragmentID,
		ShareID:     shareID,
		RangeStart:  rangeStart,
		RangeLen:    rangeLen,
		Nonce:       nonce,
		IssuedAt:    time.Now().UTC(),
		TimeoutSecs: cfg.ChallengeTimeoutSecs,
	}, nil
}

// randomUint32InRange returns a uniform value in [lo, hi].
func randomUint32InRange(rng io.Reader, lo, hi uint32) (uint32, error) {
	if hi <= lo {
		return lo, nil
	}
	span := uint64(hi-lo) + 1
	n, err := randomUint64(rng)
	if err != nil {
		return 0, err
	}
	return lo + uint32(n%span), nil
}

// randomUint64InRange returns a uniform value in [lo, hi].
func randomUint64InRange(rng io.Reader, lo, hi uint64) (uint64, error) {
	if hi <= lo {
		return lo, nil
	}
	span := hi - lo + 1
	n, err := randomUint64(rng)
	if err != nil {
		return 0, err
	}
	return lo + n%span, nil
}

func randomUint64(rng io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// challengeIDBytes returns the UTF-8 bytes of the challenge id, the framing
// used for the signed message (§4.E: "sign challenge_id_bytes ||
// response_hash").
func challengeIDBytes(id string) []byte { return []byte(id) }

// ConstructProof computes response_hash over the challenged byte range of
// fragment (the node's full local copy) concatenated with the challenge
// nonce, then signs challenge_id_bytes || response_hash.
func ConstructProof(challenge Challenge, fragment []byte, priv ed25519.PrivateKey, pub ed25519.PublicKey) (ChallengeProof, error) {
	if uint64(len(fragment)) < challenge.RangeStart+uint64(challenge.RangeLen) {
		return ChallengeProof{}, newChallengeErr(ChallengeHashMismatch, "fragment shorter than challenged range")
	}
	window := fragment[challenge.RangeStart : challenge.RangeStart+uint64(challenge.RangeLen)]
	responseHash := Sha256(append(append([]byte{}, window...), challenge.Nonce[:]...))

	msg := append(challengeIDBytes(challenge.ChallengeID), responseHash[:]...)
	sig := Sign(priv, msg)

	var sigArr [ed25519.SignatureSize]byte
	copy(sigArr[:], sig)

	return ChallengeProof{
		ChallengeID:  challenge.ChallengeID,
		ResponseHash: responseHash,
		Signature:    sigArr,
		SignerPubKey: pub,
		RespondedAt:  time.Now().UTC(),
	}, nil
}

// Validate checks a proof against a challenge and the validator's own copy
// of the ground-truth fragment bytes, returning the MicroUnit reward on
// success.
//
// response_ratio/speed_factor use float64, the one deliberate floating-point
// computation permitted by the spec — every other economic path in this
// module stays integer.
func Validate(challenge Challenge, proof ChallengeProof, expectedPubKey ed25519.PublicKey, groundTruth []byte, cfg Config) (MicroUnit, error) {
	elapsed := proof.RespondedAt.Sub(challenge.IssuedAt)
	if elapsed > time.Duration(challenge.TimeoutSecs)*time.Second {
		return 0, newChallengeErr(Timeout, "")
	}

	if uint64(len(groundTruth)) < challenge.RangeStart+uint64(challenge.RangeLen) {
		return 0, newChallengeErr(ChallengeHashMismatch, "ground truth shorter than challenged range")
	}
	window := groundTruth[challenge.RangeStart : challenge.RangeStart+uint64(challenge.RangeLen)]
	expectedHash := Sha256(append(append([]byte{}, window...), challenge.Nonce[:]...))
	if expectedHash != proof.ResponseHash {
		return 0, newChallengeErr(ChallengeHashMismatch, "")
	}

	msg := append(challengeIDBytes(challenge.ChallengeID), proof.ResponseHash[:]...)
	if !Verify(expectedPubKey, msg, proof.Signature[:]) {
		return 0, newChallengeErr(BadSignature, "")
	}

	responseRatio := elapsed.Seconds() / float64(challenge.TimeoutSecs)
	speedFactor := 1 + math.Max(0, 1-responseRatio)*0.5
	reward := MicroUnit(math.Floor(float64(cfg.ChallengeBonus) * speedFactor))
	return reward, nil
}
