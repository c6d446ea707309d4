package core

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"sort"
)

// blockSize is the width, in bytes, of one Shamir block (one FieldElement).
const blockSize = 32

// Share is one Shamir share of one 32-byte block of a split secret.
type Share struct {
	ShareID    uint8        `json:"share_id"`
	BlockIndex uint32       `json:"block_index"`
	X          FieldElement `json:"-"`
	Y          FieldElement `json:"-"`
}

// shareJSON mirrors the wire encoding of §6: x and y as 64-char hex strings.
type shareJSON struct {
	ShareID    uint8  `json:"share_id"`
	BlockIndex uint32 `json:"block_index"`
	X          string `json:"x"`
	Y          string `json:"y"`
}

// MarshalJSON implements the canonical share wire encoding.
func (s Share) MarshalJSON() ([]byte, error) {
	xb := s.X.ToBytes()
	yb := s.Y.ToBytes()
	return json.Marshal(shareJSON{
		ShareID:    s.ShareID,
		BlockIndex: s.BlockIndex,
		X:          hex.EncodeToString(xb[:]),
		Y:          hex.EncodeToString(yb[:]),
	})
}

// UnmarshalJSON implements the canonical share wire decoding.
func (s *Share) UnmarshalJSON(data []byte) error {
	var sj shareJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}
	xb, err := hex.DecodeString(sj.X)
	if err != nil {
		return err
	}
	yb, err := hex.DecodeString(sj.Y)
	if err != nil {
		return err
	}
	x, err := FieldFromBytes(xb)
	if err != nil {
		return err
	}
	y, err := FieldFromBytes(yb)
	if err != nil {
		return err
	}
	s.ShareID = sj.ShareID
	s.BlockIndex = sj.BlockIndex
	s.X = x
	s.Y = y
	return nil
}

// padSecret length-prefixes secret with its original byte length (4-byte
// big-endian) then zero-pads to a multiple of blockSize. This is the
// reversible padding convention chosen to resolve the spec's Open Question 1.
func padSecret(secret []byte) []byte {
	framed := make([]byte, 4+len(secret))
	binary.BigEndian.PutUint32(framed, uint32(len(secret)))
	copy(framed[4:], secret)

	if rem := len(framed) % blockSize; rem != 0 {
		framed = append(framed, make([]byte, blockSize-rem)...)
	}
	return framed
}

// unpadSecret reverses padSecret given the full concatenation of blocks.
func unpadSecret(padded []byte) ([]byte, error) {
	if len(padded) < 4 {
		return nil, newShamirErr(InconsistentBlocks, "padded secret shorter than length prefix")
	}
	n := binary.BigEndian.Uint32(padded)
	if int(4+n) > len(padded) {
		return nil, newShamirErr(InconsistentBlocks, "encoded length exceeds padded secret")
	}
	return padded[4 : 4+n], nil
}

// Split divides secret into n shares such that any k reconstruct it and any
// k-1 reveal nothing. rng must be a cryptographically secure source.
func Split(rng io.Reader, secret []byte, k, n int) ([]Share, error) {
	if len(secret) == 0 {
		return nil, newShamirErr(EmptySecret, "")
	}
	if k < 1 {
		return nil, newShamirErr(ThresholdTooLow, "")
	}
	if k > 255 {
		return nil, newShamirErr(ThresholdExceedsMax, "")
	}
	if n < k {
		return nil, newShamirErr(InsufficientShares, "n must be >= k")
	}

	padded := padSecret(secret)
	numBlocks := len(padded) / blockSize

	shares := make([]Share, 0, numBlocks*n)
	for block := 0; block < numBlocks; block++ {
		blockBytes := padded[block*blockSize : (block+1)*blockSize]
		a0, err := FieldFromBytes(blockBytes)
		if err != nil {
			return nil, err
		}

		coeffs := make([]FieldElement, k)
		coeffs[0] = a0
		for i := 1; i < k; i++ {
			c, err := randomFieldElement(rng)
			if err != nil {
				return nil, err
			}
			coeffs[i] = c
		}

		for recipient := 1; recipient <= n; recipient++ {
			x := FieldFromUint64(uint64(recipient))
			y := evalPoly(coeffs, x)
			shares = append(shares, Share{
				ShareID:    uint8(recipient),
				BlockIndex: uint32(block),
				X:          x,
				Y:          y,
			})
		}
	}
	return shares, nil
}

// evalPoly evaluates the polynomial defined by coeffs (ascending degree) at x
// using Horner's method.
func evalPoly(coeffs []FieldElement, x FieldElement) FieldElement {
	result := FieldZero()
	for i := len(coeffs) - 1; i >= 0; i-- {
		result = result.Mul(x).Add(coeffs[i])
	}
	return result
}

// randomFieldElement draws a uniformly random, canonically-reduced element
// of the field from rng.
func randomFieldElement(rng io.Reader) (FieldElement, error) {
	var buf [32]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return FieldElement{}, err
	}
	return FieldFromBytes(buf[:])
}

// Reconstruct recovers the original secret from shares, requiring at least k
// distinct-x shares for every block present.
func Reconstruct(shares []Share, k int) ([]byte, error) {
	if k < 1 {
		return nil, newShamirErr(ThresholdTooLow, "")
	}

	byBlock := make(map[uint32][]Share)
	for _, s := range shares {
		byBlock[s.BlockIndex] = append(byBlock[s.BlockIndex], s)
	}
	if len(byBlock) == 0 {
		return nil, newShamirErr(InsufficientShares, "no shares provided")
	}

	maxBlock := uint32(0)
	for b := range byBlock {
		if b > maxBlock {
			maxBlock = b
		}
	}
	if uint32(len(byBlock)) != maxBlock+1 {
		return nil, newShamirErr(InconsistentBlocks, "block indices are not contiguous from 0")
	}

	padded := make([]byte, 0, (int(maxBlock)+1)*blockSize)
	for block := uint32(0); block <= maxBlock; block++ {
		group := byBlock[block]

		seen := make(map[uint8]bool, len(group))
		dedup := make([]Share, 0, len(group))
		for _, s := range group {
			if seen[s.ShareID] {
				return nil, newShamirErr(DuplicateShareIds, "")
			}
			seen[s.ShareID] = true
			dedup = append(dedup, s)
		}
		if len(dedup) < k {
			return nil, newShamirErr(InsufficientShares, "")
		}

		sort.Slice(dedup, func(i, j int) bool { return dedup[i].ShareID < dedup[j].ShareID })
		used := dedup[:k]

		secretField, err := lagrangeAtZero(used)
		if err != nil {
			return nil, err
		}
		b := secretField.ToBytes()
		padded = append(padded, b[:]...)
	}

	return unpadSecret(padded)
}

// lagrangeAtZero evaluates the Lagrange interpolation polynomial through
// shares at x = 0, i.e. recovers the constant term of the original
// polynomial (the secret block).
func lagrangeAtZero(shares []Share) (FieldElement, error) {
	sum := FieldZero()
	for i, si := range shares {
		term := si.Y
		for j, sj := range shares {
			if i == j {
				continue
			}
			num := sj.X
			den := sj.X.Sub(si.X)
			frac, err := num.Div(den)
			if err != nil {
				return FieldElement{}, err
			}
			term = term.Mul(frac)
		}
		sum = sum.Add(term)
	}
	return sum, nil
}
