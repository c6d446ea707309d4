package core

import (
	"bytes"
	"crypto/rand"
	"testing"

	"pgregory.net/rapid"
)

// TestShamirSplitReconstruct_ConcreteScenario is scenario 1 of spec §8:
// split a 1024-byte secret with (k,n)=(3,5), take shares {2,4,5}, reconstruct.
func TestShamirSplitReconstruct_ConcreteScenario(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 1024)
	shares, err := Split(rand.Reader, secret, 3, 5)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	var subset []Share
	wanted := map[uint8]bool{2: true, 4: true, 5: true}
	for _, s := range shares {
		if wanted[s.ShareID] {
			subset = append(subset, s)
		}
	}

	got, err := Reconstruct(subset, 3)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Fatalf("reconstructed secret does not match original")
	}
}

func TestShamirCorrectness_AnySubsetOfSizeK(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		secret := rapid.SliceOfN(rapid.Byte(), 1, 300).Draw(t, "secret")
		n := rapid.IntRange(2, 12).Draw(t, "n")
		k := rapid.IntRange(1, n).Draw(t, "k")

		shares, err := Split(rand.Reader, secret, k, n)
		if err != nil {
			t.Fatalf("split: %v", err)
		}

		numBlocks := len(shares) / n
		chosenIDs := shuffledPrefix(t, n, k)

		var subset []Share
		for _, s := range shares {
			for _, id := range chosenIDs {
				if int(s.ShareID) == id+1 {
					subset = append(subset, s)
				}
			}
		}
		if len(subset) != k*numBlocks {
			t.Fatalf("unexpected subset size %d", len(subset))
		}

		got, err := Reconstruct(subset, k)
		if err != nil {
			t.Fatalf("reconstruct: %v", err)
		}
		if !bytes.Equal(got, secret) {
			t.Fatalf("reconstructed secret mismatch: got %x want %x", got, secret)
		}
	})
}

func rangeSlice(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// shuffledPrefix draws a Fisher-Yates shuffle of [0,n) and returns its first
// k elements, giving rapid-driven coverage of arbitrary k-subsets.
func shuffledPrefix(t *rapid.T, n, k int) []int {
	s := rangeSlice(n)
	for i := n - 1; i > 0; i-- {
		j := rapid.IntRange(0, i).Draw(t, "swap")
		s[i], s[j] = s[j], s[i]
	}
	return s[:k]
}

func TestShamirInsufficientShares(t *testing.T) {
	secret := []byte("hello world")
	shares, err := Split(rand.Reader, secret, 3, 5)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	// Only 2 of the 3 required.
	subset := shares[:2]
	if _, err := Reconstruct(subset, 3); err == nil {
		t.Fatal("expected InsufficientShares error")
	}
}

func TestShamirDuplicateShareIds(t *testing.T) {
	secret := []byte("hello world")
	shares, err := Split(rand.Reader, secret, 2, 3)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	dup := []Share{shares[0], shares[0]}
	if _, err := Reconstruct(dup, 2); err == nil {
		t.Fatal("expected DuplicateShareIds error")
	}
}

func TestShamirEmptySecret(t *testing.T) {
	if _, err := Split(rand.Reader, nil, 2, 3); err == nil {
		t.Fatal("expected EmptySecret error")
	}
}

func TestShamirThresholdBounds(t *testing.T) {
	secret := []byte("x")
	if _, err := Split(rand.Reader, secret, 0, 3); err == nil {
		t.Fatal("expected ThresholdTooLow")
	}
	if _, err := Split(rand.Reader, secret, 3, 2); err == nil {
		t.Fatal("expected InsufficientShares (n<k)")
	}
}

func TestShareJSONRoundTrip(t *testing.T) {
	secret := []byte("round trip me")
	shares, err := Split(rand.Reader, secret, 2, 3)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	data, err := shares[0].MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Share
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ShareID != shares[0].ShareID || back.BlockIndex != shares[0].BlockIndex {
		t.Fatalf("round trip mismatch on id/block")
	}
	if !back.X.Equal(shares[0].X) || !back.Y.Equal(shares[0].Y) {
		t.Fatalf("round trip mismatch on x/y")
	}
}
