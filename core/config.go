package core

// Config enumerates every tunable parameter of the storage-and-trust core
// (§4.A). There is no file or environment loading here — that belongs to the
// node daemon, an out-of-scope external collaborator — only the struct, its
// protocol-constant defaults, and construction-time validation.
type Config struct {
	// Threshold secret sharing.
	K uint8 // threshold
	N uint8 // total shares per chunk

	// Fragment store.
	ChunkSize int // bytes; last chunk may be shorter

	// Proof-of-availability.
	ChallengeTimeoutSecs uint32
	ChallengeMinBytes    uint32
	ChallengeMaxBytes    uint32
	ChallengeBonus       MicroUnit

	// Fee schedule — MicroUnit per MB, integer multiply with rounding down.
	PushFeeRate     MicroUnit
	PullFeeRate     MicroUnit
	BandwidthRate   MicroUnit
	PushBurnRateBps uint32
	PullBurnRateBps uint32

	// Supply & emission.
	InitialSupply       MicroUnit
	EmissionRateBps     uint32
	EmissionDecreaseBps uint32
}

// DefaultConfig returns the protocol constants.
func DefaultConfig() Config {
	return Config{
		K: 3,
		N: 5,

		ChunkSize: 512 * 1024,

		ChallengeTimeoutSecs: 30,
		ChallengeMinBytes:    256,
		ChallengeMaxBytes:    4096,
		ChallengeBonus:       1_000_000, // 1 display unit

		PushFeeRate:     100,
		PullFeeRate:     50,
		BandwidthRate:   10,
		PushBurnRateBps: 1_000, // 10%
		PullBurnRateBps: 500,   // 5%

		InitialSupply:       1_000_000_000_000,
		EmissionRateBps:     800, // 8%
		EmissionDecreaseBps: 50,  // -0.5% per year
	}
}

// Validate rejects out-of-range tunables at construction (§6: "out-of-range
// values rejected at construction").
func (c Config) Validate() error {
	if c.K < 1 {
		return newShamirErr(ThresholdTooLow, "")
	}
	if c.K > 255 {
		return newShamirErr(ThresholdExceedsMax, "")
	}
	if c.N < c.K {
		return newShamirErr(InsufficientShares, "n must be >= k")
	}
	if c.ChunkSize <= 0 {
		return newStorageErr(DatabaseError, "chunk_size must be positive")
	}
	if c.ChallengeMinBytes == 0 || c.ChallengeMinBytes > c.ChallengeMaxBytes {
		return newChallengeErr(FragmentTooSmall, "challenge_min_bytes must be in (0, challenge_max_bytes]")
	}
	if c.ChallengeTimeoutSecs == 0 {
		return newChallengeErr(Timeout, "challenge_timeout_secs must be positive")
	}
	return nil
}

// ApplyBasisPoints computes amount * bps / 10_000 using integer arithmetic,
// rounding down — the shared helper behind burn splits and fee-rate
// multiplication (§4.A: "computed by integer basis-point multiplication").
func ApplyBasisPoints(amount MicroUnit, bps uint32) MicroUnit {
	return MicroUnit(uint64(amount) * uint64(bps) / 10_000)
}

// FeeForBytes applies a MicroUnit-per-MB rate to a byte count, integer
// multiply with rounding down.
func FeeForBytes(numBytes uint64, ratePerMB MicroUnit) MicroUnit {
	const mb = 1024 * 1024
	return MicroUnit((numBytes * uint64(ratePerMB)) / mb)
}
