package core

import (
	"fmt"

	"github.com/meshvault/storagecore/pkg/utils"
)

// ShamirKind enumerates the failure modes of the threshold secret sharing
// subsystem (spec §7).
type ShamirKind int

const (
	EmptySecret ShamirKind = iota
	ThresholdTooLow
	ThresholdExceedsMax
	InsufficientShares
	DuplicateShareIds
	InconsistentBlocks
	ZeroInverse
)

func (k ShamirKind) String() string {
	switch k {
	case EmptySecret:
		return "empty secret"
	case ThresholdTooLow:
		return "threshold too low"
	case ThresholdExceedsMax:
		return "threshold exceeds max"
	case InsufficientShares:
		return "insufficient shares"
	case DuplicateShareIds:
		return "duplicate share ids"
	case InconsistentBlocks:
		return "inconsistent blocks across shares"
	case ZeroInverse:
		return "inverse of zero"
	default:
		return "unknown shamir error"
	}
}

// ShamirError reports a failure in split/reconstruct.
type ShamirError struct {
	Kind ShamirKind
	Info string
}

func (e *ShamirError) Error() string {
	if e.Info == "" {
		return "shamir: " + e.Kind.String()
	}
	return fmt.Sprintf("shamir: %s: %s", e.Kind, e.Info)
}

func newShamirErr(k ShamirKind, info string) *ShamirError {
	return &ShamirError{Kind: k, Info: info}
}

// StorageKind enumerates fragment-store failure modes.
type StorageKind int

const (
	NotFound StorageKind = iota
	MissingChunk
	DatabaseError
	HashMismatch
)

func (k StorageKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case MissingChunk:
		return "missing chunk"
	case DatabaseError:
		return "database error"
	case HashMismatch:
		return "hash mismatch"
	default:
		return "unknown storage error"
	}
}

// StorageError reports a failure in the fragment store.
type StorageError struct {
	Kind  StorageKind
	Index uint32 // populated for MissingChunk
	Info  string
	cause error
}

func (e *StorageError) Error() string {
	switch {
	case e.Kind == MissingChunk:
		return fmt.Sprintf("storage: missing chunk %d", e.Index)
	case e.Info != "":
		return fmt.Sprintf("storage: %s: %s", e.Kind, e.Info)
	default:
		return "storage: " + e.Kind.String()
	}
}

func (e *StorageError) Unwrap() error { return e.cause }

func newStorageErr(k StorageKind, info string) *StorageError {
	return &StorageError{Kind: k, Info: info}
}

func wrapStorageErr(k StorageKind, cause error) *StorageError {
	wrapped := utils.Wrap(cause, k.String())
	return &StorageError{Kind: k, Info: wrapped.Error(), cause: cause}
}

// LedgerKind enumerates ledger failure modes.
type LedgerKind int

const (
	DuplicateTxId LedgerKind = iota
	InsufficientBalance
	Overflow
	UnknownAddress
	EmptyTree
	IndexOutOfRange
	LedgerDatabaseError
)

func (k LedgerKind) String() string {
	switch k {
	case DuplicateTxId:
		return "duplicate tx id"
	case InsufficientBalance:
		return "insufficient balance"
	case Overflow:
		return "overflow"
	case UnknownAddress:
		return "unknown address"
	case EmptyTree:
		return "empty tree"
	case IndexOutOfRange:
		return "index out of range"
	case LedgerDatabaseError:
		return "database error"
	default:
		return "unknown ledger error"
	}
}

// LedgerError reports a failure in the append-only ledger.
type LedgerError struct {
	Kind  LedgerKind
	Info  string
	cause error
}

func (e *LedgerError) Error() string {
	if e.Info == "" {
		return "ledger: " + e.Kind.String()
	}
	return fmt.Sprintf("ledger: %s: %s", e.Kind, e.Info)
}

func (e *LedgerError) Unwrap() error { return e.cause }

func newLedgerErr(k LedgerKind, info string) *LedgerError {
	return &LedgerError{Kind: k, Info: info}
}

func wrapLedgerErr(k LedgerKind, cause error) *LedgerError {
	wrapped := utils.Wrap(cause, k.String())
	return &LedgerError{Kind: k, Info: wrapped.Error(), cause: cause}
}

// ChallengeKind enumerates proof-of-availability failure modes.
type ChallengeKind int

const (
	FragmentTooSmall ChallengeKind = iota
	Timeout
	ChallengeHashMismatch
	BadSignature
)

func (k ChallengeKind) String() string {
	switch k {
	case FragmentTooSmall:
		return "fragment too small"
	case Timeout:
		return "timeout"
	case ChallengeHashMismatch:
		return "hash mismatch"
	case BadSignature:
		return "bad signature"
	default:
		return "unknown challenge error"
	}
}

// ChallengeError reports a failure in proof generation or validation.
type ChallengeError struct {
	Kind ChallengeKind
	Info string
}

func (e *ChallengeError) Error() string {
	if e.Info == "" {
		return "challenge: " + e.Kind.String()
	}
	return fmt.Sprintf("challenge: %s: %s", e.Kind, e.Info)
}

func newChallengeErr(k ChallengeKind, info string) *ChallengeError {
	return &ChallengeError{Kind: k, Info: info}
}
