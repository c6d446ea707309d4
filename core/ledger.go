package core

import (
	"crypto/ed25519"
	"database/sql"
	"encoding/binary"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// TxType is the closed set of transaction effects the ledger understands.
type TxType uint8

const (
	TxPushFee TxType = iota
	TxPullFee
	TxStorageReward
	TxChallengeReward
	TxBandwidthReward
	TxTransfer
	TxBurn
	TxMint
)

// Transaction is one economic event. SignableBytes and Hash give it a
// deterministic, signature-excluding canonical encoding (§6).
type Transaction struct {
	TxID      string
	Type      TxType
	From      *Address
	To        *Address
	Amount    MicroUnit
	Metadata  string
	Timestamp time.Time
	Signature *[ed25519.SignatureSize]byte
}

// SignableBytes is the deterministic canonical encoding used for both
// signing and hashing, excluding Signature. Field order and framing must
// never change (§6).
func (t Transaction) SignableBytes() []byte {
	var buf []byte
	buf = append(buf, []byte(t.TxID)...)
	buf = append(buf, byte(t.Type))
	buf = append(buf, encodeOptionalAddress(t.From)...)
	buf = append(buf, encodeOptionalAddress(t.To)...)

	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], uint64(t.Amount))
	buf = append(buf, amt[:]...)

	meta := []byte(t.Metadata)
	var metaLen [4]byte
	binary.BigEndian.PutUint32(metaLen[:], uint32(len(meta)))
	buf = append(buf, metaLen[:]...)
	buf = append(buf, meta...)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(t.Timestamp.Unix()))
	buf = append(buf, ts[:]...)

	return buf
}

func encodeOptionalAddress(a *Address) []byte {
	if a == nil {
		return []byte{0x00}
	}
	out := make([]byte, 0, 33)
	out = append(out, 0x01)
	out = append(out, a[:]...)
	return out
}

// Hash returns SHA-256 of SignableBytes.
func (t Transaction) Hash() Hash256 { return Sha256(t.SignableBytes()) }

// Validate checks the From/To shape required by Type (§3: Mint has no From,
// Burn has no To, Transfer requires both).
func (t Transaction) Validate() error {
	switch t.Type {
	case TxMint:
		if t.From != nil {
			return newLedgerErr(LedgerDatabaseError, "mint must not set From")
		}
		if t.To == nil {
			return newLedgerErr(LedgerDatabaseError, "mint requires To")
		}
	case TxBurn:
		if t.To != nil {
			return newLedgerErr(LedgerDatabaseError, "burn must not set To")
		}
		if t.From == nil {
			return newLedgerErr(LedgerDatabaseError, "burn requires From")
		}
	case TxTransfer:
		if t.From == nil || t.To == nil {
			return newLedgerErr(LedgerDatabaseError, "transfer requires From and To")
		}
	case TxPushFee, TxPullFee:
		if t.From == nil {
			return newLedgerErr(LedgerDatabaseError, "fee requires From")
		}
	case TxStorageReward, TxChallengeReward, TxBandwidthReward:
		if t.To == nil {
			return newLedgerErr(LedgerDatabaseError, "reward requires To")
		}
	}
	return nil
}

// BalanceTracker maps Address to MicroUnit balance; an absent key is zero.
// It is never mutated directly by callers — only through the Ledger's
// locked append path (§5).
type BalanceTracker struct {
	balances map[Address]MicroUnit
}

func newBalanceTracker() *BalanceTracker {
	return &BalanceTracker{balances: make(map[Address]MicroUnit)}
}

// balance returns addr's current balance, zero if unknown. Unexported: it
// assumes the caller already holds the Ledger's lock (see Ledger.Balance).
func (b *BalanceTracker) balance(addr Address) MicroUnit { return b.balances[addr] }

func (b *BalanceTracker) credit(addr Address, amount MicroUnit) error {
	cur := b.balances[addr]
	if cur > ^MicroUnit(0)-amount {
		return newLedgerErr(Overflow, "")
	}
	b.balances[addr] = cur + amount
	return nil
}

func (b *BalanceTracker) debit(addr Address, amount MicroUnit) error {
	cur := b.balances[addr]
	if cur < amount {
		return newLedgerErr(InsufficientBalance, addr.String())
	}
	b.balances[addr] = cur - amount
	return nil
}

func (b *BalanceTracker) transfer(from, to Address, amount MicroUnit) error {
	if err := b.debit(from, amount); err != nil {
		return err
	}
	if err := b.credit(to, amount); err != nil {
		// undo the debit; credit only fails on overflow, an unreachable
		// condition under the supply invariants, but never leave state torn.
		b.balances[from] += amount
		return err
	}
	return nil
}

// SupplyTracker tracks circulating and burned supply plus the emission
// schedule's current year.
type SupplyTracker struct {
	Circulating MicroUnit
	Burned      MicroUnit
	CurrentYear uint32
}

func (s *SupplyTracker) mint(amount MicroUnit) error {
	if s.Circulating > ^MicroUnit(0)-amount {
		return newLedgerErr(Overflow, "")
	}
	s.Circulating += amount
	return nil
}

func (s *SupplyTracker) burn(amount MicroUnit) error {
	if s.Circulating < amount {
		return newLedgerErr(InsufficientBalance, "circulating supply")
	}
	s.Circulating -= amount
	s.Burned += amount
	return nil
}

// RateBps returns the emission rate, in basis points, for year y:
// max(0, emission_rate_bps - y*emission_decrease_bps).
func RateBps(y uint32, emissionRateBps, emissionDecreaseBps uint32) uint32 {
	decrease := uint64(y) * uint64(emissionDecreaseBps)
	if decrease >= uint64(emissionRateBps) {
		return 0
	}
	return emissionRateBps - uint32(decrease)
}

// AdvanceYear applies one emission step (minting circulating *
// rate_bps(year) / 10000) and increments CurrentYear.
func (s *SupplyTracker) AdvanceYear(emissionRateBps, emissionDecreaseBps uint32) (MicroUnit, error) {
	rate := RateBps(s.CurrentYear, emissionRateBps, emissionDecreaseBps)
	emitted := MicroUnit(uint64(s.Circulating) * uint64(rate) / 10_000)
	if emitted > 0 {
		if err := s.mint(emitted); err != nil {
			return 0, err
		}
	}
	s.CurrentYear++
	return emitted, nil
}

// Ledger is the SQLite-backed append-only transaction log. Appends are
// serialized through mu; balance/supply reads may run concurrently with
// other reads (§5).
type Ledger struct {
	mu      sync.RWMutex
	db      *sql.DB
	logger  *logrus.Logger
	ids     map[string]bool
	history map[Address][]Transaction
	byID    map[string]Transaction
	order   []string

	Balances *BalanceTracker
	Supply   *SupplyTracker
}

// OpenLedger opens (or creates) the ledger at path, replaying all stored
// transactions in insertion order to rebuild in-memory balance and supply
// state. Use ":memory:" for an ephemeral ledger. initialSupply seeds
// Supply.Circulating before replay; it is not itself stored as a
// transaction, so reopened state matches only when the same initialSupply is
// passed again.
func OpenLedger(path string, initialSupply MicroUnit, logger *logrus.Logger) (l *Ledger, err error) {
	if logger == nil {
		logger = logrus.New()
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}
	db, openErr := sql.Open("sqlite3", dsn)
	if openErr != nil {
		return nil, wrapLedgerErr(LedgerDatabaseError, openErr)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if pingErr := db.Ping(); pingErr != nil {
		return nil, wrapLedgerErr(LedgerDatabaseError, pingErr)
	}

	l = &Ledger{
		db:      db,
		logger:  logger,
		ids:     make(map[string]bool),
		history: make(map[Address][]Transaction),
		byID:    make(map[string]Transaction),

		Balances: newBalanceTracker(),
		Supply:   &SupplyTracker{Circulating: initialSupply},
	}

	if err = l.initSchema(); err != nil {
		return nil, err
	}
	if err = l.replay(); err != nil {
		return nil, err
	}
	logger.Debugf("ledger opened at %s (%d transactions replayed)", path, len(l.order))
	return l, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS transactions (
		tx_id TEXT PRIMARY KEY,
		tx_type INTEGER NOT NULL,
		from_addr BLOB,
		to_addr BLOB,
		amount INTEGER NOT NULL,
		metadata TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		signature BLOB
	);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return wrapLedgerErr(LedgerDatabaseError, err)
	}
	return nil
}

func (l *Ledger) replay() error {
	rows, err := l.db.Query(
		`SELECT tx_id, tx_type, from_addr, to_addr, amount, metadata, timestamp, signature
		 FROM transactions ORDER BY rowid`,
	)
	if err != nil {
		return wrapLedgerErr(LedgerDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return err
		}
		if err := l.applyEffect(tx); err != nil {
			return err
		}
		l.ids[tx.TxID] = true
		l.byID[tx.TxID] = tx
		l.order = append(l.order, tx.TxID)
		l.indexHistory(tx)
	}
	if err := rows.Err(); err != nil {
		return wrapLedgerErr(LedgerDatabaseError, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(rows rowScanner) (Transaction, error) {
	var (
		txID      string
		txType    uint8
		fromAddr  []byte
		toAddr    []byte
		amount    uint64
		metadata  string
		timestamp int64
		signature []byte
	)
	if err := rows.Scan(&txID, &txType, &fromAddr, &toAddr, &amount, &metadata, &timestamp, &signature); err != nil {
		return Transaction{}, wrapLedgerErr(LedgerDatabaseError, err)
	}
	tx := Transaction{
		TxID:      txID,
		Type:      TxType(txType),
		Amount:    MicroUnit(amount),
		Metadata:  metadata,
		Timestamp: time.Unix(timestamp, 0).UTC(),
	}
	if fromAddr != nil {
		var a Address
		copy(a[:], fromAddr)
		tx.From = &a
	}
	if toAddr != nil {
		var a Address
		copy(a[:], toAddr)
		tx.To = &a
	}
	if signature != nil {
		var sig [ed25519.SignatureSize]byte
		copy(sig[:], signature)
		tx.Signature = &sig
	}
	return tx, nil
}

// Append validates and persists tx, then applies its effect to the in-memory
// balance/supply state. The duplicate check, feasibility check, persist and
// apply happen atomically under mu — no other writer can interleave (§5).
// Signatures are not verified here; that is the caller's responsibility
// (§4.D).
func (l *Ledger) Append(tx Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ids[tx.TxID] {
		return newLedgerErr(DuplicateTxId, tx.TxID)
	}
	if err := l.checkFeasible(tx); err != nil {
		return err
	}

	var fromBlob, toBlob, sigBlob []byte
	if tx.From != nil {
		fromBlob = tx.From[:]
	}
	if tx.To != nil {
		toBlob = tx.To[:]
	}
	if tx.Signature != nil {
		sigBlob = tx.Signature[:]
	}

	_, err := l.db.Exec(
		`INSERT INTO transactions (tx_id, tx_type, from_addr, to_addr, amount, metadata, timestamp, signature)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.TxID, uint8(tx.Type), fromBlob, toBlob, uint64(tx.Amount), tx.Metadata, tx.Timestamp.Unix(), sigBlob,
	)
	if err != nil {
		return wrapLedgerErr(LedgerDatabaseError, err)
	}

	if err := l.applyEffect(tx); err != nil {
		// Unreachable in practice: checkFeasible already validated this path.
		return err
	}
	l.ids[tx.TxID] = true
	l.byID[tx.TxID] = tx
	l.order = append(l.order, tx.TxID)
	l.indexHistory(tx)

	l.logger.Debugf("ledger: appended %s type=%d amount=%d", tx.TxID, tx.Type, tx.Amount)
	return nil
}

// checkFeasible verifies the effect can apply without driving a balance or
// circulating supply negative, before anything is persisted.
func (l *Ledger) checkFeasible(tx Transaction) error {
	switch tx.Type {
	case TxBurn:
		if l.Supply.Circulating < tx.Amount {
			return newLedgerErr(InsufficientBalance, "circulating supply")
		}
		if l.Balances.balance(*tx.From) < tx.Amount {
			return newLedgerErr(InsufficientBalance, tx.From.String())
		}
	case TxTransfer, TxPushFee, TxPullFee:
		if l.Balances.balance(*tx.From) < tx.Amount {
			return newLedgerErr(InsufficientBalance, tx.From.String())
		}
	}
	return nil
}

// applyEffect mutates Balances/Supply per §4.D's effect table.
func (l *Ledger) applyEffect(tx Transaction) error {
	switch tx.Type {
	case TxMint:
		if err := l.Balances.credit(*tx.To, tx.Amount); err != nil {
			return err
		}
		return l.Supply.mint(tx.Amount)
	case TxBurn:
		if err := l.Balances.debit(*tx.From, tx.Amount); err != nil {
			return err
		}
		return l.Supply.burn(tx.Amount)
	case TxTransfer:
		return l.Balances.transfer(*tx.From, *tx.To, tx.Amount)
	case TxPushFee, TxPullFee:
		return l.Balances.debit(*tx.From, tx.Amount)
	case TxStorageReward, TxChallengeReward, TxBandwidthReward:
		if err := l.Balances.credit(*tx.To, tx.Amount); err != nil {
			return err
		}
		return l.Supply.mint(tx.Amount)
	}
	return nil
}

func (l *Ledger) indexHistory(tx Transaction) {
	if tx.From != nil {
		l.history[*tx.From] = append(l.history[*tx.From], tx)
	}
	if tx.To != nil {
		l.history[*tx.To] = append(l.history[*tx.To], tx)
	}
}

// BatchRoot builds a Merkle tree over the hashes of txIDs, in the given
// order, and returns its root and the tree itself, against which inclusion
// proofs can be served.
func (l *Ledger) BatchRoot(txIDs []string) (Hash256, *MerkleTree, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	leaves := make([]Hash256, len(txIDs))
	for i, id := range txIDs {
		tx, ok := l.byID[id]
		if !ok {
			return Hash256{}, nil, newStorageErr(NotFound, id)
		}
		leaves[i] = tx.Hash()
	}
	tree, err := BuildMerkleTree(leaves)
	if err != nil {
		return Hash256{}, nil, err
	}
	return tree.Root(), tree, nil
}

// Balance returns addr's current balance, zero if unknown. Safe to call
// concurrently with Append and with other readers (§5).
func (l *Ledger) Balance(addr Address) MicroUnit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.Balances.balance(addr)
}

// TotalSupply returns the current circulating and burned supply. Safe to
// call concurrently with Append and with other readers (§5).
func (l *Ledger) TotalSupply() (circulating, burned MicroUnit) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.Supply.Circulating, l.Supply.Burned
}

// History returns every transaction touching addr as From or To, in
// insertion order. Read-only; added as a supplement over the base spec's
// append/replay surface (§10). Safe to call concurrently with Append and
// with other readers (§5).
func (l *Ledger) History(addr Address) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	txs := l.history[addr]
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}
