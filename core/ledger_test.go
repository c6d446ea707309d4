package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestLedger(t *testing.T, initial MicroUnit) *Ledger {
	t.Helper()
	l, err := OpenLedger(":memory:", initial, nil)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func testAddr(t *testing.T, label string) Address {
	t.Helper()
	return Address(Sha256([]byte(label)))
}

func mintTx(to Address, amount MicroUnit) Transaction {
	return Transaction{
		TxID:      uuid.NewString(),
		Type:      TxMint,
		To:        &to,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
}

// TestLedgerConcreteScenario is scenario 3 + 4 of spec §8: mint, transfer,
// burn, then a duplicate append.
func TestLedgerConcreteScenario(t *testing.T) {
	l := openTestLedger(t, 0)
	a := testAddr(t, "A")
	b := testAddr(t, "B")

	mint := mintTx(a, 100)
	if err := l.Append(mint); err != nil {
		t.Fatalf("mint: %v", err)
	}

	transfer := Transaction{
		TxID:      uuid.NewString(),
		Type:      TxTransfer,
		From:      &a,
		To:        &b,
		Amount:    40,
		Timestamp: time.Now().UTC(),
	}
	if err := l.Append(transfer); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	burn := Transaction{
		TxID:      uuid.NewString(),
		Type:      TxBurn,
		From:      &a,
		Amount:    10,
		Timestamp: time.Now().UTC(),
	}
	if err := l.Append(burn); err != nil {
		t.Fatalf("burn: %v", err)
	}

	if got := l.Balance(a); got != 50 {
		t.Fatalf("balance(A) = %d, want 50", got)
	}
	if got := l.Balance(b); got != 40 {
		t.Fatalf("balance(B) = %d, want 40", got)
	}
	circ, burned := l.TotalSupply()
	if circ != 90 {
		t.Fatalf("circulating = %d, want 90", circ)
	}
	if burned != 10 {
		t.Fatalf("burned = %d, want 10", burned)
	}

	// scenario 4: duplicate tx_id rejected, prior state unchanged.
	dup := mint
	dup.Timestamp = time.Now().UTC()
	if err := l.Append(dup); err == nil {
		t.Fatal("expected DuplicateTxId error")
	}
	if got := l.Balance(a); got != 50 {
		t.Fatalf("balance(A) mutated after rejected duplicate: %d", got)
	}
	if got := l.Balance(b); got != 40 {
		t.Fatalf("balance(B) mutated after rejected duplicate: %d", got)
	}
}

func TestLedgerInsufficientBalance(t *testing.T) {
	l := openTestLedger(t, 0)
	a := testAddr(t, "A")
	b := testAddr(t, "B")

	tx := Transaction{
		TxID:      uuid.NewString(),
		Type:      TxTransfer,
		From:      &a,
		To:        &b,
		Amount:    1,
		Timestamp: time.Now().UTC(),
	}
	if err := l.Append(tx); err == nil {
		t.Fatal("expected InsufficientBalance error")
	}
}

func TestLedgerReplayDeterminism(t *testing.T) {
	dir := t.TempDir() + "/ledger.db"
	a := testAddr(t, "A")
	b := testAddr(t, "B")

	l1, err := OpenLedger(dir, 0, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l1.Append(mintTx(a, 500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	transfer := Transaction{
		TxID:      uuid.NewString(),
		Type:      TxTransfer,
		From:      &a,
		To:        &b,
		Amount:    125,
		Timestamp: time.Now().UTC(),
	}
	if err := l1.Append(transfer); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2, err := OpenLedger(dir, 0, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	if got := l2.Balance(a); got != 375 {
		t.Fatalf("balance(A) after replay = %d, want 375", got)
	}
	if got := l2.Balance(b); got != 125 {
		t.Fatalf("balance(B) after replay = %d, want 125", got)
	}
	circ, _ := l2.TotalSupply()
	if circ != 500 {
		t.Fatalf("circulating after replay = %d, want 500", circ)
	}
}

func TestLedgerBatchRootAndHistory(t *testing.T) {
	l := openTestLedger(t, 0)
	a := testAddr(t, "A")

	tx1 := mintTx(a, 10)
	tx2 := mintTx(a, 20)
	if err := l.Append(tx1); err != nil {
		t.Fatalf("tx1: %v", err)
	}
	if err := l.Append(tx2); err != nil {
		t.Fatalf("tx2: %v", err)
	}

	root, tree, err := l.BatchRoot([]string{tx1.TxID, tx2.TxID})
	if err != nil {
		t.Fatalf("batch root: %v", err)
	}
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if !VerifyMerkleProof(tx1.Hash(), proof, root, 0) {
		t.Fatal("expected tx1 inclusion proof to verify")
	}

	hist := l.History(a)
	if len(hist) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(hist))
	}
}

func TestSupplyEmissionSchedule(t *testing.T) {
	s := &SupplyTracker{Circulating: 1_000_000}
	emitted, err := s.AdvanceYear(800, 50) // 8% at year 0
	if err != nil {
		t.Fatalf("advance year: %v", err)
	}
	if want := MicroUnit(80_000); emitted != want {
		t.Fatalf("year0 emission = %d, want %d", emitted, want)
	}
	if s.CurrentYear != 1 {
		t.Fatalf("expected year to advance to 1, got %d", s.CurrentYear)
	}
}

func TestRateBpsFloorsAtZero(t *testing.T) {
	if got := RateBps(100, 800, 50); got != 0 {
		t.Fatalf("expected rate to floor at 0, got %d", got)
	}
}

func TestTransactionSignableBytesExcludesSignature(t *testing.T) {
	a := testAddr(t, "A")
	sig := [64]byte{1, 2, 3}
	tx := Transaction{
		TxID:      "tx-1",
		Type:      TxMint,
		To:        &a,
		Amount:    5,
		Metadata:  "m",
		Timestamp: time.Unix(1000, 0),
		Signature: &sig,
	}
	without := tx
	without.Signature = nil
	if string(tx.SignableBytes()) != string(without.SignableBytes()) {
		t.Fatal("signable bytes must not depend on signature")
	}
}
