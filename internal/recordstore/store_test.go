// Copyright 2025 Certen Protocol

package recordstore

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/certen/zkvm-validator/internal/kvdb"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	records := kvdb.NewAdapter(dbm.NewMemDB())
	spent := kvdb.NewAdapter(dbm.NewMemDB())
	s := Open(records, spent)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddAndSpendRecord(t *testing.T) {
	s := newTestStore(t)

	commitment := []byte("commitment-1")
	serial := []byte("serial-1")

	if err := s.Add(commitment, []byte("ciphertext")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !s.IsUnspent(serial) {
		t.Fatal("expected serial number to be unspent before spend")
	}
	if err := s.Spend(serial); err != nil {
		t.Fatalf("spend: %v", err)
	}
	if s.IsUnspent(serial) {
		t.Fatal("expected serial number to be spent after Spend, even before Commit")
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.IsUnspent(serial) {
		t.Fatal("expected serial number to remain spent after Commit")
	}
}

func TestNoDoubleAddRecord(t *testing.T) {
	s := newTestStore(t)
	commitment := []byte("commitment-1")

	if err := s.Add(commitment, []byte("ciphertext")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.Add(commitment, []byte("ciphertext")); err != ErrDuplicateRecord {
		t.Fatalf("expected ErrDuplicateRecord for buffered duplicate, got %v", err)
	}

	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.Add(commitment, []byte("ciphertext")); err != ErrDuplicateRecord {
		t.Fatalf("expected ErrDuplicateRecord for durable duplicate, got %v", err)
	}
}

func TestSpendBeforeCommitIsVisible(t *testing.T) {
	s := newTestStore(t)
	serial := []byte("serial-1")

	if !s.IsUnspent(serial) {
		t.Fatal("expected fresh serial number to be unspent")
	}
	if err := s.Spend(serial); err != nil {
		t.Fatalf("spend: %v", err)
	}
	// Visible to IsUnspent immediately, before Commit — this is what lets
	// the verifier reject a double-spend within the same block.
	if s.IsUnspent(serial) {
		t.Fatal("expected buffered spend to be visible before commit")
	}
}

func TestNoDoubleSpendRecord(t *testing.T) {
	s := newTestStore(t)
	serial := []byte("serial-1")

	if err := s.Spend(serial); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if err := s.Spend(serial); err != ErrAlreadySpent {
		t.Fatalf("expected ErrAlreadySpent for buffered double spend, got %v", err)
	}

	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.Spend(serial); err != ErrAlreadySpent {
		t.Fatalf("expected ErrAlreadySpent for durable double spend, got %v", err)
	}
}

func TestBuffersEmptyAfterCommit(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add([]byte("c1"), []byte("ct1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	entries, _, err := s.Scan(nil, 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 durable entry after commit, got %d", len(entries))
	}
}

func TestScanPagination(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		commitment := []byte{byte('a' + i)}
		if err := s.Add(commitment, []byte("ct")); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	first, cursor, err := s.Scan(nil, 2)
	if err != nil {
		t.Fatalf("scan page 1: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(first))
	}
	if cursor == nil {
		t.Fatal("expected a cursor for pagination")
	}

	second, _, err := s.Scan(cursor, 0)
	if err != nil {
		t.Fatalf("scan page 2: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("expected remaining 3 entries, got %d", len(second))
	}
}

func TestScanSpentEnumeratesAll(t *testing.T) {
	s := newTestStore(t)
	serials := [][]byte{[]byte("s1"), []byte("s2"), []byte("s3")}
	for _, sn := range serials {
		if err := s.Spend(sn); err != nil {
			t.Fatalf("spend: %v", err)
		}
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := s.ScanSpent()
	if err != nil {
		t.Fatalf("scan spent: %v", err)
	}
	if len(got) != len(serials) {
		t.Fatalf("expected %d spent serials, got %d", len(serials), len(got))
	}
}
