// Copyright 2025 Certen Protocol

package programstore

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/certen/zkvm-validator/internal/kvdb"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := kvdb.NewAdapter(dbm.NewMemDB())
	s, err := Open(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreditsLoadedOnOpen(t *testing.T) {
	s := newTestStore(t)
	if !s.Exists(CreditsProgramID) {
		t.Fatal("expected credits.aleo to be present immediately after Open")
	}
	stored, found, err := s.Get(CreditsProgramID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected credits.aleo to be found")
	}
	mint, ok := stored.Program.HasFunction(CreditsMintFunction)
	if !ok || !mint.Coinbase {
		t.Fatal("expected credits.aleo's mint function to be marked coinbase")
	}
}

func TestAddProgram(t *testing.T) {
	s := newTestStore(t)

	program := StoredProgram{
		Program: Program{
			ID:     "hello.aleo",
			Source: "program hello.aleo;",
			Functions: []Function{
				{Name: "hello"},
			},
		},
		VerifyingKeys: map[string][]byte{"hello": []byte("vk-bytes")},
	}

	if s.Exists("hello.aleo") {
		t.Fatal("expected hello.aleo to be absent before Add")
	}
	if err := s.Add("hello.aleo", program); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !s.Exists("hello.aleo") {
		t.Fatal("expected hello.aleo to exist after Add")
	}

	got, found, err := s.Get("hello.aleo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected hello.aleo to be found")
	}
	if string(got.VerifyingKeys["hello"]) != "vk-bytes" {
		t.Fatalf("verifying key round-trip mismatch: got %q", got.VerifyingKeys["hello"])
	}
}

func TestNoDuplicateProgram(t *testing.T) {
	s := newTestStore(t)
	program := StoredProgram{Program: Program{ID: "dup.aleo"}}

	if err := s.Add("dup.aleo", program); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.Add("dup.aleo", program); err != ErrProgramExists {
		t.Fatalf("expected ErrProgramExists, got %v", err)
	}
}

func TestGetMissingProgram(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.Get("missing.aleo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("expected missing program to not be found")
	}
}
