// Copyright 2025 Certen Protocol

package heightfile

import (
	"path/filepath"
	"testing"
)

func TestReadOrCreateMissingFile(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "abci.height"))
	height, err := h.ReadOrCreate()
	if err != nil {
		t.Fatalf("ReadOrCreate: %v", err)
	}
	if height != 0 {
		t.Fatalf("height = %d, want 0", height)
	}

	// Second call reads back the file this one just created.
	height, err = h.ReadOrCreate()
	if err != nil {
		t.Fatalf("ReadOrCreate (second): %v", err)
	}
	if height != 0 {
		t.Fatalf("height = %d, want 0", height)
	}
}

func TestIncrement(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "abci.height"))
	if _, err := h.ReadOrCreate(); err != nil {
		t.Fatalf("ReadOrCreate: %v", err)
	}

	for i := int64(1); i <= 3; i++ {
		got, err := h.Increment()
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if got != i {
			t.Fatalf("Increment = %d, want %d", got, i)
		}
	}
}

func TestIncrementWithoutExistingFileFails(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "missing.height"))
	if _, err := h.Increment(); err == nil {
		t.Fatal("expected an error incrementing a height file that was never created")
	}
}
