// Copyright 2025 Certen Protocol
//
// Package heightfile persists the last committed block height across
// process restarts, grounded 1:1 on application.rs's HeightFile: a single
// file holding a binary-encoded int64, read-or-create-as-zero, incremented
// on every Commit.
package heightfile

import (
	"encoding/binary"
	"fmt"
	"os"
)

// HeightFile wraps a path holding the durable last-committed height.
type HeightFile struct {
	path string
}

// New returns a HeightFile backed by path. It does not touch the
// filesystem; call ReadOrCreate to materialize it.
func New(path string) *HeightFile {
	return &HeightFile{path: path}
}

// ReadOrCreate returns the persisted height, writing a fresh zero-height
// file if none exists yet.
func (h *HeightFile) ReadOrCreate() (int64, error) {
	b, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		if werr := h.write(0); werr != nil {
			return 0, werr
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("heightfile: read %s: %w", h.path, err)
	}
	return decode(b)
}

// Increment reads the current height, adds one, persists and returns the
// new value. The file must already exist (ReadOrCreate should run once at
// startup); a missing file here indicates a caller bug, matching the
// original's crash-on-missing-file behavior, so the error is returned
// rather than silently recovered.
func (h *HeightFile) Increment() (int64, error) {
	b, err := os.ReadFile(h.path)
	if err != nil {
		return 0, fmt.Errorf("heightfile: read %s: %w", h.path, err)
	}
	height, err := decode(b)
	if err != nil {
		return 0, err
	}
	height++
	if err := h.write(height); err != nil {
		return 0, err
	}
	return height, nil
}

func (h *HeightFile) write(height int64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(height))
	if err := os.WriteFile(h.path, b[:], 0o644); err != nil {
		return fmt.Errorf("heightfile: write %s: %w", h.path, err)
	}
	return nil
}

func decode(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("heightfile: malformed height file, expected 8 bytes, got %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}
