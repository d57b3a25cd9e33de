// Copyright 2025 Certen Protocol

package txn

import "github.com/google/uuid"

// NewID generates an opaque transaction id for CLI/test callers. The
// verifier and stores never require ids to be UUIDs — a submitted
// transaction's id is whatever its submitter assigned, matching the
// original's opaque String id — this is purely a convenience for code that
// needs to mint one.
func NewID() string {
	return uuid.NewString()
}
