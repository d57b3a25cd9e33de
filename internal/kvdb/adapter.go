// Copyright 2025 Certen Protocol
//
// KV Adapter over CometBFT's embedded database
// Wraps CometBFT's dbm.DB interface in the narrow surface the record and
// program stores need.

package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KV is the storage surface the block-scoped stores depend on. It is
// intentionally narrow: single key/value get/set/has, plus a range
// iterator for the scan operations (record store Scan/ScanSpent,
// program store enumeration).
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte) error
	Iterator(start, end []byte) (dbm.Iterator, error)
	NewBatch() dbm.Batch
}

// Adapter wraps a CometBFT dbm.DB and exposes the KV interface above.
type Adapter struct {
	db dbm.DB
}

// NewAdapter creates a new Adapter for the given underlying DB.
func NewAdapter(db dbm.DB) *Adapter {
	return &Adapter{db: db}
}

// Get implements KV.Get. A missing key returns (nil, nil), matching
// dbm.DB's own convention.
func (a *Adapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Has implements KV.Has.
func (a *Adapter) Has(key []byte) (bool, error) {
	if a.db == nil {
		return false, nil
	}
	return a.db.Has(key)
}

// Set implements KV.Set. Uses SetSync for durable writes: callers rely on
// this surviving a crash immediately after Commit returns.
func (a *Adapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// Iterator implements KV.Iterator, returning the keys in [start, end).
// A nil end iterates to the end of the keyspace.
func (a *Adapter) Iterator(start, end []byte) (dbm.Iterator, error) {
	return a.db.Iterator(start, end)
}

// NewBatch implements KV.NewBatch, used by the record/program stores to
// flush a block's buffered writes as a single atomic write batch.
func (a *Adapter) NewBatch() dbm.Batch {
	return a.db.NewBatch()
}
