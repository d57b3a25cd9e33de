// Copyright 2025 Certen Protocol
//
// Package recordstore provides sentinel errors for record store operations.

package recordstore

import "errors"

var (
	// ErrDuplicateRecord is returned when Add targets a commitment that
	// already exists in durable state or in the current block's add buffer.
	ErrDuplicateRecord = errors.New("recordstore: commitment already exists")

	// ErrAlreadySpent is returned when Spend targets a serial number already
	// in the spent set or already buffered as spent this block.
	ErrAlreadySpent = errors.New("recordstore: serial number already spent")

	// ErrStoreClosed is returned by any operation issued after Close.
	ErrStoreClosed = errors.New("recordstore: store is closed")
)
