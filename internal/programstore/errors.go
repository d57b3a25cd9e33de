// Copyright 2025 Certen Protocol
//
// Package programstore provides sentinel errors for program store operations.

package programstore

import "errors"

var (
	// ErrProgramExists is returned when Add targets a program id already
	// present in the store.
	ErrProgramExists = errors.New("programstore: program already exists")

	// ErrStoreClosed is returned by any operation issued after Close.
	ErrStoreClosed = errors.New("programstore: store is closed")
)
