// Copyright 2025 Certen Protocol
//
// Package recordvm implements the record primitives of the ZK-UTXO ledger:
// field elements, addresses/keys, commitments, serial numbers, and encrypted
// records.
package recordvm

import (
	"encoding/hex"
	"math/big"
)

// Field is an opaque field element. Internally it is a big.Int. The record
// store keys commitments by Field.Bytes()'s 32-byte big-endian form, so scan
// ordering follows that byte order, not Field.String()'s decimal form and
// not any notion of a modulus. Field never reduces modulo a curve order here — that reduction happens inside
// internal/zkvm when a Field crosses into a circuit.
type Field struct {
	v *big.Int
}

// ZeroField is the additive identity.
var ZeroField = Field{v: big.NewInt(0)}

// NewFieldFromUint64 builds a Field from a small integer.
func NewFieldFromUint64(x uint64) Field {
	return Field{v: new(big.Int).SetUint64(x)}
}

// FieldFromBytes interprets b as a big-endian unsigned integer.
func FieldFromBytes(b []byte) Field {
	return Field{v: new(big.Int).SetBytes(b)}
}

// Bytes returns the field element as a 32-byte big-endian slice.
func (f Field) Bytes() []byte {
	out := make([]byte, 32)
	if f.v == nil {
		return out
	}
	b := f.v.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// String returns the canonical decimal representation. Two equal fields
// always produce identical strings, which is what Equal depends on.
func (f Field) String() string {
	if f.v == nil {
		return "0"
	}
	return f.v.String()
}

// Hex returns the field element as a 0x-prefixed hex string.
func (f Field) Hex() string {
	return "0x" + hex.EncodeToString(f.Bytes())
}

// Equal reports whether two fields carry the same value.
func (f Field) Equal(o Field) bool {
	return f.String() == o.String()
}

// IsZero reports whether the field is the additive identity.
func (f Field) IsZero() bool {
	return f.v == nil || f.v.Sign() == 0
}

// BigInt exposes the underlying integer for circuit witness assignment.
func (f Field) BigInt() *big.Int {
	if f.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(f.v)
}

// GobEncode implements gob.GobEncoder. Field's v field is unexported, so
// without this the encoding/gob round-trips used throughout this codebase
// (record encryption, transaction wire encoding) would silently drop every
// Field to its zero value.
func (f Field) GobEncode() ([]byte, error) {
	return f.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (f *Field) GobDecode(data []byte) error {
	*f = FieldFromBytes(data)
	return nil
}
