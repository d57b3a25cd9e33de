// Copyright 2025 Certen Protocol
//
// Package validatorset tracks the network's validator roster, stakes the
// consensus host's validator-update deltas into it, and mints deterministic
// block rewards. Grounded on the teacher's ValidatorApp mutex-guarded state
// pattern, generalized to the staking semantics of validator_set.rs.
package validatorset

import (
	"bytes"
	"errors"
	"fmt"

	ed25519 "github.com/cometbft/cometbft/crypto/ed25519"

	"github.com/certen/zkvm-validator/internal/recordvm"
)

// ErrNegativeVotingPower is returned by ValidatorFromStake when a
// first-time stake delta is not positive. An existing validator that would
// drop below zero gets ErrInsufficientStake instead.
var ErrNegativeVotingPower = errors.New("validatorset: cannot create a validator with negative voting power")

// ErrZeroStake is returned by NewStake for a no-op update.
var ErrZeroStake = errors.New("validatorset: can't stake zero credits")

// ErrTendermintAddressMismatch is returned by Validator.Apply when the
// update's consensus key does not match the validator it is being applied
// to.
var ErrTendermintAddressMismatch = errors.New("validatorset: stake update addressed to a different validator")

// ErrAleoAddressMismatch is returned by Validator.Apply when the update
// claims a different reward-recipient address than the validator already
// has on record.
var ErrAleoAddressMismatch = errors.New("validatorset: attempted to apply a staking update on a different aleo account")

// ErrInsufficientStake is returned when a stake delta would unstake more
// voting power than the validator holds.
var ErrInsufficientStake = errors.New("validatorset: attempted to unstake more voting power than available")

// Address is an alias for the ed25519 consensus public key type; the
// validator's consensus address is derived from such a key with
// PubKey.Address(), the same way tendermint/cometbft addresses always are.
type Address = ed25519.PubKey

// addrKey turns a raw 20-byte ed25519 address into a comparable map key.
func addrKey(addr []byte) string {
	return string(addr)
}

// Validator is a single member of the roster: its consensus key and voting
// power, plus the address that receives its share of block rewards.
type Validator struct {
	AleoAddress recordvm.Address
	PubKey      ed25519.PubKey
	VotingPower int64
}

// Address returns the validator's consensus address (PubKey.Address()),
// the same derivation the original used via
// tendermint::account::Id::from(pub_key).
func (v Validator) Address() []byte {
	return v.PubKey.Address()
}

// Stake is a signed voting-power delta the consensus host reports for a
// validator update, carrying both the consensus key it targets and the
// aleo address that should receive that validator's reward share.
type Stake struct {
	AleoAddress recordvm.Address
	PubKey      ed25519.PubKey
	GatesDelta  int64
}

// NewStake validates that delta is non-zero before constructing a Stake.
func NewStake(pubKey ed25519.PubKey, aleoAddress recordvm.Address, gatesDelta int64) (Stake, error) {
	if gatesDelta == 0 {
		return Stake{}, ErrZeroStake
	}
	return Stake{AleoAddress: aleoAddress, PubKey: pubKey, GatesDelta: gatesDelta}, nil
}

// ValidatorAddress returns the consensus address the stake update targets.
func (s Stake) ValidatorAddress() []byte {
	return s.PubKey.Address()
}

// ValidatorFromStake creates a brand-new validator from a first-time stake.
// A non-positive delta cannot create a validator: there is nothing to stake
// it with.
func ValidatorFromStake(s Stake) (Validator, error) {
	if s.GatesDelta <= 0 {
		return Validator{}, ErrNegativeVotingPower
	}
	return Validator{
		AleoAddress: s.AleoAddress,
		PubKey:      s.PubKey,
		VotingPower: s.GatesDelta,
	}, nil
}

// Apply folds a stake delta into an existing validator in place. It never
// mutates v if it returns an error.
func (v *Validator) Apply(s Stake) error {
	if !bytes.Equal(v.Address(), s.ValidatorAddress()) {
		return fmt.Errorf("validatorset: %w", ErrTendermintAddressMismatch)
	}
	if v.AleoAddress != s.AleoAddress {
		return fmt.Errorf("validatorset: %w", ErrAleoAddressMismatch)
	}
	newPower := v.VotingPower + s.GatesDelta
	if newPower < 0 {
		return fmt.Errorf("validatorset: %w", ErrInsufficientStake)
	}
	v.VotingPower = newPower
	return nil
}
