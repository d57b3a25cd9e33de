// Copyright 2025 Certen Protocol

package recordvm

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey is an account's spending key. Its view key and address are
// both derived deterministically from it, the same "try_from" derivation
// chain the original account module uses: private key -> view key -> address.
type PrivateKey [32]byte

// ViewKey can decrypt records owned by the corresponding address but cannot
// produce serial numbers (that requires the PrivateKey itself).
type ViewKey [32]byte

// Address identifies a record owner or a validator's staking identity.
type Address [32]byte

// NewPrivateKey draws 32 random bytes from r (use crypto/rand in production;
// tests may supply a deterministic reader).
func NewPrivateKey(r io.Reader) (PrivateKey, error) {
	if r == nil {
		r = rand.Reader
	}
	var pk PrivateKey
	if _, err := io.ReadFull(r, pk[:]); err != nil {
		return PrivateKey{}, err
	}
	return pk, nil
}

// ViewKey derives this key's view key: keccak256(privateKey).
func (pk PrivateKey) ViewKey() ViewKey {
	return ViewKey(crypto.Keccak256Hash(pk[:]))
}

// Address derives this key's address by way of its view key.
func (pk PrivateKey) Address() Address {
	return pk.ViewKey().Address()
}

// Address derives the address that can be decrypted with this view key:
// keccak256(viewKey).
func (vk ViewKey) Address() Address {
	return Address(crypto.Keccak256Hash(vk[:]))
}

func (a Address) String() string {
	return "aleo1" + hex.EncodeToString(a[:])
}

// ParseAddress parses the string form produced by Address.String.
func ParseAddress(s string) (Address, error) {
	if len(s) < 5 || s[:5] != "aleo1" {
		return Address{}, errors.New("recordvm: malformed address")
	}
	b, err := hex.DecodeString(s[5:])
	if err != nil || len(b) != 32 {
		return Address{}, errors.New("recordvm: malformed address")
	}
	var a Address
	copy(a[:], b)
	return a, nil
}
