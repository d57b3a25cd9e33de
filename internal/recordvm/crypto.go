// Copyright 2025 Certen Protocol

package recordvm

import (
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/chacha20"
)

// newKeystream builds the chacha20 keystream cipher used to encrypt/decrypt
// a record, from the material derived in encryptionMaterial.
func newKeystream(vk ViewKey, nonce Field) (*chacha20.Cipher, error) {
	key, streamNonce := encryptionMaterial(vk, nonce)
	return chacha20.NewUnauthenticatedCipher(key[:], streamNonce[:])
}

// DeterministicField derives a Field purely from seedKey and label, with no
// wall-clock or OS randomness involved. It backs the height-seeded PRNG the
// validator set uses to mint reward records: every honest replica computing
// DeterministicField with the same inputs gets the same output, which is
// what makes block_rewards reproducible across the network.
func DeterministicField(seedKey []byte, label string) Field {
	key := crypto.Keccak256(seedKey)
	nonce := crypto.Keccak256([]byte(label))[:12]

	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		// Both key and nonce are fixed-size outputs of Keccak256 truncated to
		// the sizes chacha20 requires; a construction error here would mean
		// the stdlib cipher's size contract changed, which is a bug, not a
		// runtime condition to recover from.
		panic("recordvm: deterministic keystream construction failed: " + err.Error())
	}
	out := make([]byte, 32)
	cipher.XORKeyStream(out, out)
	return FieldFromBytes(out)
}
