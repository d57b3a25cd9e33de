// Copyright 2025 Certen Protocol

package recordvm

import (
	"bytes"
	"encoding/gob"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/chacha20"
)

// mintMaterial derives the keystream key/nonce used to mint a coinbase-style
// record (block rewards, genesis allocations) addressed to owner. Unlike
// encryptionMaterial, which is keyed by the owner's ViewKey (something only
// the owner holds), minting happens on behalf of a recipient the minter only
// knows by public Address — there is no private material to derive a
// keystream from. This is the address-keyed half of the simplified
// encryption scheme documented in record.go: mint records are recoverable by
// anyone who knows the recipient's address, trading away the confidentiality
// a real ECDH-to-address scheme would give a coinbase output in exchange for
// not requiring the minter to hold anyone's private keys.
func mintMaterial(owner Address, nonce Field) (key [32]byte, streamNonce [12]byte) {
	copy(key[:], crypto.Keccak256(owner[:], nonce.Bytes(), []byte("mint")))
	copy(streamNonce[:], crypto.Keccak256(nonce.Bytes(), []byte("mint"))[:12])
	return key, streamNonce
}

func newMintKeystream(owner Address, nonce Field) (*chacha20.Cipher, error) {
	key, streamNonce := mintMaterial(owner, nonce)
	return chacha20.NewUnauthenticatedCipher(key[:], streamNonce[:])
}

// MintRecord builds and encrypts a coinbase record of the given gate amount
// for owner, keyed deterministically by randomizer (the validator set seeds
// this with DeterministicField(blockHeight, ...) so reward records are
// byte-identical across honest replicas). programID/name follow the
// convention used elsewhere for commitment derivation (e.g. "credits.aleo"/
// "credits").
func MintRecord(owner Address, gates uint64, programID, name string, randomizer Field) (Field, EncryptedRecord, error) {
	r := Record{Owner: owner, Gates: gates, Nonce: randomizer}
	commitment := ComputeCommitment(r, programID, name)

	var plain bytes.Buffer
	if err := gob.NewEncoder(&plain).Encode(r); err != nil {
		return ZeroField, EncryptedRecord{}, err
	}
	plaintext := plain.Bytes()

	cipher, err := newMintKeystream(owner, randomizer)
	if err != nil {
		return ZeroField, EncryptedRecord{}, err
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.XORKeyStream(ciphertext, plaintext)

	checksum := crypto.Keccak256(plaintext)[:4]
	return commitment, EncryptedRecord{
		Nonce:      randomizer,
		Ciphertext: append(ciphertext, checksum...),
	}, nil
}

// DecryptMint reverses MintRecord for a holder who only knows their own
// address (the mint scheme needs no other key material to decrypt — see
// mintMaterial).
func (er EncryptedRecord) DecryptMint(owner Address) (Record, error) {
	if len(er.Ciphertext) < 4 {
		return Record{}, ErrDecryptionFailed
	}
	body := er.Ciphertext[:len(er.Ciphertext)-4]
	wantChecksum := er.Ciphertext[len(er.Ciphertext)-4:]

	cipher, err := newMintKeystream(owner, er.Nonce)
	if err != nil {
		return Record{}, err
	}
	plaintext := make([]byte, len(body))
	cipher.XORKeyStream(plaintext, body)

	gotChecksum := crypto.Keccak256(plaintext)[:4]
	if !bytes.Equal(gotChecksum, wantChecksum) {
		return Record{}, ErrDecryptionFailed
	}

	var r Record
	if err := gob.NewDecoder(bytes.NewReader(plaintext)).Decode(&r); err != nil {
		return Record{}, ErrDecryptionFailed
	}
	return r, nil
}

// IsMintOwner reports whether owner can decrypt er as a mint record owned by
// them.
func (er EncryptedRecord) IsMintOwner(owner Address) bool {
	r, err := er.DecryptMint(owner)
	if err != nil {
		return false
	}
	return r.Owner == owner
}
