// Copyright 2025 Certen Protocol

package recordvm

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
)

// Record is an encrypted value-bearing object owned by an address.
type Record struct {
	Owner   Address
	Gates   uint64
	Entries map[string][]byte
	Nonce   Field
}

// EncryptedRecord is the durable, storable form of a Record: the Nonce is
// kept in the clear (it is needed to re-derive the decryption keystream) and
// the rest of the record is symmetrically encrypted under the owner's view
// key.
type EncryptedRecord struct {
	Nonce      Field
	Ciphertext []byte
}

var ErrDecryptionFailed = errors.New("recordvm: decryption checksum mismatch")

// canonicalBytes serializes the fields that participate in the commitment in
// a fixed order, so two records with identical content always hash to the
// same commitment regardless of map iteration order.
func (r Record) canonicalBytes(programID, name string) []byte {
	var buf bytes.Buffer
	buf.Write(r.Owner[:])

	var gatesBuf [8]byte
	binary.BigEndian.PutUint64(gatesBuf[:], r.Gates)
	buf.Write(gatesBuf[:])

	keys := make([]string, 0, len(r.Entries))
	for k := range r.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte(0)
		buf.Write(r.Entries[k])
		buf.WriteByte(0)
	}

	buf.Write(r.Nonce.Bytes())
	buf.WriteString(programID)
	buf.WriteByte(0)
	buf.WriteString(name)
	return buf.Bytes()
}

// ComputeCommitment computes the field element binding this record's
// plaintext to the program/record name it was produced under.
func ComputeCommitment(r Record, programID, name string) Field {
	h := crypto.Keccak256(r.canonicalBytes(programID, name))
	return FieldFromBytes(h)
}

// ComputeSerialNumber derives the serial number that reveals a record has
// been spent without revealing which commitment it corresponds to, unless
// the derivation key is known.
func ComputeSerialNumber(priv PrivateKey, commitment Field) Field {
	h := crypto.Keccak256(priv[:], commitment.Bytes())
	return FieldFromBytes(h)
}

// encryptionMaterial derives the symmetric key and stream-cipher nonce used
// to encrypt/decrypt a record, from the view key and the record's public
// nonce field. This is a simplified stand-in for the original's curve-based
// ECDH scheme: the ZK primitive is treated as a black box by the spec this
// implements, and record confidentiality only needs to be "decryptable by
// the view key holder, opaque to anyone else," not full public-key crypto.
func encryptionMaterial(vk ViewKey, nonce Field) (key [32]byte, streamNonce [12]byte) {
	copy(key[:], crypto.Keccak256(vk[:], nonce.Bytes()))
	copy(streamNonce[:], crypto.Keccak256(nonce.Bytes())[:12])
	return key, streamNonce
}

// Encrypt symmetrically encrypts r under viewKey, keyed by randomizer (the
// record's nonce). Returns the durable EncryptedRecord form.
func (r Record) Encrypt(viewKey ViewKey, randomizer Field) (EncryptedRecord, error) {
	var plain bytes.Buffer
	if err := gob.NewEncoder(&plain).Encode(r); err != nil {
		return EncryptedRecord{}, err
	}
	plaintext := plain.Bytes()

	cipher, err := newKeystream(viewKey, randomizer)
	if err != nil {
		return EncryptedRecord{}, err
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.XORKeyStream(ciphertext, plaintext)

	checksum := crypto.Keccak256(plaintext)[:4]
	return EncryptedRecord{
		Nonce:      randomizer,
		Ciphertext: append(ciphertext, checksum...),
	}, nil
}

// Decrypt reverses Encrypt. Returns ErrDecryptionFailed if viewKey does not
// correspond to the key this record was encrypted under.
func (er EncryptedRecord) Decrypt(viewKey ViewKey) (Record, error) {
	if len(er.Ciphertext) < 4 {
		return Record{}, ErrDecryptionFailed
	}
	body := er.Ciphertext[:len(er.Ciphertext)-4]
	wantChecksum := er.Ciphertext[len(er.Ciphertext)-4:]

	cipher, err := newKeystream(viewKey, er.Nonce)
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

// IsOwner reports whether viewKey can decrypt er into a record owned by
// address.
func (er EncryptedRecord) IsOwner(address Address, viewKey ViewKey) bool {
	r, err := er.Decrypt(viewKey)
	if err != nil {
		return false
	}
	return r.Owner == address
}

// Marshal returns the wire form stored as the record store's ciphertext
// value: the 32-byte nonce followed by the ciphertext.
func (er EncryptedRecord) Marshal() []byte {
	out := make([]byte, 0, 32+len(er.Ciphertext))
	out = append(out, er.Nonce.Bytes()...)
	out = append(out, er.Ciphertext...)
	return out
}

// UnmarshalEncryptedRecord parses the wire form produced by Marshal.
func UnmarshalEncryptedRecord(b []byte) (EncryptedRecord, error) {
	if len(b) < 32 {
		return EncryptedRecord{}, errors.New("recordvm: truncated encrypted record")
	}
	return EncryptedRecord{
		Nonce:      FieldFromBytes(b[:32]),
		Ciphertext: append([]byte(nil), b[32:]...),
	}, nil
}
