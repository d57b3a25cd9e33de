// Copyright 2025 Certen Protocol

package abci

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	ed25519 "github.com/cometbft/cometbft/crypto/ed25519"

	"github.com/certen/zkvm-validator/internal/recordvm"
	"github.com/certen/zkvm-validator/internal/validatorset"
)

// genesisRecord is the wire shape of one initial record in InitChain's
// app-state JSON: a commitment paired with its already-encrypted ciphertext,
// both hex-encoded for JSON transport.
type genesisRecord struct {
	Commitment string `json:"commitment"`
	Ciphertext string `json:"ciphertext"`
}

// genesisValidator is the wire shape of one genesis validator entry.
// PubKey is base64-encoded, matching tendermint/cometbft JSON genesis files
// and original_source's validator.rs::parse_pub_key ("as it appears in
// tendermint JSON files") — not hex.
type genesisValidator struct {
	PubKey      string `json:"pub_key"`
	AleoAddress string `json:"aleo_address"`
	VotingPower int64  `json:"voting_power"`
}

// genesisState is the full InitChain app-state payload: a seed set of
// records plus the initial validator roster, matching spec.md §4.5's
// init_chain description.
type genesisState struct {
	Records    []genesisRecord    `json:"records"`
	Validators []genesisValidator `json:"validators"`
}

func parseGenesisState(appStateBytes []byte) (genesisState, error) {
	var gs genesisState
	if len(appStateBytes) == 0 {
		return gs, nil
	}
	if err := json.Unmarshal(appStateBytes, &gs); err != nil {
		return genesisState{}, fmt.Errorf("abci: decode genesis app state: %w", err)
	}
	return gs, nil
}

func (gr genesisRecord) decode() (commitment, ciphertext []byte, err error) {
	commitment, err = hex.DecodeString(gr.Commitment)
	if err != nil {
		return nil, nil, fmt.Errorf("abci: genesis record commitment: %w", err)
	}
	ciphertext, err = hex.DecodeString(gr.Ciphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("abci: genesis record ciphertext: %w", err)
	}
	return commitment, ciphertext, nil
}

func (gv genesisValidator) decode() (validatorset.Validator, error) {
	addr, err := recordvm.ParseAddress(gv.AleoAddress)
	if err != nil {
		return validatorset.Validator{}, fmt.Errorf("abci: genesis validator: %w", err)
	}
	pk, err := base64.StdEncoding.DecodeString(gv.PubKey)
	if err != nil {
		return validatorset.Validator{}, fmt.Errorf("abci: genesis validator pub_key: %w", err)
	}
	return validatorset.Validator{
		AleoAddress: addr,
		PubKey:      ed25519.PubKey(pk),
		VotingPower: gv.VotingPower,
	}, nil
}
