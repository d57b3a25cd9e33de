// Copyright 2025 Certen Protocol
//
// Package txn models the three transaction shapes the ledger accepts, as a
// closed sum type: a Kind tag plus one of Deployment/Source/Execution.
// Deliberately not an interface hierarchy — the Transaction Verifier needs
// to exhaustively switch on every shape, and a tagged struct makes a missing
// case a compile-visible omission in that switch rather than an interface
// method some variant forgot to implement.
package txn

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/certen/zkvm-validator/internal/programstore"
	"github.com/certen/zkvm-validator/internal/recordvm"
)

// Kind discriminates which of Deployment/Source/Execution a Transaction
// carries.
type Kind int

const (
	KindDeployment Kind = iota
	KindSource
	KindExecution
)

func (k Kind) String() string {
	switch k {
	case KindDeployment:
		return "Deployment"
	case KindSource:
		return "Source"
	case KindExecution:
		return "Execution"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MAX_INPUTS / MAX_OUTPUTS bound how many inputs/outputs a single transition
// may declare, matching the original's per-transition limits.
const (
	MaxInputs  = 8
	MaxOutputs = 8
)

// Deployment sends a program along with offline-generated verifying keys,
// one of the two ways a program can be deployed.
type Deployment struct {
	Program       programstore.Program
	VerifyingKeys map[string][]byte
}

// Source sends a program's source only; verifying keys are generated
// on-chain once the program is admitted, so none travel with the
// transaction.
type Source struct {
	Program programstore.Program
}

// Input is one consumed record reference within a transition: Origin is the
// commitment of the record being spent (used to look it up in the Record
// Store), SerialNumber is the nullifier that actually gets marked spent.
type Input struct {
	Origin       recordvm.Field
	SerialNumber recordvm.Field
}

// Output is one produced record within a transition.
type Output struct {
	Commitment recordvm.Field
	Record     recordvm.EncryptedRecord
}

// Transition is one function call within an Execution transaction.
type Transition struct {
	ProgramID    string
	FunctionName string
	Inputs       []Input
	Outputs      []Output
	Proof        []byte
	Fee          int64
}

// Execution bundles the transitions a single transaction runs, in order.
type Execution struct {
	Transitions []Transition
}

// Transaction is the closed sum type: exactly one of Deployment, Source, or
// Execution is populated, selected by Kind.
type Transaction struct {
	Kind Kind
	ID   string

	Deployment *Deployment
	Source     *Source
	Execution  *Execution
}

// NewDeployment builds a Deployment transaction.
func NewDeployment(id string, program programstore.Program, verifyingKeys map[string][]byte) Transaction {
	return Transaction{
		Kind: KindDeployment,
		ID:   id,
		Deployment: &Deployment{
			Program:       program,
			VerifyingKeys: verifyingKeys,
		},
	}
}

// NewSource builds a Source transaction.
func NewSource(id string, program programstore.Program) Transaction {
	return Transaction{
		Kind:   KindSource,
		ID:     id,
		Source: &Source{Program: program},
	}
}

// NewExecution builds an Execution transaction.
func NewExecution(id string, transitions []Transition) Transaction {
	return Transaction{
		Kind:      KindExecution,
		ID:        id,
		Execution: &Execution{Transitions: transitions},
	}
}

// OutputRecords flattens every transition's outputs. Returns nil for
// Deployment/Source transactions, which carry no records.
func (tx Transaction) OutputRecords() []Output {
	if tx.Kind != KindExecution || tx.Execution == nil {
		return nil
	}
	var out []Output
	for _, t := range tx.Execution.Transitions {
		out = append(out, t.Outputs...)
	}
	return out
}

// OriginCommitments flattens the commitment of every input record across
// every transition, the set the verifier checks for duplicates.
func (tx Transaction) OriginCommitments() []recordvm.Field {
	if tx.Kind != KindExecution || tx.Execution == nil {
		return nil
	}
	var out []recordvm.Field
	for _, t := range tx.Execution.Transitions {
		for _, in := range t.Inputs {
			out = append(out, in.Origin)
		}
	}
	return out
}

// SerialNumbers flattens the serial number of every input record across
// every transition, the set the verifier checks for unspent-ness and the
// Record Store spends on successful delivery.
func (tx Transaction) SerialNumbers() []recordvm.Field {
	if tx.Kind != KindExecution || tx.Execution == nil {
		return nil
	}
	var out []recordvm.Field
	for _, t := range tx.Execution.Transitions {
		for _, in := range t.Inputs {
			out = append(out, in.SerialNumber)
		}
	}
	return out
}

// TotalFee sums the fee declared by every transition in an Execution.
func (tx Transaction) TotalFee() int64 {
	if tx.Kind != KindExecution || tx.Execution == nil {
		return 0
	}
	var total int64
	for _, t := range tx.Execution.Transitions {
		total += t.Fee
	}
	return total
}

// String matches the original's Display impl: "<Kind>(<id>,<program id>)".
func (tx Transaction) String() string {
	switch tx.Kind {
	case KindDeployment:
		return fmt.Sprintf("Deployment(%s,%s)", tx.ID, tx.Deployment.Program.ID)
	case KindSource:
		return fmt.Sprintf("Source(%s,%s)", tx.ID, tx.Source.Program.ID)
	case KindExecution:
		programID := ""
		if len(tx.Execution.Transitions) > 0 {
			programID = tx.Execution.Transitions[0].ProgramID
		}
		return fmt.Sprintf("Execution(%s,%s)", tx.ID, programID)
	default:
		return fmt.Sprintf("Transaction(%s,kind=%s)", tx.ID, tx.Kind)
	}
}

// Marshal encodes the transaction for wire transport / storage, the Go
// analogue of the original's bincode-serialized form.
func (tx Transaction) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tx); err != nil {
		return nil, fmt.Errorf("txn: marshal: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes the wire form produced by Marshal.
func Unmarshal(b []byte) (Transaction, error) {
	var tx Transaction
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&tx); err != nil {
		return Transaction{}, fmt.Errorf("txn: unmarshal: %w", err)
	}
	if err := tx.validateShape(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

var errMalformedTransaction = errors.New("txn: transaction kind does not match populated variant")

// validateShape checks that exactly the variant named by Kind is populated,
// guarding against a hand-crafted or corrupted wire payload reaching the
// verifier with a nil pointer for its own kind.
func (tx Transaction) validateShape() error {
	switch tx.Kind {
	case KindDeployment:
		if tx.Deployment == nil {
			return errMalformedTransaction
		}
	case KindSource:
		if tx.Source == nil {
			return errMalformedTransaction
		}
	case KindExecution:
		if tx.Execution == nil {
			return errMalformedTransaction
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", errMalformedTransaction, tx.Kind)
	}
	return nil
}
