// Copyright 2025 Certen Protocol
//
// Package verifier validates a transaction against the ledger's current
// state without mutating anything, so the same checks can run on the
// mempool connection (CheckTx) and again on delivery (DeliverTx) — exactly
// the duplication application.rs's check_tx/deliver_tx hooks accept to
// avoid trusting that every proposer only ever proposes valid blocks.
package verifier

import (
	"errors"
	"fmt"

	"github.com/certen/zkvm-validator/internal/programstore"
	"github.com/certen/zkvm-validator/internal/recordvm"
	"github.com/certen/zkvm-validator/internal/txn"
	"github.com/certen/zkvm-validator/internal/zkvm"
)

// ProgramView is the subset of internal/programstore.Store a verifier needs
// to check deployments and look up verifying keys.
type ProgramView interface {
	Get(programID string) (programstore.StoredProgram, bool, error)
	Exists(programID string) bool
}

// RecordView is the subset of internal/recordstore.Store a verifier needs to
// check that a transaction's inputs are not already spent. Whether an input
// record was ever added to the store is not checked.
type RecordView interface {
	IsUnspent(serialNumber []byte) bool
}

var (
	// ErrDuplicateInput is returned when a transaction spends the same
	// input commitment more than once across its transitions.
	ErrDuplicateInput = errors.New("verifier: duplicate input record commitment")
	// ErrInputSpent is returned when an input's serial number is already
	// spent, durably or earlier in the current block.
	ErrInputSpent = errors.New("verifier: input record is already spent")
	// ErrProgramExists is returned when a Deployment/Source targets a
	// program id already present in the Program Store.
	ErrProgramExists = errors.New("verifier: program already exists")
	// ErrProgramMissing is returned when an Execution targets a program
	// that has not been deployed.
	ErrProgramMissing = errors.New("verifier: program does not exist")
	// ErrTooManyInputs / ErrTooManyOutputs enforce the per-transition
	// fixed-size bounds the ZK circuit compiles against.
	ErrTooManyInputs  = errors.New("verifier: transition exceeds max inputs")
	ErrTooManyOutputs = errors.New("verifier: transition exceeds max outputs")
	// ErrNegativeFee rejects a transition that declares a negative fee.
	ErrNegativeFee = errors.New("verifier: transition fee must be non-negative")
	// ErrCoinbaseFunction rejects a submitted transaction that invokes a
	// coinbase-only function (credits.aleo's mint/genesis), which may only
	// run from genesis seeding or block-reward minting.
	ErrCoinbaseFunction = errors.New("verifier: coinbase functions cannot be invoked by a transaction")
	// ErrMissingTransition rejects an Execution with no transitions at all.
	ErrMissingTransition = errors.New("verifier: execution has no transitions")
	// ErrVerifyingKeyMismatch rejects a Deployment whose declared functions
	// and verifying keys don't correspond 1:1 for every non-coinbase
	// function.
	ErrVerifyingKeyMismatch = errors.New("verifier: verifying keys do not match declared functions")
	// ErrInvalidSource rejects a Source transaction with empty program
	// source text.
	ErrInvalidSource = errors.New("verifier: program source is empty")
	// ErrProofInvalid is returned when an execution transition's ZK proof
	// does not verify against its declared public inputs.
	ErrProofInvalid = errors.New("verifier: transition proof did not verify")
)

// zkBackend is package-level since TransitionCircuit's shape needs no
// per-call state to verify a proof (see GnarkBackend.Verify); it is not
// exported, callers only ever go through Verify.
var zkBackend = zkvm.NewGnarkBackend()

// Verify runs every structural and backend-specific check a transaction
// must pass before its effects can be applied, matching
// application.rs's check_no_duplicate_records -> check_inputs_are_unspent ->
// validate_transaction pipeline.
func Verify(tx txn.Transaction, programs ProgramView, records RecordView) error {
	if err := checkNoDuplicateInputs(tx); err != nil {
		return err
	}
	if err := checkInputsUnspent(tx, records); err != nil {
		return err
	}
	return validateTransaction(tx, programs)
}

func checkNoDuplicateInputs(tx txn.Transaction) error {
	seen := make(map[string]struct{})
	for _, c := range tx.OriginCommitments() {
		key := c.String()
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: commitment %s in transaction %s", ErrDuplicateInput, c, tx.ID)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func checkInputsUnspent(tx txn.Transaction, records RecordView) error {
	for _, sn := range tx.SerialNumbers() {
		if !records.IsUnspent(sn.Bytes()) {
			return fmt.Errorf("%w: serial number %s", ErrInputSpent, sn)
		}
	}
	return nil
}

func validateTransaction(tx txn.Transaction, programs ProgramView) error {
	switch tx.Kind {
	case txn.KindDeployment:
		return validateDeployment(tx.Deployment, programs)
	case txn.KindSource:
		return validateSource(tx.Source, programs)
	case txn.KindExecution:
		return validateExecution(tx.Execution, programs)
	default:
		return fmt.Errorf("verifier: unknown transaction kind %s", tx.Kind)
	}
}

func validateDeployment(d *txn.Deployment, programs ProgramView) error {
	if programs.Exists(d.Program.ID) {
		return fmt.Errorf("%w: %s", ErrProgramExists, d.Program.ID)
	}
	nonCoinbase := 0
	for _, fn := range d.Program.Functions {
		if fn.Coinbase {
			continue
		}
		nonCoinbase++
		if _, ok := d.VerifyingKeys[fn.Name]; !ok {
			return fmt.Errorf("%w: missing key for %s", ErrVerifyingKeyMismatch, fn.Name)
		}
		if _, err := zkvm.ReadVerifyingKey(d.VerifyingKeys[fn.Name]); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrVerifyingKeyMismatch, fn.Name, err)
		}
	}
	if len(d.VerifyingKeys) != nonCoinbase {
		return fmt.Errorf("%w: %d keys for %d functions", ErrVerifyingKeyMismatch, len(d.VerifyingKeys), nonCoinbase)
	}
	return nil
}

func validateSource(s *txn.Source, programs ProgramView) error {
	if programs.Exists(s.Program.ID) {
		return fmt.Errorf("%w: %s", ErrProgramExists, s.Program.ID)
	}
	if s.Program.Source == "" {
		return ErrInvalidSource
	}
	return nil
}

func validateExecution(e *txn.Execution, programs ProgramView) error {
	if len(e.Transitions) == 0 {
		return ErrMissingTransition
	}

	// The original only inspects the first transition's program id to look
	// up a single verifying-key set; every transition in this ledger's
	// transaction model belongs to the same program invocation.
	first := e.Transitions[0]
	stored, found, err := programs.Get(first.ProgramID)
	if err != nil {
		return fmt.Errorf("verifier: look up program %s: %w", first.ProgramID, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrProgramMissing, first.ProgramID)
	}

	for _, t := range e.Transitions {
		if err := validateTransition(t, stored); err != nil {
			return err
		}
	}
	return nil
}

func validateTransition(t txn.Transition, stored programstore.StoredProgram) error {
	if len(t.Inputs) > txn.MaxInputs {
		return fmt.Errorf("%w: %d > %d", ErrTooManyInputs, len(t.Inputs), txn.MaxInputs)
	}
	if len(t.Outputs) > txn.MaxOutputs {
		return fmt.Errorf("%w: %d > %d", ErrTooManyOutputs, len(t.Outputs), txn.MaxOutputs)
	}
	if t.Fee < 0 {
		return ErrNegativeFee
	}

	fn, ok := stored.Program.HasFunction(t.FunctionName)
	if !ok {
		return fmt.Errorf("verifier: function %s not declared by program %s", t.FunctionName, t.ProgramID)
	}
	if fn.Coinbase {
		return fmt.Errorf("%w: %s/%s", ErrCoinbaseFunction, t.ProgramID, t.FunctionName)
	}

	vkBytes, ok := stored.VerifyingKeys[t.FunctionName]
	if !ok {
		return fmt.Errorf("verifier: no verifying key stored for %s/%s", t.ProgramID, t.FunctionName)
	}
	vk, err := zkvm.ReadVerifyingKey(vkBytes)
	if err != nil {
		return fmt.Errorf("verifier: decode verifying key for %s/%s: %w", t.ProgramID, t.FunctionName, err)
	}

	proof, err := zkvm.UnmarshalProof(t.Proof)
	if err != nil {
		return fmt.Errorf("verifier: decode proof for %s/%s: %w", t.ProgramID, t.FunctionName, err)
	}

	publicInputs := transitionPublicInputs(t)
	ok, err = zkBackend.Verify(vk, publicInputs, proof)
	if err != nil {
		return fmt.Errorf("verifier: %w: %v", ErrProofInvalid, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrProofInvalid, t.ProgramID, t.FunctionName)
	}
	return nil
}

// transitionPublicInputs folds a transition's input/output record
// commitments into the InputsCommitment/OutputsCommitment public witness
// TransitionCircuit expects, plus the declared fee as a field element.
func transitionPublicInputs(t txn.Transition) []recordvm.Field {
	origins := make([]recordvm.Field, len(t.Inputs))
	for i, in := range t.Inputs {
		origins[i] = in.Origin
	}
	outputs := make([]recordvm.Field, len(t.Outputs))
	for i, out := range t.Outputs {
		outputs[i] = out.Commitment
	}
	return []recordvm.Field{
		zkvm.FoldCommitment(origins),
		zkvm.FoldCommitment(outputs),
		recordvm.NewFieldFromUint64(uint64(t.Fee)),
	}
}
