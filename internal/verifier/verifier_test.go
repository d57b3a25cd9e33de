// Copyright 2025 Certen Protocol

package verifier

import (
	"testing"

	"github.com/certen/zkvm-validator/internal/programstore"
	"github.com/certen/zkvm-validator/internal/recordvm"
	"github.com/certen/zkvm-validator/internal/txn"
	"github.com/certen/zkvm-validator/internal/zkvm"
)

type fakePrograms struct {
	programs map[string]programstore.StoredProgram
}

func (f fakePrograms) Get(id string) (programstore.StoredProgram, bool, error) {
	p, ok := f.programs[id]
	return p, ok, nil
}

func (f fakePrograms) Exists(id string) bool {
	_, ok := f.programs[id]
	return ok
}

type fakeRecords struct {
	spent map[string]struct{}
}

func (f fakeRecords) IsUnspent(serialNumber []byte) bool {
	_, spent := f.spent[string(serialNumber)]
	return !spent
}

func TestCheckNoDuplicateInputsRejectsRepeatedCommitment(t *testing.T) {
	commitment := recordvm.NewFieldFromUint64(1)
	tx := txn.NewExecution("tx1", []txn.Transition{
		{
			ProgramID:    "credits.aleo",
			FunctionName: "transfer",
			Inputs: []txn.Input{
				{Origin: commitment, SerialNumber: recordvm.NewFieldFromUint64(2)},
				{Origin: commitment, SerialNumber: recordvm.NewFieldFromUint64(3)},
			},
		},
	})

	err := Verify(tx, fakePrograms{}, fakeRecords{spent: map[string]struct{}{}})
	if err == nil {
		t.Fatal("expected duplicate input rejection")
	}
}

func TestCheckInputsUnspentRejectsSpentInput(t *testing.T) {
	commitment := recordvm.NewFieldFromUint64(1)
	serial := recordvm.NewFieldFromUint64(2)
	tx := txn.NewExecution("tx1", []txn.Transition{
		{
			ProgramID:    "credits.aleo",
			FunctionName: "transfer",
			Inputs:       []txn.Input{{Origin: commitment, SerialNumber: serial}},
		},
	})

	records := fakeRecords{spent: map[string]struct{}{string(serial.Bytes()): {}}}
	err := Verify(tx, fakePrograms{}, records)
	if err == nil {
		t.Fatal("expected spent input rejection")
	}
}

func TestValidateExecutionRejectsMissingProgram(t *testing.T) {
	tx := txn.NewExecution("tx1", []txn.Transition{
		{ProgramID: "nowhere.aleo", FunctionName: "transfer"},
	})

	err := Verify(tx, fakePrograms{programs: map[string]programstore.StoredProgram{}}, fakeRecords{spent: map[string]struct{}{}})
	if err == nil {
		t.Fatal("expected missing-program rejection")
	}
}

func TestValidateExecutionRejectsCoinbaseFunction(t *testing.T) {
	programs := fakePrograms{programs: map[string]programstore.StoredProgram{
		"credits.aleo": {
			Program: programstore.Program{
				ID:        "credits.aleo",
				Functions: []programstore.Function{{Name: "mint", Coinbase: true}},
			},
		},
	}}

	tx := txn.NewExecution("tx1", []txn.Transition{
		{ProgramID: "credits.aleo", FunctionName: "mint"},
	})

	err := Verify(tx, programs, fakeRecords{spent: map[string]struct{}{}})
	if err == nil {
		t.Fatal("expected coinbase function rejection")
	}
}

func TestValidateDeploymentRejectsExistingProgram(t *testing.T) {
	programs := fakePrograms{programs: map[string]programstore.StoredProgram{
		"hello.aleo": {Program: programstore.Program{ID: "hello.aleo"}},
	}}

	tx := txn.NewDeployment("tx1", programstore.Program{ID: "hello.aleo"}, nil)
	if err := Verify(tx, programs, fakeRecords{spent: map[string]struct{}{}}); err == nil {
		t.Fatal("expected already-exists rejection")
	}
}

func TestValidateSourceRejectsEmptySource(t *testing.T) {
	tx := txn.NewSource("tx1", programstore.Program{ID: "hello.aleo"})
	err := Verify(tx, fakePrograms{programs: map[string]programstore.StoredProgram{}}, fakeRecords{spent: map[string]struct{}{}})
	if err == nil {
		t.Fatal("expected empty-source rejection")
	}
}

func TestValidateExecutionAcceptsValidProof(t *testing.T) {
	backend := zkvm.NewGnarkBackend()
	program, err := backend.Build("credits.aleo/transfer")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	pk, vk, err := backend.Setup(program)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	vkBytes, err := zkvm.WriteVerifyingKey(vk)
	if err != nil {
		t.Fatalf("write vk: %v", err)
	}

	origin := recordvm.NewFieldFromUint64(100)
	serial := recordvm.NewFieldFromUint64(101)
	outputCommitment := recordvm.NewFieldFromUint64(90)
	fee := int64(10)

	inputValues := make([]recordvm.Field, zkvm.MaxInputs)
	outputValues := make([]recordvm.Field, zkvm.MaxOutputs)
	inputValues[0] = origin
	outputValues[0] = outputCommitment

	publicInputs := []recordvm.Field{
		zkvm.FoldCommitment(inputValues),
		zkvm.FoldCommitment(outputValues),
		recordvm.NewFieldFromUint64(uint64(fee)),
	}
	privateWitness := append(append([]recordvm.Field{}, inputValues...), outputValues...)

	proof, err := backend.Prove(pk, publicInputs, privateWitness)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	proofBytes, err := zkvm.MarshalProof(proof)
	if err != nil {
		t.Fatalf("marshal proof: %v", err)
	}

	programs := fakePrograms{programs: map[string]programstore.StoredProgram{
		"credits.aleo": {
			Program: programstore.Program{
				ID:        "credits.aleo",
				Functions: []programstore.Function{{Name: "transfer"}},
			},
			VerifyingKeys: map[string][]byte{"transfer": vkBytes},
		},
	}}

	tx := txn.NewExecution("tx1", []txn.Transition{
		{
			ProgramID:    "credits.aleo",
			FunctionName: "transfer",
			Inputs:       []txn.Input{{Origin: origin, SerialNumber: serial}},
			Outputs:      []txn.Output{{Commitment: outputCommitment}},
			Proof:        proofBytes,
			Fee:          fee,
		},
	})

	if err := Verify(tx, programs, fakeRecords{spent: map[string]struct{}{}}); err != nil {
		t.Fatalf("expected valid proof to verify, got: %v", err)
	}
}
