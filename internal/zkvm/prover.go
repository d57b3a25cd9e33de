// Copyright 2025 Certen Protocol
//
// Transition ZK Prover - Generates and verifies Groth16 proofs of
// transition value conservation.
//
// This package provides:
//   - Circuit compilation and setup (one-time per program)
//   - Proof generation for a transition's input/output witness
//   - Proving/verifying key serialization for durable storage
package zkvm

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/certen/zkvm-validator/internal/recordvm"
)

// Field is the element type the Backend interface speaks in: the same
// representation internal/recordvm uses for commitments and serial numbers,
// so callers never convert between two notions of "field element".
type Field = recordvm.Field

// ErrNotInitialized is returned when Prove/Verify is called on a Program
// that hasn't been through Setup.
var ErrNotInitialized = errors.New("zkvm: program has not been through Setup")

// Program is a compiled circuit, identified by the program id / function
// name it backs. SPEC_FULL.md treats the ZK primitive as an abstract black
// box; in this implementation every program/function compiles to the same
// TransitionCircuit shape (value conservation), so Program mostly exists to
// give each function its own proving/verifying key pair.
type Program struct {
	ID string
	cs constraint.ConstraintSystem
}

// ProvingKey wraps a Groth16 proving key with byte serialization.
type ProvingKey struct {
	pk groth16.ProvingKey
}

// VerifyingKey wraps a Groth16 verifying key with byte serialization.
type VerifyingKey struct {
	vk groth16.VerifyingKey
}

// VerifyingKeyMap / ProvingKeyMap collect one key per function name, the
// shape internal/programstore.StoredProgram persists.
type VerifyingKeyMap map[string]VerifyingKey
type ProvingKeyMap map[string]ProvingKey

// Proof is a serializable Groth16 proof (Ar, Bs, Krs points), the same
// A/B/C extraction shape as the teacher's BLSZKProof.
type Proof struct {
	A [2]*big.Int
	B [2][2]*big.Int
	C [2]*big.Int
}

// Backend is the abstract ZK primitive SPEC_FULL.md calls for: build a
// circuit for a program/function, synthesize its key pair, then prove and
// verify witnesses against it.
type Backend interface {
	Build(programID string) (*Program, error)
	Setup(program *Program) (ProvingKey, VerifyingKey, error)
	Prove(provingKey ProvingKey, publicInputs, privateWitness []Field) (Proof, error)
	Verify(verifyingKey VerifyingKey, publicInputs []Field, proof Proof) (bool, error)
}

// GnarkBackend implements Backend with gnark/gnark-crypto over BN254,
// grounded on the teacher's BLSZKProver: same compile -> Setup -> Prove /
// Verify call sequence, same constraint-system caching, same witness-struct
// idiom, applied to TransitionCircuit instead of SimpleBLSCircuit.
type GnarkBackend struct {
	mu sync.RWMutex
	cs constraint.ConstraintSystem
}

// NewGnarkBackend creates a new, uninitialized backend. Call Build once
// before Setup/Prove/Verify.
func NewGnarkBackend() *GnarkBackend {
	return &GnarkBackend{}
}

// Build compiles TransitionCircuit to R1CS for programID. The constraint
// system is identical for every program/function (value conservation is
// program-agnostic in this spec), so Build is cheap to call repeatedly —
// it is kept per-program rather than global because a real snarkVM-style
// backend would compile a distinct circuit per program, and this keeps the
// call shape compatible with that eventual extension.
func (b *GnarkBackend) Build(programID string) (*Program, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cs == nil {
		var circuit TransitionCircuit
		cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
		if err != nil {
			return nil, fmt.Errorf("zkvm: compile circuit: %w", err)
		}
		b.cs = cs
	}
	return &Program{ID: programID, cs: b.cs}, nil
}

// Setup runs the Groth16 trusted setup for program, producing a fresh
// proving/verifying key pair.
func (b *GnarkBackend) Setup(program *Program) (ProvingKey, VerifyingKey, error) {
	if program == nil || program.cs == nil {
		return ProvingKey{}, VerifyingKey{}, fmt.Errorf("zkvm: %w", ErrNotInitialized)
	}
	pk, vk, err := groth16.Setup(program.cs)
	if err != nil {
		return ProvingKey{}, VerifyingKey{}, fmt.Errorf("zkvm: groth16 setup: %w", err)
	}
	return ProvingKey{pk: pk}, VerifyingKey{vk: vk}, nil
}

// Prove generates a proof that privateWitness (InputValues || OutputValues)
// is consistent with publicInputs (InputsCommitment, OutputsCommitment,
// Fee) under TransitionCircuit's constraints.
func (b *GnarkBackend) Prove(provingKey ProvingKey, publicInputs, privateWitness []Field) (Proof, error) {
	if provingKey.pk == nil {
		return Proof{}, fmt.Errorf("zkvm: %w", ErrNotInitialized)
	}
	if len(publicInputs) != 3 {
		return Proof{}, fmt.Errorf("zkvm: expected 3 public inputs (inputsCommitment, outputsCommitment, fee), got %d", len(publicInputs))
	}
	if len(privateWitness) != MaxInputs+MaxOutputs {
		return Proof{}, fmt.Errorf("zkvm: expected %d private witness values, got %d", MaxInputs+MaxOutputs, len(privateWitness))
	}

	assignment := &TransitionCircuit{
		InputsCommitment:  publicInputs[0].BigInt(),
		OutputsCommitment: publicInputs[1].BigInt(),
		Fee:               publicInputs[2].BigInt(),
	}
	for i := 0; i < MaxInputs; i++ {
		assignment.InputValues[i] = privateWitness[i].BigInt()
	}
	for i := 0; i < MaxOutputs; i++ {
		assignment.OutputValues[i] = privateWitness[MaxInputs+i].BigInt()
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return Proof{}, fmt.Errorf("zkvm: create witness: %w", err)
	}

	b.mu.RLock()
	cs := b.cs
	b.mu.RUnlock()
	if cs == nil {
		return Proof{}, fmt.Errorf("zkvm: %w", ErrNotInitialized)
	}

	proof, err := groth16.Prove(cs, provingKey.pk, witness)
	if err != nil {
		return Proof{}, fmt.Errorf("zkvm: generate proof: %w", err)
	}
	return extractProof(proof)
}

// Verify checks proof against publicInputs under verifyingKey.
func (b *GnarkBackend) Verify(verifyingKey VerifyingKey, publicInputs []Field, proof Proof) (bool, error) {
	if verifyingKey.vk == nil {
		return false, fmt.Errorf("zkvm: %w", ErrNotInitialized)
	}
	if len(publicInputs) != 3 {
		return false, fmt.Errorf("zkvm: expected 3 public inputs, got %d", len(publicInputs))
	}

	assignment := &TransitionCircuit{
		InputsCommitment:  publicInputs[0].BigInt(),
		OutputsCommitment: publicInputs[1].BigInt(),
		Fee:               publicInputs[2].BigInt(),
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("zkvm: create public witness: %w", err)
	}

	groth16Proof, err := reconstructProof(proof)
	if err != nil {
		return false, fmt.Errorf("zkvm: reconstruct proof: %w", err)
	}

	if err := groth16.Verify(groth16Proof, verifyingKey.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

// FoldCommitment folds a value vector into a single field element outside
// the circuit, using the same power-of-mixingCoefficient linear combination
// TransitionCircuit.Define applies inside it. Both the prover (building a
// witness) and internal/verifier (reconstructing the public inputs a stored
// proof claims to satisfy) call this so they always agree on what a
// "commitment" over a given vector means.
func FoldCommitment(values []Field) Field {
	result := new(big.Int)
	power := big.NewInt(1)
	mix := big.NewInt(mixingCoefficient)
	for _, v := range values {
		result.Add(result, new(big.Int).Mul(v.BigInt(), power))
		power.Mul(power, mix)
	}
	return recordvm.FieldFromBytes(result.Bytes())
}

// MarshalProof / UnmarshalProof serialize a Proof for storage inside a
// Transition's opaque Proof field.
func MarshalProof(p Proof) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("zkvm: marshal proof: %w", err)
	}
	return buf.Bytes(), nil
}

func UnmarshalProof(b []byte) (Proof, error) {
	var p Proof
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&p); err != nil {
		return Proof{}, fmt.Errorf("zkvm: unmarshal proof: %w", err)
	}
	return p, nil
}

// WriteProvingKey / WriteVerifyingKey serialize keys for durable storage,
// matching the teacher's WriteTo-to-file pattern but returning bytes so
// callers (internal/programstore) can store them as an ordinary []byte
// value instead of a file path.
func WriteProvingKey(pk ProvingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := pk.pk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("zkvm: write proving key: %w", err)
	}
	return buf.Bytes(), nil
}

func WriteVerifyingKey(vk VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("zkvm: write verifying key: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadProvingKey / ReadVerifyingKey deserialize keys written by the
// functions above.
func ReadProvingKey(b []byte) (ProvingKey, error) {
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(bytes.NewReader(b)); err != nil {
		return ProvingKey{}, fmt.Errorf("zkvm: read proving key: %w", err)
	}
	return ProvingKey{pk: pk}, nil
}

func ReadVerifyingKey(b []byte) (VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(b)); err != nil {
		return VerifyingKey{}, fmt.Errorf("zkvm: read verifying key: %w", err)
	}
	return VerifyingKey{vk: vk}, nil
}

func extractProof(proof groth16.Proof) (Proof, error) {
	p, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return Proof{}, errors.New("zkvm: proof is not BN254 type")
	}

	arX, arY := new(big.Int), new(big.Int)
	p.Ar.X.BigInt(arX)
	p.Ar.Y.BigInt(arY)

	bsX0, bsX1, bsY0, bsY1 := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
	p.Bs.X.A0.BigInt(bsX0)
	p.Bs.X.A1.BigInt(bsX1)
	p.Bs.Y.A0.BigInt(bsY0)
	p.Bs.Y.A1.BigInt(bsY1)

	krsX, krsY := new(big.Int), new(big.Int)
	p.Krs.X.BigInt(krsX)
	p.Krs.Y.BigInt(krsY)

	return Proof{
		A: [2]*big.Int{arX, arY},
		B: [2][2]*big.Int{{bsX0, bsX1}, {bsY0, bsY1}},
		C: [2]*big.Int{krsX, krsY},
	}, nil
}

func reconstructProof(zkProof Proof) (groth16.Proof, error) {
	proof := &groth16bn254.Proof{}
	proof.Ar.X.SetBigInt(zkProof.A[0])
	proof.Ar.Y.SetBigInt(zkProof.A[1])
	proof.Bs.X.A0.SetBigInt(zkProof.B[0][0])
	proof.Bs.X.A1.SetBigInt(zkProof.B[0][1])
	proof.Bs.Y.A0.SetBigInt(zkProof.B[1][0])
	proof.Bs.Y.A1.SetBigInt(zkProof.B[1][1])
	proof.Krs.X.SetBigInt(zkProof.C[0])
	proof.Krs.Y.SetBigInt(zkProof.C[1])
	return proof, nil
}
