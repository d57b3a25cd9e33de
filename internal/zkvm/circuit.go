// Copyright 2025 Certen Protocol
//
// Transition ZK Circuit Definition
// Proves a transition's inputs balance its outputs without revealing either
// in the clear: the public witness only carries commitments to the input
// and output value vectors plus the declared fee.
//
// This circuit proves:
//   1. The declared input-value commitment matches the private input values
//   2. The declared output-value commitment matches the private output values
//   3. sum(inputs) == sum(outputs) + fee, i.e. the transition conserves value
//   4. The declared fee is non-negative
//
// Uses gnark for ZK-SNARK circuit definition (Groth16 proving system).
package zkvm

import (
	"github.com/consensys/gnark/frontend"
)

// MaxInputs / MaxOutputs bound the circuit's fixed-size witness arrays,
// matching internal/txn's per-transition limits — gnark circuits need a
// compile-time-fixed shape, so a transition with fewer than MaxInputs/
// MaxOutputs real values pads the remainder with zeroes.
const (
	MaxInputs  = 8
	MaxOutputs = 8
)

// mixingCoefficient is the fixed base used to fold a value vector into a
// single commitment via a power-of-r linear combination, the same
// commitment-by-linear-combination idiom the teacher's circuit uses for its
// pubkey commitment.
const mixingCoefficient = 7

// TransitionCircuit defines the ZK circuit for a single transition's
// input/output value conservation.
type TransitionCircuit struct {
	// ===================
	// PUBLIC INPUTS (known to verifier)
	// ===================

	// InputsCommitment commits to the private InputValues vector.
	InputsCommitment frontend.Variable `gnark:",public"`

	// OutputsCommitment commits to the private OutputValues vector.
	OutputsCommitment frontend.Variable `gnark:",public"`

	// Fee is the transition's declared fee, paid from the input/output
	// balance difference.
	Fee frontend.Variable `gnark:",public"`

	// ===================
	// PRIVATE INPUTS (known only to prover)
	// ===================

	InputValues  [MaxInputs]frontend.Variable
	OutputValues [MaxOutputs]frontend.Variable
}

// Define implements the circuit constraints.
func (c *TransitionCircuit) Define(api frontend.API) error {
	inputsCommitment := foldCommitment(api, c.InputValues[:])
	api.AssertIsEqual(c.InputsCommitment, inputsCommitment)

	outputsCommitment := foldCommitment(api, c.OutputValues[:])
	api.AssertIsEqual(c.OutputsCommitment, outputsCommitment)

	var inputsSum frontend.Variable = 0
	for _, v := range c.InputValues {
		inputsSum = api.Add(inputsSum, v)
	}
	var outputsSum frontend.Variable = 0
	for _, v := range c.OutputValues {
		outputsSum = api.Add(outputsSum, v)
	}

	// inputs == outputs + fee
	api.AssertIsEqual(inputsSum, api.Add(outputsSum, c.Fee))

	// fee >= 0
	api.AssertIsLessOrEqual(0, c.Fee)

	return nil
}

// foldCommitment folds values into a single field element via a
// power-of-mixingCoefficient linear combination: v0 + v1*r + v2*r^2 + ...
func foldCommitment(api frontend.API, values []frontend.Variable) frontend.Variable {
	var result frontend.Variable = 0
	power := frontend.Variable(1)
	for _, v := range values {
		result = api.Add(result, api.Mul(v, power))
		power = api.Mul(power, mixingCoefficient)
	}
	return result
}
