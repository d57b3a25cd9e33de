// Copyright 2025 Certen Protocol

package programstore

// CreditsProgramID is the built-in native-currency program every chain
// deploys at genesis, matching the original's credits.aleo.
const CreditsProgramID = "credits.aleo"

// Coinbase function names: only the ABCI driver may invoke these, at
// genesis or at block-reward mint time. internal/verifier rejects any
// submitted transaction that calls either.
const (
	CreditsMintFunction    = "mint"
	CreditsGenesisFunction = "genesis"
)

// creditsProgram builds the built-in credits.aleo definition. It carries no
// real verifying keys: mint/genesis are coinbase-only and never go through
// internal/verifier's ZK check, and the ordinary transfer/combine/split
// functions are left for a real deployment transaction to register keys
// for, matching the original's test expectation that a fresh store starts
// with credits.aleo present but unproven.
func creditsProgram() StoredProgram {
	return StoredProgram{
		Program: Program{
			ID:     CreditsProgramID,
			Source: "// built-in native currency program\nprogram credits.aleo;\n",
			Functions: []Function{
				{Name: CreditsGenesisFunction, Coinbase: true},
				{Name: CreditsMintFunction, Coinbase: true},
				{Name: "transfer", Coinbase: false},
				{Name: "combine", Coinbase: false},
				{Name: "split", Coinbase: false},
			},
		},
		VerifyingKeys: map[string][]byte{},
	}
}
