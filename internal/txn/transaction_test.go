// Copyright 2025 Certen Protocol

package txn

import (
	"testing"

	"github.com/certen/zkvm-validator/internal/programstore"
	"github.com/certen/zkvm-validator/internal/recordvm"
)

func TestTransactionStringMatchesOriginalDisplay(t *testing.T) {
	dep := NewDeployment("tx1", programstore.Program{ID: "hello.aleo"}, nil)
	if got, want := dep.String(), "Deployment(tx1,hello.aleo)"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	src := NewSource("tx2", programstore.Program{ID: "world.aleo"})
	if got, want := src.String(), "Source(tx2,world.aleo)"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	exec := NewExecution("tx3", []Transition{{ProgramID: "credits.aleo"}})
	if got, want := exec.String(), "Execution(tx3,credits.aleo)"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOriginCommitmentsAndOutputRecords(t *testing.T) {
	origin := recordvm.NewFieldFromUint64(1)
	serial := recordvm.NewFieldFromUint64(2)
	commitment := recordvm.NewFieldFromUint64(3)

	tx := NewExecution("tx1", []Transition{
		{
			ProgramID:    "credits.aleo",
			FunctionName: "transfer",
			Inputs:       []Input{{Origin: origin, SerialNumber: serial}},
			Outputs:      []Output{{Commitment: commitment}},
			Fee:          10,
		},
	})

	origins := tx.OriginCommitments()
	if len(origins) != 1 || !origins[0].Equal(origin) {
		t.Fatalf("expected one origin commitment matching input, got %v", origins)
	}

	outputs := tx.OutputRecords()
	if len(outputs) != 1 || !outputs[0].Commitment.Equal(commitment) {
		t.Fatalf("expected one output record matching commitment, got %v", outputs)
	}

	if tx.TotalFee() != 10 {
		t.Fatalf("expected total fee 10, got %d", tx.TotalFee())
	}

	// Deployment/Source transactions carry no records.
	dep := NewDeployment("tx2", programstore.Program{ID: "hello.aleo"}, nil)
	if out := dep.OutputRecords(); out != nil {
		t.Fatalf("expected nil output records for deployment, got %v", out)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	tx := NewExecution("tx1", []Transition{
		{
			ProgramID:    "credits.aleo",
			FunctionName: "transfer",
			Inputs:       []Input{{Origin: recordvm.NewFieldFromUint64(1), SerialNumber: recordvm.NewFieldFromUint64(2)}},
			Outputs:      []Output{{Commitment: recordvm.NewFieldFromUint64(3)}},
			Fee:          5,
		},
	})

	b, err := tx.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != tx.ID || got.Kind != tx.Kind {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, tx)
	}
	if !got.Execution.Transitions[0].Inputs[0].Origin.Equal(recordvm.NewFieldFromUint64(1)) {
		t.Fatalf("field round-trip mismatch: %v", got.Execution.Transitions[0].Inputs[0].Origin)
	}
}

func TestUnmarshalRejectsMismatchedShape(t *testing.T) {
	tx := Transaction{Kind: KindDeployment} // Deployment pointer left nil
	b, err := tx.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Unmarshal(b); err == nil {
		t.Fatal("expected an error unmarshaling a malformed transaction")
	}
}
