// Copyright 2025 Certen Protocol
//
// certen-zk-setup runs the one-time Groth16 trusted setup for the
// transition circuit and writes the proving/verifying key pair to disk,
// the same shape as cmd/bls-zk-setup but targeting internal/zkvm's
// transition circuit instead of the BLS aggregate-signature circuit.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/certen/zkvm-validator/internal/zkvm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "certen-zk-setup: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	programID := flag.String("program-id", "credits.aleo", "program id to generate keys for")
	pkPath := flag.String("pk", "transition.pk", "output path for the proving key")
	vkPath := flag.String("vk", "transition.vk", "output path for the verifying key")
	flag.Parse()

	backend := zkvm.NewGnarkBackend()
	program, err := backend.Build(*programID)
	if err != nil {
		return fmt.Errorf("build circuit: %w", err)
	}

	pk, vk, err := backend.Setup(program)
	if err != nil {
		return fmt.Errorf("trusted setup: %w", err)
	}

	pkBytes, err := zkvm.WriteProvingKey(pk)
	if err != nil {
		return fmt.Errorf("serialize proving key: %w", err)
	}
	if err := os.WriteFile(*pkPath, pkBytes, 0o600); err != nil {
		return fmt.Errorf("write proving key: %w", err)
	}

	vkBytes, err := zkvm.WriteVerifyingKey(vk)
	if err != nil {
		return fmt.Errorf("serialize verifying key: %w", err)
	}
	if err := os.WriteFile(*vkPath, vkBytes, 0o644); err != nil {
		return fmt.Errorf("write verifying key: %w", err)
	}

	fmt.Printf("certen-zk-setup: wrote %s and %s for program %s\n", *pkPath, *vkPath, *programID)
	return nil
}
