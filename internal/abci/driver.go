// Copyright 2025 Certen Protocol
//
// Package abci implements the ABCI Driver: the single point where the
// consensus host's block lifecycle calls into the Record Store, Program
// Store, Validator Set and Transaction Verifier. Structured exactly as
// pkg/consensus/abci_validator.go structures ValidatorApp: one struct
// holding every subsystem handle plus a *log.Logger and a sync.RWMutex
// guarding the height/app-hash fields Info and Query read concurrently with
// the consensus connection's FinalizeBlock/Commit calls.
package abci

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/certen/zkvm-validator/internal/heightfile"
	"github.com/certen/zkvm-validator/internal/merkle"
	"github.com/certen/zkvm-validator/internal/programstore"
	"github.com/certen/zkvm-validator/internal/recordstore"
	"github.com/certen/zkvm-validator/internal/txn"
	"github.com/certen/zkvm-validator/internal/validatorset"
	"github.com/certen/zkvm-validator/internal/verifier"
)

const (
	appName    = "certen-abci-vm"
	appVersion = "1.0.0"

	// protocolVersion is the ABCI AppVersion reported by Info, bumped only
	// when a change affects consensus-visible state transitions.
	protocolVersion uint64 = 1
)

// Driver is the ABCI application. The zero value is not usable; construct
// with NewDriver.
type Driver struct {
	logger *log.Logger
	mu     sync.RWMutex

	records    *recordstore.Store
	programs   *programstore.Store
	validators *validatorset.ValidatorSet
	height     *heightfile.HeightFile

	chainID     string
	lastAppHash []byte

	// lastTree is the Merkle tree computeAppHash built for the
	// last-committed block, retained so Query's /record_proof path (see
	// query.go) can answer inclusion proofs against the root the consensus
	// host just accepted, per spec.md §9's "record existence proofs" note.
	lastTree *merkle.Tree
}

// NewDriver wires the three subsystem handles into a ready-to-serve ABCI
// application.
func NewDriver(records *recordstore.Store, programs *programstore.Store, validators *validatorset.ValidatorSet, height *heightfile.HeightFile) *Driver {
	return &Driver{
		logger:     log.New(os.Stderr, "[ABCI] ", log.LstdFlags),
		records:    records,
		programs:   programs,
		validators: validators,
		height:     height,
	}
}

// Info reports the application's last committed state so the consensus host
// can decide whether it needs to replay blocks after a restart.
func (d *Driver) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h, err := d.height.ReadOrCreate()
	if err != nil {
		return nil, fmt.Errorf("abci: info: %w", err)
	}

	d.logger.Printf("info: height=%d app_hash=%x", h, d.lastAppHash)
	return &abcitypes.ResponseInfo{
		Data:             appName,
		Version:          appVersion,
		AppVersion:       protocolVersion,
		LastBlockHeight:  h,
		LastBlockAppHash: d.lastAppHash,
	}, nil
}

// InitChain seeds the Record Store and Validator Set from the genesis
// app-state payload, per spec.md §4.5.
func (d *Driver) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.chainID = req.ChainId
	d.logger.Printf("init_chain: chain_id=%s", req.ChainId)

	gs, err := parseGenesisState(req.AppStateBytes)
	if err != nil {
		return nil, err
	}

	for _, gr := range gs.Records {
		commitment, ciphertext, err := gr.decode()
		if err != nil {
			return nil, err
		}
		if err := d.records.Add(commitment, ciphertext); err != nil {
			return nil, fmt.Errorf("abci: init_chain: add genesis record: %w", err)
		}
	}
	if err := d.records.Commit(); err != nil {
		return nil, fmt.Errorf("abci: init_chain: commit genesis records: %w", err)
	}

	validators := make([]validatorset.Validator, 0, len(gs.Validators))
	validatorUpdates := make([]abcitypes.ValidatorUpdate, 0, len(gs.Validators))
	for _, gv := range gs.Validators {
		v, err := gv.decode()
		if err != nil {
			return nil, err
		}
		validators = append(validators, v)
		validatorUpdates = append(validatorUpdates, abcitypes.ValidatorUpdate{
			PubKeyBytes: []byte(v.PubKey),
			PubKeyType:  "ed25519",
			Power:       v.VotingPower,
		})
	}
	d.validators.Replace(validators)
	if err := d.validators.Commit(); err != nil {
		return nil, fmt.Errorf("abci: init_chain: commit validator snapshot: %w", err)
	}

	return &abcitypes.ResponseInitChain{Validators: validatorUpdates}, nil
}

// Query dispatches the tagged queries spec.md §6 describes.
func (d *Driver) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handleQuery(req), nil
}

// CheckTx decodes a submitted transaction and runs the pure verifier, never
// mutating state — the mempool connection's admission check.
func (d *Driver) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	tx, err := txn.Unmarshal(req.Tx)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: "abci: malformed transaction: " + err.Error()}, nil
	}
	if err := verifier.Verify(tx, d.programs, d.records); err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: "abci: check_tx rejected: " + err.Error()}, nil
	}
	return &abcitypes.ResponseCheckTx{Code: 0}, nil
}

// FinalizeBlock runs the conceptual begin_block -> deliver_tx* -> end_block
// pipeline spec.md §4.5 describes inside the single CometBFT v0.38+
// FinalizeBlock hook, exactly as pkg/consensus/abci_validator.go's
// FinalizeBlock collapses the same three stages.
func (d *Driver) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.beginBlock(req)

	txResults := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, txBytes := range req.Txs {
		txResults[i] = d.deliverTx(txBytes)
	}

	d.logger.Printf("finalize_block: height=%d txs=%d", req.Height, len(req.Txs))
	return &abcitypes.ResponseFinalizeBlock{TxResults: txResults}, nil
}

// beginBlock extracts the proposer and the previous round's signing voters
// from the commit info, ported from application.rs::begin_block, and hands
// them to the Validator Set to reset the per-block reward pool.
func (d *Driver) beginBlock(req *abcitypes.RequestFinalizeBlock) {
	votes := make(map[string]int64, len(req.DecidedLastCommit.Votes))
	for _, vi := range req.DecidedLastCommit.Votes {
		if vi.BlockIdFlag != cmttypes.BlockIDFlagCommit {
			continue
		}
		votes[string(vi.Validator.Address)] = vi.Validator.Power
	}
	d.validators.BeginBlock(req.ProposerAddress, votes, uint64(req.Height))
}

// deliverTx decodes and verifies one transaction, then applies its effects
// in the order spec.md §4.5 requires: every read/validation happens before
// any buffered write, so a rejected transaction leaves no trace.
func (d *Driver) deliverTx(txBytes []byte) *abcitypes.ExecTxResult {
	tx, err := txn.Unmarshal(txBytes)
	if err != nil {
		metricTxsProcessed.WithLabelValues("malformed").Inc()
		return &abcitypes.ExecTxResult{Code: 1, Log: "abci: malformed transaction: " + err.Error()}
	}
	if err := verifier.Verify(tx, d.programs, d.records); err != nil {
		metricTxsProcessed.WithLabelValues("rejected").Inc()
		return &abcitypes.ExecTxResult{Code: 1, Log: "abci: deliver_tx rejected: " + err.Error()}
	}

	d.validators.Collect(uint64(tx.TotalFee()))

	for _, sn := range tx.SerialNumbers() {
		if err := d.records.Spend(sn.Bytes()); err != nil {
			metricTxsProcessed.WithLabelValues("error").Inc()
			return &abcitypes.ExecTxResult{Code: 2, Log: "abci: spend input: " + err.Error()}
		}
	}
	for _, out := range tx.OutputRecords() {
		if err := d.records.Add(out.Commitment.Bytes(), out.Record.Marshal()); err != nil {
			metricTxsProcessed.WithLabelValues("error").Inc()
			return &abcitypes.ExecTxResult{Code: 2, Log: "abci: add output: " + err.Error()}
		}
	}
	if err := d.storeProgram(tx); err != nil {
		metricTxsProcessed.WithLabelValues("error").Inc()
		return &abcitypes.ExecTxResult{Code: 2, Log: "abci: store program: " + err.Error()}
	}

	metricTxsProcessed.WithLabelValues("ok").Inc()
	return &abcitypes.ExecTxResult{
		Code: 0,
		Events: []abcitypes.Event{{
			Type: "app",
			Attributes: []abcitypes.EventAttribute{
				{Key: "tx_id", Value: tx.ID, Index: true},
			},
		}},
	}
}

func (d *Driver) storeProgram(tx txn.Transaction) error {
	switch tx.Kind {
	case txn.KindDeployment:
		return d.programs.Add(tx.Deployment.Program.ID, programstore.StoredProgram{
			Program:       tx.Deployment.Program,
			VerifyingKeys: tx.Deployment.VerifyingKeys,
		})
	case txn.KindSource:
		return d.programs.Add(tx.Source.Program.ID, programstore.StoredProgram{
			Program:       tx.Source.Program,
			VerifyingKeys: map[string][]byte{},
		})
	default:
		return nil
	}
}

// Commit flushes the block's buffered writes, mints and flushes validator
// rewards, persists the height and validator-set snapshots, and computes a
// fresh deterministic app hash. The hash is kept in lastAppHash and reported
// by Info; the ResponseCommit itself carries no hash.
func (d *Driver) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer observeCommitDuration(time.Now())

	if err := d.records.Commit(); err != nil {
		return nil, fmt.Errorf("abci: commit: flush records: %w", err)
	}

	height, err := d.height.Increment()
	if err != nil {
		return nil, fmt.Errorf("abci: commit: increment height: %w", err)
	}

	rewards, err := d.validators.BlockRewards()
	if err != nil {
		return nil, fmt.Errorf("abci: commit: block rewards: %w", err)
	}
	for _, r := range rewards {
		if err := d.records.Add(r.Commitment.Bytes(), r.Record.Marshal()); err != nil {
			return nil, fmt.Errorf("abci: commit: add reward record: %w", err)
		}
	}
	if len(rewards) > 0 {
		if err := d.records.Commit(); err != nil {
			return nil, fmt.Errorf("abci: commit: flush rewards: %w", err)
		}
		metricRewardsMinted.Add(float64(len(rewards)))
	}

	if err := d.validators.Commit(); err != nil {
		return nil, fmt.Errorf("abci: commit: persist validator snapshot: %w", err)
	}

	appHash, tree, err := d.computeAppHash()
	if err != nil {
		return nil, fmt.Errorf("abci: commit: compute app hash: %w", err)
	}
	d.lastAppHash = appHash
	d.lastTree = tree
	metricBlockHeight.Set(float64(height))

	d.logger.Printf("commit: height=%d rewards=%d app_hash=%x", height, len(rewards), appHash)
	return &abcitypes.ResponseCommit{}, nil
}

// Echo and Flush are trivial, matching spec.md §4.5/§6.
func (d *Driver) Echo(ctx context.Context, req *abcitypes.RequestEcho) (*abcitypes.ResponseEcho, error) {
	return &abcitypes.ResponseEcho{Message: req.Message}, nil
}

func (d *Driver) Flush(ctx context.Context, req *abcitypes.RequestFlush) (*abcitypes.ResponseFlush, error) {
	return &abcitypes.ResponseFlush{}, nil
}
