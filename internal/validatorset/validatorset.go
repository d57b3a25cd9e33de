// Copyright 2025 Certen Protocol

package validatorset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	ed25519 "github.com/cometbft/cometbft/crypto/ed25519"

	"github.com/certen/zkvm-validator/internal/programstore"
	"github.com/certen/zkvm-validator/internal/recordvm"
)

// BaselineBlockReward is the fixed portion of every block's reward pool,
// paid out even on a block with zero transaction fees.
const BaselineBlockReward uint64 = 100

// ProposerRewardPercentage is the share of the reward pool the proposer
// keeps outright; voters split the rest proportional to voting power.
const ProposerRewardPercentage uint64 = 50

// RewardRecordName is the record name block rewards are minted under,
// alongside programstore.CreditsProgramID.
const RewardRecordName = "credits"

// Reward is one validator's minted block-reward record.
type Reward struct {
	AleoAddress recordvm.Address
	Gates       uint64
	Commitment  recordvm.Field
	Record      recordvm.EncryptedRecord
}

// ValidatorSet tracks the live validator roster plus the in-progress
// block's fee pool and vote tally. It is guarded by a single mutex rather
// than the worker-goroutine pattern internal/recordstore and
// internal/programstore use, matching the teacher's ValidatorApp: validator
// set operations are driven synchronously from the ABCI call sequence
// (BeginBlock -> DeliverTx* -> EndBlock -> Commit), which already
// serializes access, so a second dispatch goroutine would add nothing but
// latency.
type ValidatorSet struct {
	mu   sync.RWMutex
	path string
	log  *log.Logger

	validators        map[string]Validator
	updatedValidators map[string]struct{}

	currentProposer []byte
	currentVotes    map[string]int64
	currentHeight   uint64
	fees            uint64
}

// New creates an empty validator set backed by path for persistence (pass
// "" to keep it in-memory only, e.g. in tests).
func New(path string) *ValidatorSet {
	return &ValidatorSet{
		path:              path,
		log:               log.New(os.Stderr, "[ValidatorSet] ", log.LstdFlags),
		validators:        make(map[string]Validator),
		updatedValidators: make(map[string]struct{}),
	}
}

// LoadOrCreate reads a persisted validator-set snapshot from path. If the
// file does not exist, it seeds the set from genesis and writes the initial
// snapshot.
func LoadOrCreate(path string, genesis []Validator) (*ValidatorSet, error) {
	vs := New(path)

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		vs.Replace(genesis)
		if cerr := vs.Commit(); cerr != nil {
			return nil, cerr
		}
		return vs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("validatorset: read snapshot: %w", err)
	}

	var snapshot []snapshotValidator
	if err := json.Unmarshal(b, &snapshot); err != nil {
		return nil, fmt.Errorf("validatorset: decode snapshot: %w", err)
	}
	validators := make([]Validator, 0, len(snapshot))
	for _, sv := range snapshot {
		v, err := sv.toValidator()
		if err != nil {
			return nil, err
		}
		validators = append(validators, v)
	}
	vs.Replace(validators)
	return vs, nil
}

// snapshotValidator is the JSON-on-disk form of Validator; ed25519.PubKey
// marshals to JSON as a base64 byte string on its own, but keeping an
// explicit wire type insulates the file format from that library's
// internals.
type snapshotValidator struct {
	AleoAddress string `json:"aleo_address"`
	PubKey      []byte `json:"pub_key"`
	VotingPower int64  `json:"voting_power"`
}

func (sv snapshotValidator) toValidator() (Validator, error) {
	addr, err := recordvm.ParseAddress(sv.AleoAddress)
	if err != nil {
		return Validator{}, fmt.Errorf("validatorset: snapshot entry: %w", err)
	}
	return Validator{
		AleoAddress: addr,
		PubKey:      ed25519.PubKey(sv.PubKey),
		VotingPower: sv.VotingPower,
	}, nil
}

func fromValidator(v Validator) snapshotValidator {
	return snapshotValidator{
		AleoAddress: v.AleoAddress.String(),
		PubKey:      []byte(v.PubKey),
		VotingPower: v.VotingPower,
	}
}

// Replace swaps in an entirely new roster, used at InitChain to seed the
// genesis validator set.
func (vs *ValidatorSet) Replace(validators []Validator) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	vs.validators = make(map[string]Validator, len(validators))
	for _, v := range validators {
		vs.validators[addrKey(v.Address())] = v
	}
	vs.updatedValidators = make(map[string]struct{})
	vs.currentProposer = nil
	vs.currentVotes = nil
	vs.fees = 0
}

// BeginBlock records the block's proposer and the voting power each
// validator's vote carried in the previous block, and resets the reward
// pool to the baseline. votes is keyed by consensus address (Validator.Address()).
func (vs *ValidatorSet) BeginBlock(proposer []byte, votes map[string]int64, height uint64) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, ok := vs.validators[addrKey(proposer)]; !ok {
		vs.log.Printf("begin_block: proposer %x is not a known validator", proposer)
	}
	vs.currentProposer = append([]byte(nil), proposer...)
	vs.currentVotes = votes
	vs.currentHeight = height
	vs.updatedValidators = make(map[string]struct{})
	vs.fees = BaselineBlockReward
}

// Collect adds a transaction fee to the current block's reward pool.
func (vs *ValidatorSet) Collect(fee uint64) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.fees += fee
}

// Validate reports whether update can legally be applied, without mutating
// any state.
func (vs *ValidatorSet) Validate(update Stake) error {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	key := addrKey(update.ValidatorAddress())
	if existing, ok := vs.validators[key]; ok {
		return existing.Apply(update)
	}
	_, err := ValidatorFromStake(update)
	return err
}

// Apply folds update into the roster. Callers are expected to have called
// Validate first; Apply still re-checks and returns an error rather than
// panicking, since an ABCI call path that skips validation is a caller bug
// worth surfacing, not a fatal condition.
func (vs *ValidatorSet) Apply(update Stake) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	key := addrKey(update.ValidatorAddress())
	if existing, ok := vs.validators[key]; ok {
		if err := existing.Apply(update); err != nil {
			return err
		}
		vs.validators[key] = existing
	} else {
		v, err := ValidatorFromStake(update)
		if err != nil {
			return err
		}
		vs.validators[key] = v
	}
	vs.updatedValidators[key] = struct{}{}
	return nil
}

// PendingUpdates returns the validators touched since the last BeginBlock,
// sorted by consensus address for deterministic ABCI ValidatorUpdates
// ordering. A validator staked down to exactly zero voting power is still
// returned (and still kept in the roster) so CometBFT can remove it from
// the active set; it is not deleted here, since future blocks may still
// need to attribute past votes to it.
func (vs *ValidatorSet) PendingUpdates() []Validator {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	keys := make([]string, 0, len(vs.updatedValidators))
	for k := range vs.updatedValidators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Validator, 0, len(keys))
	for _, k := range keys {
		out = append(out, vs.validators[k])
	}
	return out
}

// Validators returns every validator currently in the roster, sorted by
// consensus address.
func (vs *ValidatorSet) Validators() []Validator {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	keys := make([]string, 0, len(vs.validators))
	for k := range vs.validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Validator, 0, len(keys))
	for _, k := range keys {
		out = append(out, vs.validators[k])
	}
	return out
}

// rewardCredits computes each rewarded validator's aleo address -> gate
// amount for the block begun by the most recent BeginBlock, following the
// same split as the original: a baseline-plus-fees pool, a fixed percentage
// held back for the proposer, the rest split among voters proportional to
// voting power, with the proposer absorbing both its own share and every
// unit lost to integer-division rounding. A proposer that did not appear
// among the voters (e.g. the proposer of the very next block after it was
// added) still receives everything left after the voters are paid, which is
// the entire pool when there were no votes at all.
func (vs *ValidatorSet) rewardCredits() map[recordvm.Address]uint64 {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	if vs.currentProposer == nil {
		vs.log.Printf("block_rewards: no proposer recorded for this block, skipping reward mint")
		return nil
	}

	voterRewardPercentage := 100 - ProposerRewardPercentage
	totalVoterReward := vs.fees * voterRewardPercentage / 100

	var totalVotingPower int64
	for _, power := range vs.currentVotes {
		totalVotingPower += power
	}

	rewards := make(map[recordvm.Address]uint64)
	var distributed uint64
	if totalVotingPower > 0 {
		for key, power := range vs.currentVotes {
			credits := uint64(power) * totalVoterReward / uint64(totalVotingPower)
			distributed += credits
			if validator, ok := vs.validators[key]; ok {
				rewards[validator.AleoAddress] += credits
			}
		}
	}

	remaining := vs.fees - distributed
	if proposer, ok := vs.validators[addrKey(vs.currentProposer)]; ok {
		rewards[proposer.AleoAddress] += remaining
	}
	return rewards
}

// BlockRewards mints one coinbase record per rewarded validator, seeded
// deterministically by the block height so every honest replica produces
// byte-identical records.
func (vs *ValidatorSet) BlockRewards() ([]Reward, error) {
	credits := vs.rewardCredits()
	if len(credits) == 0 {
		return nil, nil
	}

	addrs := make([]recordvm.Address, 0, len(credits))
	for addr := range credits {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].String() < addrs[j].String() })

	height := vs.currentHeight
	rewards := make([]Reward, 0, len(addrs))
	for _, addr := range addrs {
		gates := credits[addr]
		if gates == 0 {
			continue
		}
		nonce := recordvm.DeterministicField(heightSeed(height), addr.String())
		commitment, rec, err := recordvm.MintRecord(addr, gates, programstore.CreditsProgramID, RewardRecordName, nonce)
		if err != nil {
			return nil, fmt.Errorf("validatorset: mint reward for %s: %w", addr, err)
		}
		rewards = append(rewards, Reward{
			AleoAddress: addr,
			Gates:       gates,
			Commitment:  commitment,
			Record:      rec,
		})
	}
	return rewards, nil
}

func heightSeed(height uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], height)
	return b[:]
}

// Commit persists the current roster to disk. A no-op if the set was
// constructed without a path.
func (vs *ValidatorSet) Commit() error {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	if vs.path == "" {
		return nil
	}

	keys := make([]string, 0, len(vs.validators))
	for k := range vs.validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snapshot := make([]snapshotValidator, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, fromValidator(vs.validators[k]))
	}

	b, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("validatorset: encode snapshot: %w", err)
	}
	if err := os.WriteFile(vs.path, b, 0o644); err != nil {
		return fmt.Errorf("validatorset: write snapshot: %w", err)
	}
	return nil
}
