// Copyright 2025 Certen Protocol

package validatorset

import (
	"testing"

	ed25519 "github.com/cometbft/cometbft/crypto/ed25519"

	"github.com/certen/zkvm-validator/internal/recordvm"
)

func testPubKey(b byte) ed25519.PubKey {
	key := make([]byte, ed25519.PubKeySize)
	for i := range key {
		key[i] = b
	}
	return ed25519.PubKey(key)
}

func testAleoAddress(b byte) recordvm.Address {
	var a recordvm.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func newTestValidator(b byte, votingPower int64) Validator {
	return Validator{
		AleoAddress: testAleoAddress(b),
		PubKey:      testPubKey(b),
		VotingPower: votingPower,
	}
}

// TestGenerateRewards ports validator_set.rs's generate_rewards test: four
// validators, a proposer who also voted, one non-voter, and a non-trivial
// fee pool, checked against the exact same numeric expectations.
func TestGenerateRewards(t *testing.T) {
	v1 := newTestValidator(1, 10)
	v2 := newTestValidator(2, 15)
	v3 := newTestValidator(3, 25)
	v4 := newTestValidator(4, 0)

	vs := New("")
	vs.Replace([]Validator{v1, v2, v3, v4})

	votes := map[string]int64{
		addrKey(v1.Address()): 10,
		addrKey(v2.Address()): 15,
		addrKey(v3.Address()): 25,
	}
	vs.BeginBlock(v1.Address(), votes, 1)
	vs.Collect(20)
	vs.Collect(35)

	credits := vs.rewardCredits()

	reward1 := credits[v1.AleoAddress]
	reward2 := credits[v2.AleoAddress]
	reward3 := credits[v3.AleoAddress]
	reward4 := credits[v4.AleoAddress]

	if reward2 != 23 {
		t.Fatalf("reward2 = %d, want 23", reward2)
	}
	if reward3 != 38 {
		t.Fatalf("reward3 = %d, want 38", reward3)
	}
	if reward4 != 0 {
		t.Fatalf("reward4 = %d, want 0", reward4)
	}
	if reward1 != 94 {
		t.Fatalf("reward1 = %d, want 94", reward1)
	}
	if total := reward1 + reward2 + reward3 + reward4; total != 155 {
		t.Fatalf("total rewards = %d, want 155", total)
	}
}

// TestCurrentProposerHadntVoted ports current_proposer_hadnt_vote: the
// proposer of this block did not appear in the previous block's votes (it
// may have just joined), so it still absorbs the entire remaining pool
// after voters are paid.
func TestCurrentProposerHadntVoted(t *testing.T) {
	v1 := newTestValidator(1, 10)
	v2 := newTestValidator(2, 15)

	vs := New("")
	vs.Replace([]Validator{v1, v2})

	votes := map[string]int64{
		addrKey(v2.Address()): 15,
	}
	vs.BeginBlock(v1.Address(), votes, 1)
	vs.Collect(35)

	credits := vs.rewardCredits()
	if credits[v2.AleoAddress] != 67 {
		t.Fatalf("reward2 = %d, want 67", credits[v2.AleoAddress])
	}
	if credits[v1.AleoAddress] != 68 {
		t.Fatalf("reward1 = %d, want 68", credits[v1.AleoAddress])
	}
	if total := credits[v1.AleoAddress] + credits[v2.AleoAddress]; total != 135 {
		t.Fatalf("total rewards = %d, want 135", total)
	}
}

// TestGenesisRewards ports genesis_rewards: no proposer has been recorded
// yet (BeginBlock never called), so BlockRewards yields nothing.
func TestGenesisRewards(t *testing.T) {
	vs := New("")
	vs.Replace([]Validator{newTestValidator(1, 10)})

	rewards, err := vs.BlockRewards()
	if err != nil {
		t.Fatalf("BlockRewards: %v", err)
	}
	if len(rewards) != 0 {
		t.Fatalf("expected no rewards at genesis, got %v", rewards)
	}
}

// TestRewardsAreDeterministic ports rewards_are_deterministic: two
// validator sets fed the identical block history mint byte-identical
// reward records at the same height, and different records at a different
// height.
func TestRewardsAreDeterministic(t *testing.T) {
	build := func(height uint64) *ValidatorSet {
		v1 := newTestValidator(1, 10)
		v2 := newTestValidator(2, 15)
		vs := New("")
		vs.Replace([]Validator{v1, v2})
		vs.BeginBlock(v1.Address(), map[string]int64{
			addrKey(v1.Address()): 10,
			addrKey(v2.Address()): 15,
		}, height)
		vs.Collect(50)
		return vs
	}

	a, err := build(7).BlockRewards()
	if err != nil {
		t.Fatalf("BlockRewards a: %v", err)
	}
	b, err := build(7).BlockRewards()
	if err != nil {
		t.Fatalf("BlockRewards b: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("mismatched reward counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Commitment.Equal(b[i].Commitment) {
			t.Fatalf("commitments differ at same height: %v vs %v", a[i].Commitment, b[i].Commitment)
		}
		if string(a[i].Record.Marshal()) != string(b[i].Record.Marshal()) {
			t.Fatalf("reward ciphertext differs at same height")
		}
	}

	c, err := build(8).BlockRewards()
	if err != nil {
		t.Fatalf("BlockRewards c: %v", err)
	}
	differs := false
	for i := range a {
		if !a[i].Commitment.Equal(c[i].Commitment) {
			differs = true
		}
	}
	if !differs {
		t.Fatal("expected rewards at a different height to differ")
	}

	for _, r := range a {
		rec, err := r.Record.DecryptMint(r.AleoAddress)
		if err != nil {
			t.Fatalf("decrypt mint record: %v", err)
		}
		if rec.Gates != r.Gates {
			t.Fatalf("decrypted gates = %d, want %d", rec.Gates, r.Gates)
		}
	}
}

func TestAddUpdateValidators(t *testing.T) {
	vs := New("")
	vs.Replace(nil)
	vs.BeginBlock(nil, nil, 0)

	pub := testPubKey(9)
	aleo := testAleoAddress(9)
	stake, err := NewStake(pub, aleo, 100)
	if err != nil {
		t.Fatalf("NewStake: %v", err)
	}
	if err := vs.Validate(stake); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := vs.Apply(stake); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	updates := vs.PendingUpdates()
	if len(updates) != 1 || updates[0].VotingPower != 100 {
		t.Fatalf("unexpected pending updates: %+v", updates)
	}

	topUp, err := NewStake(pub, aleo, 50)
	if err != nil {
		t.Fatalf("NewStake: %v", err)
	}
	if err := vs.Apply(topUp); err != nil {
		t.Fatalf("Apply top-up: %v", err)
	}
	for _, v := range vs.Validators() {
		if v.VotingPower != 150 {
			t.Fatalf("voting power = %d, want 150", v.VotingPower)
		}
	}
}

func TestRemoveValidators(t *testing.T) {
	v1 := newTestValidator(1, 100)
	vs := New("")
	vs.Replace([]Validator{v1})
	vs.BeginBlock(nil, nil, 1)

	stake, err := NewStake(v1.PubKey, v1.AleoAddress, -100)
	if err != nil {
		t.Fatalf("NewStake: %v", err)
	}
	if err := vs.Apply(stake); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	validators := vs.Validators()
	if len(validators) != 1 {
		t.Fatalf("expected validator to remain in roster at zero power, got %d", len(validators))
	}
	if validators[0].VotingPower != 0 {
		t.Fatalf("voting power = %d, want 0", validators[0].VotingPower)
	}
}

func TestValidatorsUpdateValidations(t *testing.T) {
	v1 := newTestValidator(1, 100)
	vs := New("")
	vs.Replace([]Validator{v1})

	if _, err := NewStake(v1.PubKey, v1.AleoAddress, 0); err == nil {
		t.Fatal("expected zero-stake update to be rejected")
	}

	wrongAleo, err := NewStake(v1.PubKey, testAleoAddress(2), 10)
	if err != nil {
		t.Fatalf("NewStake: %v", err)
	}
	if err := vs.Validate(wrongAleo); err == nil {
		t.Fatal("expected stake with mismatched aleo address to be rejected")
	}

	overdrawn, err := NewStake(v1.PubKey, v1.AleoAddress, -200)
	if err != nil {
		t.Fatalf("NewStake: %v", err)
	}
	if err := vs.Validate(overdrawn); err == nil {
		t.Fatal("expected overdrawn unstake to be rejected")
	}

	fresh, err := NewStake(testPubKey(5), testAleoAddress(5), -10)
	if err != nil {
		t.Fatalf("NewStake: %v", err)
	}
	if err := vs.Validate(fresh); err == nil {
		t.Fatal("expected a brand new validator with negative power to be rejected")
	}
}
