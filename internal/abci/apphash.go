// Copyright 2025 Certen Protocol

package abci

import (
	"sort"

	"github.com/certen/zkvm-validator/internal/merkle"
)

// commitmentLeaf is the leaf hash preimage for a record commitment, shared
// between computeAppHash (building the tree) and queryRecordProof (looking
// a commitment back up in the retained tree) so the two never disagree on
// what a "commitment leaf" is.
func commitmentLeaf(commitment []byte) []byte {
	return merkle.HashData([]byte("commitment:" + string(commitment)))
}

// computeAppHash folds the full observable ledger state into a single
// deterministic root: every unspent commitment, every spent serial number,
// and every deployed program id, each sorted before hashing so that two
// replicas holding the same state (reached via the same ordered sequence of
// delivered transactions, per spec.md §4.5's determinism requirement) always
// produce byte-identical leaves regardless of map/iterator ordering.
//
// Unlike original_source's HeightFile-era ABCI, which returned an empty app
// hash (see SPEC_FULL.md §5 Open Questions), this uses the teacher's
// internal/merkle tree so CometBFT's light-client and state-sync machinery
// have a real root to compare. The built tree is also returned so Commit can
// retain it for Query's /record_proof path (see query.go).
func (d *Driver) computeAppHash() ([]byte, *merkle.Tree, error) {
	entries, _, err := d.records.Scan(nil, 0)
	if err != nil {
		return nil, nil, err
	}
	commitments := make([]string, 0, len(entries))
	for _, e := range entries {
		commitments = append(commitments, string(e.Commitment))
	}
	sort.Strings(commitments)

	spent, err := d.records.ScanSpent()
	if err != nil {
		return nil, nil, err
	}
	serials := make([]string, 0, len(spent))
	for _, s := range spent {
		serials = append(serials, string(s))
	}
	sort.Strings(serials)

	programIDs, err := d.programs.ListIDs()
	if err != nil {
		return nil, nil, err
	}

	var leaves [][]byte
	for _, c := range commitments {
		leaves = append(leaves, commitmentLeaf([]byte(c)))
	}
	for _, s := range serials {
		leaves = append(leaves, merkle.HashData([]byte("spent:"+s)))
	}
	for _, id := range programIDs {
		leaves = append(leaves, merkle.HashData([]byte("program:"+id)))
	}

	if len(leaves) == 0 {
		return merkle.HashData([]byte("empty")), nil, nil
	}

	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, nil, err
	}
	return tree.Root(), tree, nil
}
