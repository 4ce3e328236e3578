package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SnapshotLeaf is the persisted form of a leaf. Amounts are decimal strings.
type SnapshotLeaf struct {
	Index   uint64 `json:"index"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Snapshot is the published weekly claim structure. Encoding it with encoding/json is
// byte-stable because leaves are index-ordered and map keys are sorted on marshal.
type Snapshot struct {
	Root   string              `json:"merkleRoot"`
	Total  string              `json:"totalClaimable"`
	Leaves []SnapshotLeaf      `json:"leaves"`
	Proofs map[string][]string `json:"proofsByAddress"`
}

// Snapshot renders the tree with every proof precomputed.
func (t *Tree) Snapshot() (Snapshot, error) {
	total := new(uint256.Int)
	snap := Snapshot{
		Root:   t.Root().Hex(),
		Leaves: make([]SnapshotLeaf, 0, len(t.leaves)),
		Proofs: make(map[string][]string, len(t.leaves)),
	}
	for _, leaf := range t.leaves {
		if _, overflow := total.AddOverflow(total, leaf.Amount); overflow {
			return Snapshot{}, fmt.Errorf("merkle: total claimable overflows uint256")
		}
		_, proof, err := t.Proof(leaf.Address)
		if err != nil {
			return Snapshot{}, err
		}
		encoded := make([]string, len(proof))
		for i, h := range proof {
			encoded[i] = h.Hex()
		}
		addr := leaf.Address.Hex()
		snap.Leaves = append(snap.Leaves, SnapshotLeaf{Index: leaf.Index, Address: addr, Amount: leaf.Amount.Dec()})
		snap.Proofs[addr] = encoded
	}
	snap.Total = total.Dec()
	return snap, nil
}

// ParseLeaf converts a persisted leaf back into its hashed form.
func ParseLeaf(l SnapshotLeaf) (Leaf, error) {
	if !common.IsHexAddress(l.Address) {
		return Leaf{}, fmt.Errorf("merkle: invalid address %q", l.Address)
	}
	amount, err := uint256.FromDecimal(l.Amount)
	if err != nil {
		return Leaf{}, fmt.Errorf("merkle: invalid amount %q: %w", l.Amount, err)
	}
	return Leaf{Index: l.Index, Address: common.HexToAddress(l.Address), Amount: amount}, nil
}

// ParseProof decodes hex proof entries.
func ParseProof(raw []string) []common.Hash {
	out := make([]common.Hash, len(raw))
	for i, h := range raw {
		out[i] = common.HexToHash(h)
	}
	return out
}
