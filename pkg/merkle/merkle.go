// Package merkle builds the weekly claim tree redeemed by the on-chain claims contract.
//
// Leaves are keccak256(index || account || amount) with each field left-padded to 32
// bytes except the 20-byte account. Interior nodes hash the sorted pair so proofs do
// not carry direction bits.
package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	ErrNoLeaves         = errors.New("merkle: no leaves")
	ErrDuplicateAddress = errors.New("merkle: duplicate address")
	ErrLeafNotFound     = errors.New("merkle: address not in tree")
)

// Entitlement is an address and the cumulative amount it may claim.
type Entitlement struct {
	Address common.Address
	Amount  *uint256.Int
}

// Leaf is an entitlement placed at its tree index.
type Leaf struct {
	Index   uint64
	Address common.Address
	Amount  *uint256.Int
}

// Hash returns the leaf hash checked by the contract.
func (l Leaf) Hash() common.Hash {
	index := uint256.NewInt(l.Index).Bytes32()
	amount := l.Amount.Bytes32()
	return crypto.Keccak256Hash(index[:], l.Address.Bytes(), amount[:])
}

// Tree holds every level from leaves (0) to root.
type Tree struct {
	leaves  []Leaf
	levels  [][]common.Hash
	byOwner map[common.Address]int
}

// Build sorts entitlements by address and constructs the tree. The result depends
// only on the set of entitlements, not their input order.
func Build(entitlements []Entitlement) (*Tree, error) {
	if len(entitlements) == 0 {
		return nil, ErrNoLeaves
	}
	sorted := make([]Entitlement, len(entitlements))
	copy(sorted, entitlements)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Address.Bytes(), sorted[j].Address.Bytes()) < 0
	})

	t := &Tree{
		leaves:  make([]Leaf, len(sorted)),
		byOwner: make(map[common.Address]int, len(sorted)),
	}
	hashes := make([]common.Hash, len(sorted))
	for i, e := range sorted {
		if e.Amount == nil {
			return nil, fmt.Errorf("merkle: nil amount for %s", e.Address.Hex())
		}
		if _, dup := t.byOwner[e.Address]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAddress, e.Address.Hex())
		}
		leaf := Leaf{Index: uint64(i), Address: e.Address, Amount: new(uint256.Int).Set(e.Amount)}
		t.leaves[i] = leaf
		t.byOwner[e.Address] = i
		hashes[i] = leaf.Hash()
	}

	t.levels = append(t.levels, hashes)
	for level := hashes; len(level) > 1; {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

func (t *Tree) Root() common.Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Leaves returns the leaves in index order.
func (t *Tree) Leaves() []Leaf {
	out := make([]Leaf, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// Proof returns the sibling path for address.
func (t *Tree) Proof(address common.Address) (Leaf, []common.Hash, error) {
	idx, ok := t.byOwner[address]
	if !ok {
		return Leaf{}, nil, fmt.Errorf("%w: %s", ErrLeafNotFound, address.Hex())
	}
	proof := make([]common.Hash, 0, len(t.levels)-1)
	pos := idx
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := pos ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		pos /= 2
	}
	return t.leaves[idx], proof, nil
}

// Verify recomputes the root from leaf and proof.
func Verify(root common.Hash, leaf Leaf, proof []common.Hash) bool {
	if leaf.Amount == nil {
		return false
	}
	computed := leaf.Hash()
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a.Bytes(), b.Bytes())
}
