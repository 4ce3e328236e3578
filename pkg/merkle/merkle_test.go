package merkle

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func entitlements(n int) []Entitlement {
	out := make([]Entitlement, 0, n)
	for i := n; i > 0; i-- {
		out = append(out, Entitlement{
			Address: common.HexToAddress(fmt.Sprintf("0x%040x", i*7919)),
			Amount:  uint256.NewInt(uint64(i) * 1_000_000_000_000_000_000),
		})
	}
	return out
}

func TestEveryProofVerifies(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		tree, err := Build(entitlements(n))
		require.NoError(t, err)
		for _, e := range entitlements(n) {
			leaf, proof, err := tree.Proof(e.Address)
			require.NoError(t, err)
			require.True(t, Verify(tree.Root(), leaf, proof), "n=%d address=%s", n, e.Address.Hex())
		}
	}
}

func TestSingleLeafRootIsLeafHash(t *testing.T) {
	tree, err := Build(entitlements(1))
	require.NoError(t, err)
	require.Equal(t, tree.Leaves()[0].Hash(), tree.Root())
}

func TestVerifyRejectsTamperedAmount(t *testing.T) {
	tree, err := Build(entitlements(4))
	require.NoError(t, err)
	leaf, proof, err := tree.Proof(tree.Leaves()[2].Address)
	require.NoError(t, err)

	leaf.Amount = new(uint256.Int).AddUint64(leaf.Amount, 1)
	require.False(t, Verify(tree.Root(), leaf, proof))
}

func TestBuildIsOrderIndependentAndByteStable(t *testing.T) {
	forward := entitlements(6)
	reversed := make([]Entitlement, len(forward))
	for i := range forward {
		reversed[len(forward)-1-i] = forward[i]
	}

	a, err := Build(forward)
	require.NoError(t, err)
	b, err := Build(reversed)
	require.NoError(t, err)
	require.Equal(t, a.Root(), b.Root())

	snapA, err := a.Snapshot()
	require.NoError(t, err)
	snapB, err := b.Snapshot()
	require.NoError(t, err)
	rawA, err := json.Marshal(snapA)
	require.NoError(t, err)
	rawB, err := json.Marshal(snapB)
	require.NoError(t, err)
	require.Equal(t, string(rawA), string(rawB))
}

func TestBuildRejectsDuplicatesAndEmpty(t *testing.T) {
	_, err := Build(nil)
	require.ErrorIs(t, err, ErrNoLeaves)

	dup := entitlements(2)
	dup[1].Address = dup[0].Address
	_, err = Build(dup)
	require.ErrorIs(t, err, ErrDuplicateAddress)
}

func TestSnapshotRoundTripsThroughParse(t *testing.T) {
	tree, err := Build(entitlements(5))
	require.NoError(t, err)
	snap, err := tree.Snapshot()
	require.NoError(t, err)
	require.Equal(t, "15000000000000000000", snap.Total)

	for _, sl := range snap.Leaves {
		leaf, err := ParseLeaf(sl)
		require.NoError(t, err)
		require.True(t, Verify(common.HexToHash(snap.Root), leaf, ParseProof(snap.Proofs[sl.Address])))
	}
}

func TestProofUnknownAddress(t *testing.T) {
	tree, err := Build(entitlements(3))
	require.NoError(t, err)
	_, _, err = tree.Proof(common.HexToAddress("0x00000000000000000000000000000000000000ff"))
	require.ErrorIs(t, err, ErrLeafNotFound)
}
