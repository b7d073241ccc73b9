package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/tamperledger/ledger/hashstore"
)

func newStore(t *testing.T) *hashstore.FileHashStore {
	t.Helper()
	s, err := hashstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEmptyTreeRootIsHashOfEmptyString(t *testing.T) {
	tree := New(newStore(t))
	require.Equal(t, EmptyRoot(), tree.RootHash())
	require.Equal(t, 0, tree.Size())
}

func TestSingleLeafTreeRootIsLeafHash(t *testing.T) {
	tree := New(newStore(t))
	lh, err := tree.Append([]byte("txn-1"))
	require.NoError(t, err)
	require.Equal(t, leafHash([]byte("txn-1")), lh)
	require.Equal(t, lh, tree.RootHash())
	require.Equal(t, []common.Hash{lh}, tree.Hashes())
}

func TestPowerOfTwoTreeHasSingleSpineEntry(t *testing.T) {
	tree := New(newStore(t))
	for i := 0; i < 8; i++ {
		_, err := tree.Append([]byte{byte(i)})
		require.NoError(t, err)
	}
	require.Len(t, tree.Hashes(), 1)
}

func TestRootMatchesIndependentFoldAcrossSizes(t *testing.T) {
	tree := New(newStore(t))
	var leaves []common.Hash
	for i := 0; i < 20; i++ {
		lh, err := tree.Append([]byte{byte(i), byte(i + 1)})
		require.NoError(t, err)
		leaves = append(leaves, lh)

		require.Equal(t, ComputeRootFromLeaves(leaves), tree.RootHash())
	}
}

func TestOpenReconstructsWithoutRehashing(t *testing.T) {
	store := newStore(t)
	tree := New(store)
	var leaves []common.Hash
	for i := 0; i < 13; i++ {
		lh, err := tree.Append([]byte{byte(i)})
		require.NoError(t, err)
		leaves = append(leaves, lh)
	}
	wantRoot := tree.RootHash()
	wantSize := tree.Size()

	reopened := New(store)
	require.NoError(t, reopened.Open())
	require.Equal(t, wantSize, reopened.Size())
	require.Equal(t, wantRoot, reopened.RootHash())
	require.Equal(t, tree.Hashes(), reopened.Hashes())
}

func TestOpenDetectsNodeLeafCountMismatch(t *testing.T) {
	store := newStore(t)
	tree := New(store)
	for i := 0; i < 4; i++ {
		_, err := tree.Append([]byte{byte(i)})
		require.NoError(t, err)
	}
	// Corrupt by injecting an extra, spurious interior node.
	_, err := store.WriteNode(hashstore.NodeRecord{Start: 1, Height: 5, Hash: common.Hash{0xAA}})
	require.NoError(t, err)

	corrupted := New(store)
	err = corrupted.Open()
	require.ErrorIs(t, err, ErrInconsistent)
}

func TestAuditPathLengthMatchesTreeHeight(t *testing.T) {
	tree := New(newStore(t))
	for i := 0; i < 7; i++ {
		_, err := tree.Append([]byte{byte(i)})
		require.NoError(t, err)
	}
	path, err := tree.AuditPath(3)
	require.NoError(t, err)
	require.Len(t, path, 3)

	_, err = tree.AuditPath(0)
	require.ErrorIs(t, err, hashstore.ErrNotFound)
	_, err = tree.AuditPath(8)
	require.ErrorIs(t, err, hashstore.ErrNotFound)
}

func TestConsistencyProofEmptyWhenSizesEqual(t *testing.T) {
	tree := New(newStore(t))
	for i := 0; i < 5; i++ {
		_, err := tree.Append([]byte{byte(i)})
		require.NoError(t, err)
	}
	proof, err := tree.ConsistencyProof(5)
	require.NoError(t, err)
	require.Empty(t, proof)
}

func TestConsistencyProofNonEmptyForProperPrefix(t *testing.T) {
	tree := New(newStore(t))
	for i := 0; i < 9; i++ {
		_, err := tree.Append([]byte{byte(i)})
		require.NoError(t, err)
	}
	proof, err := tree.ConsistencyProof(4)
	require.NoError(t, err)
	require.NotEmpty(t, proof)
}
