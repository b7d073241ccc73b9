package merkle

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tamperledger/ledger/hashstore"
)

// ErrInconsistent is returned when persisted hash-store state cannot be
// reconciled with itself: the node count disagrees with what the leaf
// count implies, or an independently recomputed root disagrees with the
// persisted spine. A decomposition block with no matching persisted node
// is not an error by itself: its hash is recomputed from the leaves.
var ErrInconsistent = errors.New("merkle: hash store is internally inconsistent")

type nodeKey struct {
	start  uint64
	height uint32
}

// buildNodeIndex scans every persisted interior-node record once, keyed by
// the (start, height) pair that uniquely identifies it: a given subtree
// position merges at most once in an append-only tree, so the key never
// collides across the store's lifetime.
func buildNodeIndex(hs hashstore.HashStore) (map[nodeKey]common.Hash, error) {
	nc, err := hs.NodeCount()
	if err != nil {
		return nil, err
	}
	idx := make(map[nodeKey]common.Hash, nc)
	for j := 1; j <= nc; j++ {
		rec, err := hs.ReadNode(j)
		if err != nil {
			return nil, err
		}
		idx[nodeKey{start: rec.Start, height: rec.Height}] = rec.Hash
	}
	return idx, nil
}

// mth computes the Merkle tree hash of the n leaves starting at the
// 1-based leaf index base, the RFC 6962 MTH(D[n]) recursion. When the
// range is an exact power of two and a persisted node exists for it, that
// hash is reused instead of rehashing from leaves.
func mth(base uint64, n int, idx map[nodeKey]common.Hash, hs hashstore.HashStore) (common.Hash, error) {
	if n == 1 {
		return hs.ReadLeaf(int(base))
	}
	if n&(n-1) == 0 {
		height := uint32(bitLen(n) - 1)
		if h, ok := idx[nodeKey{start: base, height: height}]; ok {
			return h, nil
		}
	}
	k := largestPowerOfTwoLessThan(n)
	left, err := mth(base, k, idx, hs)
	if err != nil {
		return common.Hash{}, err
	}
	right, err := mth(base+uint64(k), n-k, idx, hs)
	if err != nil {
		return common.Hash{}, err
	}
	return interiorHash(left, right), nil
}

func bitLen(n int) int {
	l := 0
	for n > 0 {
		n >>= 1
		l++
	}
	return l
}

// auditPath implements the RFC 6962 PATH(m, D[n]) recursion: the sequence
// of sibling hashes proving leaf m (0-based) belongs to the tree of n
// leaves starting at 1-based leaf index base, ordered from the leaf
// upward to the root.
func auditPath(base uint64, m, n int, idx map[nodeKey]common.Hash, hs hashstore.HashStore) ([]common.Hash, error) {
	if n == 1 {
		return nil, nil
	}
	k := largestPowerOfTwoLessThan(n)
	if m < k {
		path, err := auditPath(base, m, k, idx, hs)
		if err != nil {
			return nil, err
		}
		sib, err := mth(base+uint64(k), n-k, idx, hs)
		if err != nil {
			return nil, err
		}
		return append(path, sib), nil
	}
	path, err := auditPath(base+uint64(k), m-k, n-k, idx, hs)
	if err != nil {
		return nil, err
	}
	sib, err := mth(base, k, idx, hs)
	if err != nil {
		return nil, err
	}
	return append(path, sib), nil
}

// subProof implements the RFC 6962 SUBPROOF(m, D[n], b) recursion behind
// ConsistencyProof.
func subProof(base uint64, m, n int, b bool, idx map[nodeKey]common.Hash, hs hashstore.HashStore) ([]common.Hash, error) {
	if m == n {
		if b {
			return nil, nil
		}
		h, err := mth(base, n, idx, hs)
		if err != nil {
			return nil, err
		}
		return []common.Hash{h}, nil
	}
	k := largestPowerOfTwoLessThan(n)
	if m <= k {
		path, err := subProof(base, m, k, b, idx, hs)
		if err != nil {
			return nil, err
		}
		sib, err := mth(base+uint64(k), n-k, idx, hs)
		if err != nil {
			return nil, err
		}
		return append(path, sib), nil
	}
	path, err := subProof(base+uint64(k), m-k, n-k, false, idx, hs)
	if err != nil {
		return nil, err
	}
	sib, err := mth(base, k, idx, hs)
	if err != nil {
		return nil, err
	}
	return append(path, sib), nil
}

// reconstructHashes rebuilds the compact spine (treeSize, hashes) purely
// from persisted hash-store state, without rehashing any leaf already
// folded into a persisted interior node (recovery path B). It cross-checks
// node_count against leaf_count and independently recomputes the root from
// leaves to catch silent divergence between the two streams.
func reconstructHashes(hs hashstore.HashStore) (int, []common.Hash, error) {
	n, err := hs.LeafCount()
	if err != nil {
		return 0, nil, err
	}
	nc, err := hs.NodeCount()
	if err != nil {
		return 0, nil, err
	}
	if n-popcount(n) != nc {
		return 0, nil, ErrInconsistent
	}
	if n == 0 {
		return 0, nil, nil
	}

	idx, err := buildNodeIndex(hs)
	if err != nil {
		return 0, nil, err
	}
	blocks := decomposeBlocks(n)
	hashes := make([]common.Hash, len(blocks))
	for i, b := range blocks {
		h, err := mth(b.start, b.size, idx, hs)
		if err != nil {
			return 0, nil, err
		}
		hashes[i] = h
	}

	leaves := make([]common.Hash, n)
	for i := 0; i < n; i++ {
		leaves[i], err = hs.ReadLeaf(i + 1)
		if err != nil {
			return 0, nil, err
		}
	}
	if ComputeRootFromLeaves(leaves) != foldRoot(hashes) {
		return 0, nil, ErrInconsistent
	}
	return n, hashes, nil
}
