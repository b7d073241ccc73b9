// Package merkle implements the compact (RFC 6962 style) Merkle tree that
// backs a tamper-evident transaction ledger: leaves and interior subtree
// roots are domain-separated SHA-256 hashes, and the tree keeps only the
// logarithmic "spine" of currently-unmerged perfect subtree roots needed to
// extend the tree and to serve audit and consistency proofs against
// persisted state.
package merkle

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tamperledger/ledger/hashstore"
)

// CompactMerkleTree maintains the spine of perfect subtree roots for an
// append-only hash tree. It owns no lifecycle over its HashStore: callers
// open and close the store independently.
type CompactMerkleTree struct {
	mu        sync.RWMutex
	hashStore hashstore.HashStore

	treeSize int
	spine    []spineEntry
}

// New returns a tree with no in-memory state loaded; callers must call
// either Open (to reconstruct from an already-populated store) or simply
// start Appending (when the store is known to be empty).
func New(hs hashstore.HashStore) *CompactMerkleTree {
	return &CompactMerkleTree{hashStore: hs}
}

// Open reconstructs (treeSize, spine) from the hash store without
// rehashing any already-persisted interior node (recovery path B). It
// returns ErrInconsistent if the store's node and leaf counts disagree, or
// if an independently recomputed root diverges from the persisted spine.
func (t *CompactMerkleTree) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, hashes, err := reconstructHashes(t.hashStore)
	if err != nil {
		return err
	}
	blocks := decomposeBlocks(n)
	spine := make([]spineEntry, len(blocks))
	for i, b := range blocks {
		spine[i] = spineEntry{hash: hashes[i], height: b.height, start: b.start}
	}
	t.treeSize = n
	t.spine = spine
	return nil
}

// Append hashes data as the next leaf, persists the leaf and any interior
// nodes the append causes to merge, and returns the new leaf's hash. The
// order of merges, and the (start, height) provenance written with each
// interior node, follow the same binary-counter discipline Open's
// reconstruction relies on.
func (t *CompactMerkleTree) Append(data []byte) (common.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lh := leafHash(data)
	idx, err := t.hashStore.WriteLeaf(lh)
	if err != nil {
		return common.Hash{}, err
	}

	t.spine = append(t.spine, spineEntry{hash: lh, height: 0, start: uint64(idx)})
	for len(t.spine) >= 2 && t.spine[len(t.spine)-1].height == t.spine[len(t.spine)-2].height {
		r := t.spine[len(t.spine)-1]
		l := t.spine[len(t.spine)-2]
		t.spine = t.spine[:len(t.spine)-2]

		parent := interiorHash(l.hash, r.hash)
		if _, err := t.hashStore.WriteNode(hashstore.NodeRecord{
			Start:  l.start,
			Height: l.height + 1,
			Hash:   parent,
		}); err != nil {
			return common.Hash{}, err
		}
		t.spine = append(t.spine, spineEntry{hash: parent, height: l.height + 1, start: l.start})
	}
	t.treeSize++
	return lh, nil
}

// Size returns the number of leaves appended so far.
func (t *CompactMerkleTree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.treeSize
}

// RootHash returns the current root hash.
func (t *CompactMerkleTree) RootHash() common.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return foldRoot(t.hashesLocked())
}

// Hashes returns the current spine, ordered largest subtree to smallest.
func (t *CompactMerkleTree) Hashes() []common.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hashesLocked()
}

func (t *CompactMerkleTree) hashesLocked() []common.Hash {
	out := make([]common.Hash, len(t.spine))
	for i, e := range t.spine {
		out[i] = e.hash
	}
	return out
}

// AuditPath returns the sequence of sibling hashes proving that the leaf
// with 1-based sequence number seqNo belongs to the current tree, ordered
// from the leaf upward to the root.
func (t *CompactMerkleTree) AuditPath(seqNo int) ([]common.Hash, error) {
	t.mu.RLock()
	n := t.treeSize
	t.mu.RUnlock()

	if seqNo < 1 || seqNo > n {
		return nil, hashstore.ErrNotFound
	}
	idx, err := buildNodeIndex(t.hashStore)
	if err != nil {
		return nil, err
	}
	return auditPath(1, seqNo-1, n, idx, t.hashStore)
}

// ConsistencyProof returns the sequence of hashes proving that the tree of
// size m is a prefix of the tree of its current size n.
func (t *CompactMerkleTree) ConsistencyProof(m int) ([]common.Hash, error) {
	t.mu.RLock()
	n := t.treeSize
	t.mu.RUnlock()

	if m <= 0 || m > n {
		return nil, hashstore.ErrNotFound
	}
	if m == n {
		return nil, nil
	}
	idx, err := buildNodeIndex(t.hashStore)
	if err != nil {
		return nil, err
	}
	return subProof(1, m, n, true, idx, t.hashStore)
}
