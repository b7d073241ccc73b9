package merkle

import (
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
)

// spineEntry is one element of the in-memory spine: the root of a perfect
// subtree that has not yet merged with an equal-height neighbor.
type spineEntry struct {
	hash   common.Hash
	height uint32
	start  uint64 // 1-based leaf index of the subtree's leftmost leaf
}

// block is one element of the binary decomposition of a tree size, largest
// subtree first (most-significant set bit first).
type block struct {
	start  uint64
	height uint32
	size   int
}

// decomposeBlocks returns the binary decomposition of n leaves into perfect
// subtrees, most-significant bit first, mirroring the order CompactMerkleTree
// keeps its spine in.
func decomposeBlocks(n int) []block {
	if n == 0 {
		return nil
	}
	blocks := make([]block, 0, bits.OnesCount(uint(n)))
	start := uint64(1)
	for bit := bits.Len(uint(n)) - 1; bit >= 0; bit-- {
		if n&(1<<uint(bit)) == 0 {
			continue
		}
		size := 1 << uint(bit)
		blocks = append(blocks, block{start: start, height: uint32(bit), size: size})
		start += uint64(size)
	}
	return blocks
}

// popcount returns the number of set bits in n, i.e. the number of perfect
// subtrees in the compact decomposition of an n-leaf tree.
func popcount(n int) int {
	return bits.OnesCount(uint(n))
}

// largestPowerOfTwoLessThan returns the largest power of two strictly less
// than n. n must be >= 2.
func largestPowerOfTwoLessThan(n int) int {
	k := 1
	for k*2 < n {
		k *= 2
	}
	return k
}

// foldRoot derives the root hash from the compact spine, ordered largest
// subtree first: the empty hash for zero subtrees, the lone hash for one,
// and otherwise a right-associative fold that nests the smallest subtree
// deepest and the largest outermost.
func foldRoot(hashes []common.Hash) common.Hash {
	if len(hashes) == 0 {
		return EmptyRoot()
	}
	root := hashes[len(hashes)-1]
	for i := len(hashes) - 2; i >= 0; i-- {
		root = interiorHash(hashes[i], root)
	}
	return root
}

// ComputeRootFromLeaves recomputes the root purely in memory from an
// ordered slice of leaf hashes, independent of any persisted interior-node
// state. Used by hash-store recovery to cross-check that persisted nodes
// have not diverged from what the leaves alone imply.
func ComputeRootFromLeaves(leaves []common.Hash) common.Hash {
	return foldRoot(computeSpine(leaves))
}

func computeSpine(leaves []common.Hash) []common.Hash {
	var spine []spineEntry
	for i, lh := range leaves {
		spine = append(spine, spineEntry{hash: lh, height: 0, start: uint64(i) + 1})
		for len(spine) >= 2 && spine[len(spine)-1].height == spine[len(spine)-2].height {
			r := spine[len(spine)-1]
			l := spine[len(spine)-2]
			spine = spine[:len(spine)-2]
			spine = append(spine, spineEntry{
				hash:   interiorHash(l.hash, r.hash),
				height: l.height + 1,
				start:  l.start,
			})
		}
	}
	out := make([]common.Hash, len(spine))
	for i, e := range spine {
		out[i] = e.hash
	}
	return out
}
