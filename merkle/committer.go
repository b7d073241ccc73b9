package merkle

import (
	"crypto/sha256"
	"hash"
	"sync"
)

// hasherPool recycles sha256.Hash instances the way the teacher's trie
// committer recycles a keccakState: leaf and interior hashing sit on
// CompactMerkleTree.Append's hot path, and a fresh hash.Hash allocation per
// call is wasted garbage under the sequential, high-throughput append
// workload a ledger is built for.
var hasherPool = sync.Pool{
	New: func() interface{} {
		return sha256.New()
	},
}

func getHasher() hash.Hash {
	return hasherPool.Get().(hash.Hash)
}

func putHasher(h hash.Hash) {
	h.Reset()
	hasherPool.Put(h)
}
