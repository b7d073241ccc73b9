// Package hashstore persists the two indexed hash sequences — leaves and
// interior subtree roots — that back a merkle.CompactMerkleTree. It is pure
// storage: no hashing or tree logic lives here.
package hashstore

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotFound is returned by ReadLeaf/ReadNode when the requested index is
// out of range.
var ErrNotFound = errors.New("hashstore: index not found")

// NodeRecord is one persisted interior-node record. Start and Height are
// provenance metadata — the 1-based leaf index of the subtree's leftmost
// leaf, and the subtree's height — kept so audit paths can be served
// without replaying the whole transaction log. A record written without
// known Start/Height (e.g. an externally injected record) may carry the
// zero value for either; readers must tolerate that.
type NodeRecord struct {
	Start  uint64
	Height uint32
	Hash   common.Hash
}

// HashStore persists leaves[1..n] and the interior subtree-root hashes
// emitted as the tree grows. Appends are crash-safe to the granularity of
// whole records: a partially written trailing record is detected and
// logically ignored the next time the store is opened.
type HashStore interface {
	// WriteLeaf appends a leaf hash and returns its assigned 1-based index.
	WriteLeaf(hash common.Hash) (int, error)
	// WriteNode appends an interior-node record and returns its assigned
	// 1-based index (in emission order, distinct from the leaf index space).
	WriteNode(rec NodeRecord) (int, error)

	// ReadLeaf returns the hash at 1-based leaf index i, or ErrNotFound.
	ReadLeaf(i int) (common.Hash, error)
	// ReadNode returns the node record at 1-based node index j, or ErrNotFound.
	ReadNode(j int) (NodeRecord, error)

	// LeafCount and NodeCount report the number of fully written records.
	LeafCount() (int, error)
	NodeCount() (int, error)

	// Reset truncates both streams. Permitted only while the owning ledger
	// is stopped; callers must not invoke it concurrently with writes.
	Reset() error

	// Close flushes and releases the store. Idempotent.
	Close() error
}

// Error wraps a HashStore I/O failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hashstore: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
