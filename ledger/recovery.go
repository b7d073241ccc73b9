package ledger

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tamperledger/ledger/merkle"
)

// recover reconciles the transaction log against the hash store on open.
// It takes one of two paths:
//
//   - The hash store is empty but the log is not: the store was reset (or
//     never built) and the whole tree is rebuilt by replaying the log
//     through CompactMerkleTree.Append (recovery path A). This tolerates a
//     schema that has grown since the log was written, since each record
//     is hashed as the raw bytes it was serialized with, not as its
//     current-schema re-serialization.
//   - The hash store's leaf count already matches the log size: the tree is
//     reconstructed directly from persisted hash-store state without
//     rehashing (recovery path B), which CompactMerkleTree.Open performs
//     and which independently cross-checks against the persisted leaves.
//
// Any other relationship between the two counts means the log and hash
// store diverged — a consistency failure the ledger refuses to paper over.
func (l *Ledger) recover() error {
	logSize, err := l.kv.Size()
	if err != nil {
		return wrapStoreIO("recover", err)
	}
	hsLeafCount, err := l.hs.LeafCount()
	if err != nil {
		return wrapStoreIO("recover", err)
	}

	switch {
	case hsLeafCount == 0 && logSize > 0:
		log.Info("ledger: hash store empty, rebuilding from transaction log", "records", logSize)
		return l.recoverFromLog(logSize)
	case hsLeafCount == logSize:
		if err := l.tree.Open(); err != nil {
			return wrapConsistency("recover", err)
		}
		return nil
	default:
		return wrapConsistency("recover", fmt.Errorf(
			"hash store leaf count %d does not match transaction log size %d", hsLeafCount, logSize))
	}
}

func (l *Ledger) recoverFromLog(n int) error {
	if err := l.hs.Reset(); err != nil {
		return wrapStoreIO("recoverFromLog", err)
	}
	l.tree = merkle.New(l.hs)
	for i := 1; i <= n; i++ {
		raw, err := l.kv.Get(strconv.Itoa(i))
		if err != nil {
			return wrapStoreIO("recoverFromLog", err)
		}
		if _, err := l.tree.Append(raw); err != nil {
			return wrapStoreIO("recoverFromLog", err)
		}
	}
	return nil
}
