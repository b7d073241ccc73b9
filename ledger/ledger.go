// Package ledger implements an append-only, tamper-evident transaction
// ledger: every Add both persists a transaction and extends a compact
// Merkle tree over the exact bytes persisted, so any later divergence
// between the transaction log and the tree is detectable on reopen.
package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tamperledger/ledger/hashstore"
	"github.com/tamperledger/ledger/kv"
	"github.com/tamperledger/ledger/kv/chunkedstore"
	"github.com/tamperledger/ledger/kv/leveldbstore"
	"github.com/tamperledger/ledger/kv/textstore"
	"github.com/tamperledger/ledger/merkle"
	"github.com/tamperledger/ledger/serializer"
)

// Ledger is a single-writer, multi-reader append-only transaction log with
// an attached compact Merkle tree. All exported methods are safe for
// concurrent use; Add is serialized against itself and against readers by
// mu, matching the store's own single-writer assumption.
type Ledger struct {
	mu sync.RWMutex

	cfg    Config
	fields serializer.OrderedFields
	ser    serializer.Serializer
	kv     kv.KeyValueStore
	hs     hashstore.HashStore
	tree   *merkle.CompactMerkleTree
}

// MerkleInfo is the proof bundle returned for a given sequence number: the
// tree size and root hash it was computed against, and the audit path
// proving the transaction's membership.
type MerkleInfo struct {
	TreeSize  int
	RootHash  common.Hash
	AuditPath []common.Hash
}

// Open constructs the configured backends, loads an optional genesis file
// into a freshly created ledger, and — for a ledger whose transaction log
// or hash store already has records — reconciles the transaction log
// against the hash store. fields
// is the transaction schema; it is only consulted by CompactSerializer and
// by genesis decoding, and may grow across ledger lifetimes (see
// serializer.CompactSerializer).
func Open(cfg Config, fields serializer.OrderedFields) (*Ledger, error) {
	store, err := openBackend(cfg)
	if err != nil {
		return nil, wrapStoreIO("open", err)
	}

	var ser serializer.Serializer
	if cfg.Serializer == "msgpack" {
		ser = serializer.NewMsgPackSerializer()
	} else {
		ser = serializer.NewCompactSerializer(fields)
	}

	hs, err := hashstore.Open(filepath.Join(cfg.DataDir, "hashes"), hashstore.WithCacheBytes(cfg.HashCacheBytes))
	if err != nil {
		store.Close()
		return nil, wrapStoreIO("open", err)
	}

	l := &Ledger{
		cfg:    cfg,
		fields: fields,
		ser:    ser,
		kv:     store,
		hs:     hs,
		tree:   merkle.New(hs),
	}

	size, err := store.Size()
	if err != nil {
		l.Close()
		return nil, wrapStoreIO("open", err)
	}
	hsLeaves, err := hs.LeafCount()
	if err != nil {
		l.Close()
		return nil, wrapStoreIO("open", err)
	}

	if size == 0 && hsLeaves == 0 {
		genesisTxns, err := loadGenesis(cfg.GenesisFile, fields)
		if err != nil {
			l.Close()
			return nil, wrapStoreIO("open", err)
		}
		for _, t := range genesisTxns {
			if _, _, err := l.appendTxn(t); err != nil {
				l.Close()
				return nil, err
			}
		}
		if len(genesisTxns) > 0 {
			log.Info("ledger: loaded genesis file", "dir", cfg.DataDir, "records", len(genesisTxns))
		}
	} else {
		if err := l.recover(); err != nil {
			l.Close()
			return nil, err
		}
	}

	log.Info("ledger: opened", "dir", cfg.DataDir, "size", l.tree.Size(), "root", l.tree.RootHash())
	return l, nil
}

func openBackend(cfg Config) (kv.KeyValueStore, error) {
	switch cfg.Backend {
	case "chunked":
		return chunkedstore.Open(cfg.DataDir, cfg.ChunkSize)
	case "leveldb":
		return leveldbstore.Open(filepath.Join(cfg.DataDir, "kv"))
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return textstore.Open(filepath.Join(cfg.DataDir, "ledger.log"))
	}
}

// SeqNoField is the reserved field name Get sets on every returned
// transaction to its assigned sequence number.
const SeqNoField = "F.seqNo"

// AddResult is everything Add needs to report back: the assigned sequence
// number, the leaf hash of the serialized transaction, and the tree state
// the append produced.
type AddResult struct {
	SeqNo     int
	LeafHash  common.Hash
	RootHash  common.Hash
	AuditPath []common.Hash
}

// Add serializes t under the ledger's schema, appends it to the
// transaction log, and extends the Merkle tree over the serialized bytes.
func (l *Ledger) Add(t serializer.Txn) (AddResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seqNo, leafHash, err := l.appendTxn(t)
	if err != nil {
		return AddResult{}, err
	}
	path, err := l.tree.AuditPath(seqNo)
	if err != nil {
		return AddResult{}, wrapStoreIO("add", err)
	}
	return AddResult{
		SeqNo:     seqNo,
		LeafHash:  leafHash,
		RootHash:  l.tree.RootHash(),
		AuditPath: path,
	}, nil
}

// appendTxn is Add's body without locking, reused by genesis bootstrap
// which already runs single-threaded during Open.
func (l *Ledger) appendTxn(t serializer.Txn) (int, common.Hash, error) {
	raw, err := l.ser.Serialize(t)
	if err != nil {
		return 0, common.Hash{}, &Error{Kind: KindSerializationError, Op: "add", Err: err}
	}
	key, err := l.kv.Put("", raw)
	if err != nil {
		return 0, common.Hash{}, wrapStoreIO("add", err)
	}
	seqNo, err := strconv.Atoi(key)
	if err != nil {
		return 0, common.Hash{}, wrapStoreIO("add", err)
	}
	lh, err := l.tree.Append(raw)
	if err != nil {
		return 0, common.Hash{}, wrapStoreIO("add", err)
	}
	return seqNo, lh, nil
}

// Get returns the transaction stored at sequence number seqNo.
func (l *Ledger) Get(seqNo int) (serializer.Txn, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	raw, err := l.kv.Get(strconv.Itoa(seqNo))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, &Error{Kind: KindNotFound, Op: "get", Err: err}
		}
		return nil, wrapStoreIO("get", err)
	}
	t, err := l.ser.Deserialize(raw)
	if err != nil {
		return nil, &Error{Kind: KindSerializationError, Op: "get", Err: err}
	}
	t[SeqNoField] = int64(seqNo)
	return t, nil
}

// GetAllTxn returns the transactions with sequence numbers in [frm, to].
// frm <= 0 defaults to 1 and to <= 0 defaults to the ledger's current size,
// matching frm/to being optional. A range with frm > to (after defaulting)
// returns an empty slice and no error.
func (l *Ledger) GetAllTxn(frm, to int) ([]serializer.Txn, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if frm <= 0 {
		frm = 1
	}
	if to <= 0 {
		to = l.tree.Size()
	}
	if frm > to {
		return nil, nil
	}
	it, err := l.kv.Iterator(frm, to)
	if err != nil {
		return nil, wrapStoreIO("getAllTxn", err)
	}
	defer it.Close()

	var out []serializer.Txn
	for it.Next() {
		t, err := l.ser.Deserialize(it.Value())
		if err != nil {
			return nil, &Error{Kind: KindSerializationError, Op: "getAllTxn", Err: err}
		}
		seqNo, err := strconv.Atoi(it.Key())
		if err != nil {
			return nil, wrapStoreIO("getAllTxn", err)
		}
		t[SeqNoField] = int64(seqNo)
		out = append(out, t)
	}
	if err := it.Err(); err != nil {
		return nil, wrapStoreIO("getAllTxn", err)
	}
	return out, nil
}

// Size returns the number of transactions appended so far.
func (l *Ledger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Size()
}

// RootHash returns the current Merkle root.
func (l *Ledger) RootHash() common.Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.RootHash()
}

// Hashes returns the current compact spine, largest subtree first.
func (l *Ledger) Hashes() []common.Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Hashes()
}

// MerkleInfo returns the proof bundle for the transaction at seqNo against
// the ledger's current tree size.
func (l *Ledger) MerkleInfo(seqNo int) (MerkleInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	path, err := l.tree.AuditPath(seqNo)
	if err != nil {
		if errors.Is(err, hashstore.ErrNotFound) {
			return MerkleInfo{}, &Error{Kind: KindNotFound, Op: "merkleInfo", Err: err}
		}
		return MerkleInfo{}, wrapStoreIO("merkleInfo", err)
	}
	return MerkleInfo{
		TreeSize:  l.tree.Size(),
		RootHash:  l.tree.RootHash(),
		AuditPath: path,
	}, nil
}

// Close flushes and releases the ledger's underlying stores. Idempotent.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.hs != nil {
		if err := l.hs.Close(); err != nil {
			firstErr = err
		}
	}
	if l.kv != nil {
		if err := l.kv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return wrapStoreIO("close", firstErr)
	}
	return nil
}
