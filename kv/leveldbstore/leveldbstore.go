// Package leveldbstore implements a KeyValueStore over an embedded ordered
// key-value engine, syndtr/goleveldb, matching spec's "embedded ordered KV
// store" pluggable transaction-log backend.
package leveldbstore

import (
	"fmt"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/tamperledger/ledger/kv"
)

// sizeKey is a reserved key (never a valid decimal seqNo) under which the
// current logical record count is tracked, so Size() doesn't need a range
// scan.
const sizeKey = "_size"

// LevelDBStore is a KeyValueStore backed by a goleveldb database.
type LevelDBStore struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) a LevelDB-backed store at path.
func Open(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, &kv.Error{Op: "open " + path, Err: err}
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) size() (int, error) {
	raw, err := s.db.Get([]byte(sizeKey), nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, &kv.Error{Op: "size", Err: err}
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, &kv.Error{Op: "size", Err: err}
	}
	return n, nil
}

func (s *LevelDBStore) Put(key string, value []byte) (string, error) {
	n, err := s.size()
	if err != nil {
		return "", err
	}
	idx := n + 1
	if key != "" {
		k, err := strconv.Atoi(key)
		if err != nil {
			return "", &kv.Error{Op: "put", Err: fmt.Errorf("invalid key %q", key)}
		}
		if k != idx {
			return "", &kv.Error{Op: "put", Err: fmt.Errorf("out-of-order key %d, expected %d", k, idx)}
		}
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(strconv.Itoa(idx)), value)
	batch.Put([]byte(sizeKey), []byte(strconv.Itoa(idx)))
	if err := s.db.Write(batch, nil); err != nil {
		return "", &kv.Error{Op: "put", Err: err}
	}
	return strconv.Itoa(idx), nil
}

func (s *LevelDBStore) Get(key string) ([]byte, error) {
	v, err := s.db.Get([]byte(key), nil)
	if errors.IsCorrupted(err) {
		return nil, &kv.Error{Op: "get", Err: err}
	}
	if err == leveldb.ErrNotFound {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, &kv.Error{Op: "get", Err: err}
	}
	return v, nil
}

func (s *LevelDBStore) Size() (int, error) {
	return s.size()
}

func (s *LevelDBStore) Iterator(start, end int) (kv.Iterator, error) {
	n, err := s.size()
	if err != nil {
		return nil, err
	}
	if start < 1 {
		start = 1
	}
	if end > n {
		end = n
	}
	if start > end {
		return &dbIterator{}, nil
	}
	return &dbIterator{inner: s.db.NewIterator(nil, nil), cur: start - 1, end: end}, nil
}

func (s *LevelDBStore) Close() error {
	if err := s.db.Close(); err != nil && err != leveldb.ErrClosed {
		return &kv.Error{Op: "close", Err: err}
	}
	return nil
}

// dbIterator walks the decimal-integer key range [start, end] directly by
// key construction rather than goleveldb's byte-lexicographic order, since
// "2" sorts before "10" lexicographically but must come before it logically.
type dbIterator struct {
	inner interface {
		Seek([]byte) bool
		Next() bool
		Value() []byte
		Release()
	}
	cur int
	end int
	val []byte
}

func (it *dbIterator) Next() bool {
	if it.inner == nil || it.cur >= it.end {
		return false
	}
	it.cur++
	if !it.inner.Seek([]byte(strconv.Itoa(it.cur))) {
		return false
	}
	it.val = append([]byte(nil), it.inner.Value()...)
	return true
}

func (it *dbIterator) Key() string   { return strconv.Itoa(it.cur) }
func (it *dbIterator) Value() []byte { return it.val }
func (it *dbIterator) Err() error    { return nil }
func (it *dbIterator) Close() error {
	if it.inner != nil {
		it.inner.Release()
	}
	return nil
}
