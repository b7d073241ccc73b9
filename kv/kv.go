// Package kv defines the abstract ordered append store used as the ledger's
// transaction log. Concrete implementations live in the textstore,
// chunkedstore and leveldbstore subpackages.
package kv

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// KeyValueStore is an ordered append store keyed by stringified positive
// integers "1".."n", with no gaps and no reordering. Implementations back
// the ledger's transaction log.
type KeyValueStore interface {
	// Put stores value under key. If key is "" the store assigns the next
	// key itself (size()+1) and returns it.
	Put(key string, value []byte) (assignedKey string, err error)

	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Size returns the number of logical records currently stored.
	Size() (int, error)

	// Iterator yields (key, value) pairs for the inclusive range [start, end]
	// in key order. Implementations may return fewer than (end-start+1)
	// entries only at the end of the store.
	Iterator(start, end int) (Iterator, error)

	// Close flushes and releases the store. Close must be idempotent.
	Close() error
}

// Iterator walks a KeyValueStore range.
type Iterator interface {
	// Next advances the iterator and reports whether an entry is available.
	Next() bool
	// Key returns the current entry's key. Valid only after Next returns true.
	Key() string
	// Value returns the current entry's value. Valid only after Next returns true.
	Value() []byte
	// Err returns the first error, if any, encountered during iteration.
	Err() error
	// Close releases resources held by the iterator.
	Close() error
}

// Error wraps a KeyValueStore I/O failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("kv: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
