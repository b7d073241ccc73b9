// Package textstore implements a line-oriented text file KeyValueStore, the
// simplest of the ledger's pluggable transaction-log backends.
package textstore

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tamperledger/ledger/kv"
)

const lineSep = "\n"

// TextFileStore is a KeyValueStore backed by a single append-only text file,
// one record per line, keyed implicitly by 1-based line number.
//
// A record written without its trailing line separator (e.g. because the
// process crashed mid-write) is still counted as a logical record, but is
// repaired — the missing separator is appended — the next time the store is
// opened, so that subsequent Puts produce well-formed lines.
type TextFileStore struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	lines []string
}

// Open opens (creating if necessary) the text file store at path.
func Open(path string) (*TextFileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &kv.Error{Op: "open " + path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		f.Close()
		return nil, &kv.Error{Op: "read " + path, Err: err}
	}

	lines, needsRepair := splitRepairing(string(data))
	ts := &TextFileStore{path: path, file: f, lines: lines}
	if needsRepair {
		log.Warn("text log missing trailing line separator, repairing", "path", path, "size", len(lines))
		if _, err := f.Write([]byte(lineSep)); err != nil {
			f.Close()
			return nil, &kv.Error{Op: "repair " + path, Err: err}
		}
	}
	return ts, nil
}

// splitRepairing splits s into logical records and reports whether the file
// needs its trailing separator repaired.
func splitRepairing(s string) (lines []string, needsRepair bool) {
	if s == "" {
		return nil, false
	}
	if strings.HasSuffix(s, lineSep) {
		trimmed := strings.TrimSuffix(s, lineSep)
		if trimmed == "" {
			return nil, false
		}
		return strings.Split(trimmed, lineSep), false
	}
	return strings.Split(s, lineSep), true
}

func (s *TextFileStore) Put(key string, value []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.lines) + 1
	if key != "" {
		k, err := strconv.Atoi(key)
		if err != nil {
			return "", &kv.Error{Op: "put", Err: fmt.Errorf("invalid key %q", key)}
		}
		if k != idx {
			return "", &kv.Error{Op: "put", Err: fmt.Errorf("out-of-order key %d, expected %d", k, idx)}
		}
	}

	line := string(value)
	if strings.Contains(line, lineSep) {
		return "", &kv.Error{Op: "put", Err: fmt.Errorf("value contains embedded line separator")}
	}
	if _, err := s.file.Write([]byte(line + lineSep)); err != nil {
		return "", &kv.Error{Op: "put", Err: err}
	}
	s.lines = append(s.lines, line)
	return strconv.Itoa(idx), nil
}

func (s *TextFileStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := strconv.Atoi(key)
	if err != nil || idx < 1 || idx > len(s.lines) {
		return nil, kv.ErrNotFound
	}
	return []byte(s.lines[idx-1]), nil
}

// Size reports the number of logical records currently on disk. It
// re-reads the file rather than trusting the cached lines, so a write made
// through another handle to the same file (e.g. a crash-simulating test, or
// another process sharing the path) is reflected immediately, without
// waiting for a Put or a reopen.
func (s *TextFileStore) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, &kv.Error{Op: "size " + s.path, Err: err}
	}
	lines, _ := splitRepairing(string(data))
	return len(lines), nil
}

func (s *TextFileStore) Iterator(start, end int) (kv.Iterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if start < 1 {
		start = 1
	}
	if end > len(s.lines) {
		end = len(s.lines)
	}
	if start > end {
		return &sliceIterator{}, nil
	}
	return &sliceIterator{lines: s.lines, idx: start - 2, end: end}, nil
}

func (s *TextFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

type sliceIterator struct {
	lines []string
	idx   int // last-returned 0-based index
	end   int // 1-based inclusive end
}

func (it *sliceIterator) Next() bool {
	it.idx++
	return it.idx+1 <= it.end
}

func (it *sliceIterator) Key() string {
	return strconv.Itoa(it.idx + 1)
}

func (it *sliceIterator) Value() []byte {
	return []byte(it.lines[it.idx])
}

func (it *sliceIterator) Err() error   { return nil }
func (it *sliceIterator) Close() error { return nil }
