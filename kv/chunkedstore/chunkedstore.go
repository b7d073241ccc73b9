// Package chunkedstore implements a KeyValueStore that shards its records
// across fixed-capacity chunk files instead of one single growing file,
// trading textstore's simplicity for bounded per-file size.
package chunkedstore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tamperledger/ledger/kv"
)

const lengthPrefixSize = 4

// ChunkedFileStore is a KeyValueStore that stores its records across a
// sequence of fixed-capacity chunk files under dir, named "chunk-<n>.dat".
// Each record within a chunk file is stored as a 4-byte big-endian length
// prefix followed by the record bytes, so values may contain arbitrary
// binary data (unlike textstore's line-oriented records).
type ChunkedFileStore struct {
	mu         sync.Mutex
	dir        string
	chunkSize  int
	records    [][]byte
	openChunk  *os.File
	openChunkN int
}

// Open opens (creating if necessary) a chunked file store at dir, with
// chunkSize records per chunk file.
func Open(dir string, chunkSize int) (*ChunkedFileStore, error) {
	if chunkSize < 1 {
		return nil, &kv.Error{Op: "open", Err: fmt.Errorf("chunkSize must be positive")}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &kv.Error{Op: "open " + dir, Err: err}
	}
	s := &ChunkedFileStore{dir: dir, chunkSize: chunkSize, openChunkN: -1}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ChunkedFileStore) chunkPath(n int) string {
	return filepath.Join(s.dir, fmt.Sprintf("chunk-%06d.dat", n))
}

// load scans every existing chunk file in order and rebuilds the in-memory
// record index. A trailing record whose declared length exceeds the bytes
// actually present in the file is a partial write from a crash mid-append;
// it is detected and dropped rather than counted.
func (s *ChunkedFileStore) load() error {
	for n := 0; ; n++ {
		data, err := os.ReadFile(s.chunkPath(n))
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return &kv.Error{Op: "load chunk", Err: err}
		}
		off := 0
		for off < len(data) {
			if off+lengthPrefixSize > len(data) {
				log.Warn("chunked store: partial length prefix at end of chunk, ignoring", "chunk", n)
				break
			}
			l := binary.BigEndian.Uint32(data[off : off+lengthPrefixSize])
			off += lengthPrefixSize
			if off+int(l) > len(data) {
				log.Warn("chunked store: partial trailing record, ignoring", "chunk", n)
				break
			}
			rec := make([]byte, l)
			copy(rec, data[off:off+int(l)])
			s.records = append(s.records, rec)
			off += int(l)
		}
	}
	return nil
}

func (s *ChunkedFileStore) Put(key string, value []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.records) + 1
	if key != "" {
		k, err := strconv.Atoi(key)
		if err != nil {
			return "", &kv.Error{Op: "put", Err: fmt.Errorf("invalid key %q", key)}
		}
		if k != idx {
			return "", &kv.Error{Op: "put", Err: fmt.Errorf("out-of-order key %d, expected %d", k, idx)}
		}
	}

	chunkN := (idx - 1) / s.chunkSize
	f, err := s.chunkFile(chunkN)
	if err != nil {
		return "", err
	}

	prefix := make([]byte, lengthPrefixSize)
	binary.BigEndian.PutUint32(prefix, uint32(len(value)))
	if _, err := f.Write(prefix); err != nil {
		return "", &kv.Error{Op: "put", Err: err}
	}
	if _, err := f.Write(value); err != nil {
		return "", &kv.Error{Op: "put", Err: err}
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	s.records = append(s.records, cp)
	return strconv.Itoa(idx), nil
}

// chunkFile returns the open file handle for chunk n, opening (and closing
// any previously open chunk) as needed.
func (s *ChunkedFileStore) chunkFile(n int) (*os.File, error) {
	if s.openChunk != nil && s.openChunkN == n {
		return s.openChunk, nil
	}
	if s.openChunk != nil {
		s.openChunk.Close()
	}
	f, err := os.OpenFile(s.chunkPath(n), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &kv.Error{Op: "open chunk", Err: err}
	}
	s.openChunk = f
	s.openChunkN = n
	return f, nil
}

func (s *ChunkedFileStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 1 || idx > len(s.records) {
		return nil, kv.ErrNotFound
	}
	return s.records[idx-1], nil
}

func (s *ChunkedFileStore) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *ChunkedFileStore) Iterator(start, end int) (kv.Iterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if start < 1 {
		start = 1
	}
	if end > len(s.records) {
		end = len(s.records)
	}
	if start > end {
		return &chunkIterator{}, nil
	}
	return &chunkIterator{records: s.records, idx: start - 2, end: end}, nil
}

func (s *ChunkedFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openChunk == nil {
		return nil
	}
	err := s.openChunk.Close()
	s.openChunk = nil
	return err
}

type chunkIterator struct {
	records [][]byte
	idx     int
	end     int
}

func (it *chunkIterator) Next() bool {
	it.idx++
	return it.idx+1 <= it.end
}

func (it *chunkIterator) Key() string   { return strconv.Itoa(it.idx + 1) }
func (it *chunkIterator) Value() []byte { return it.records[it.idx] }
func (it *chunkIterator) Err() error    { return nil }
func (it *chunkIterator) Close() error  { return nil }

var _ io.Closer = (*ChunkedFileStore)(nil)
