package hashstore

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

const (
	leafRecordSize = 32
	nodeRecordSize = 8 + 4 + 32 // start uint64 | height uint32 | hash

	leavesFileName = "leaves.dat"
	nodesFileName  = "nodes.dat"
)

// FileHashStore is the ledger's HashStore implementation: two append-only
// binary files under a data directory, with an optional fastcache
// read-through cache in front of both, since audit-path reconstruction
// (merkle.CompactMerkleTree.AuditPath) re-reads the same historical
// leaves/nodes repeatedly.
type FileHashStore struct {
	mu sync.Mutex

	dir        string
	leavesFile *os.File
	nodesFile  *os.File
	leafCount  int
	nodeCount  int

	cache *fastcache.Cache // nil disables caching
}

// Option configures a FileHashStore.
type Option func(*FileHashStore)

// WithCacheBytes enables a fastcache read-through cache sized n bytes.
func WithCacheBytes(n int) Option {
	return func(s *FileHashStore) {
		if n > 0 {
			s.cache = fastcache.New(n)
		}
	}
}

// Open opens (creating if necessary) a FileHashStore rooted at dir.
func Open(dir string, opts ...Option) (*FileHashStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Op: "open " + dir, Err: err}
	}
	s := &FileHashStore{dir: dir}
	for _, opt := range opts {
		opt(s)
	}

	lf, leafCount, err := openTruncated(filepath.Join(dir, leavesFileName), leafRecordSize)
	if err != nil {
		return nil, err
	}
	nf, nodeCount, err := openTruncated(filepath.Join(dir, nodesFileName), nodeRecordSize)
	if err != nil {
		lf.Close()
		return nil, err
	}

	s.leavesFile = lf
	s.nodesFile = nf
	s.leafCount = leafCount
	s.nodeCount = nodeCount
	return s, nil
}

// openTruncated opens path for read/write, and if its size is not an exact
// multiple of recordSize, truncates the dangling partial record a crash
// mid-write would have left — the on-disk analogue of "detectable and
// logically ignored" from the HashStore contract.
func openTruncated(path string, recordSize int64) (*os.File, int, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, 0, &Error{Op: "open " + path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, &Error{Op: "stat " + path, Err: err}
	}
	size := info.Size()
	full := size / recordSize
	if rem := size % recordSize; rem != 0 {
		log.Warn("hashstore: truncating partial trailing record", "path", path, "danglingBytes", rem)
		if err := f.Truncate(full * recordSize); err != nil {
			f.Close()
			return nil, 0, &Error{Op: "truncate " + path, Err: err}
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, 0, &Error{Op: "seek " + path, Err: err}
	}
	return f, int(full), nil
}

func (s *FileHashStore) WriteLeaf(hash common.Hash) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.leavesFile.Write(hash[:]); err != nil {
		return 0, &Error{Op: "writeLeaf", Err: err}
	}
	if err := s.leavesFile.Sync(); err != nil {
		return 0, &Error{Op: "writeLeaf sync", Err: err}
	}
	s.leafCount++
	if s.cache != nil {
		s.cache.Set(leafCacheKey(s.leafCount), hash[:])
	}
	return s.leafCount, nil
}

func (s *FileHashStore) WriteNode(rec NodeRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, nodeRecordSize)
	binary.BigEndian.PutUint64(buf[0:8], rec.Start)
	binary.BigEndian.PutUint32(buf[8:12], rec.Height)
	copy(buf[12:], rec.Hash[:])

	if _, err := s.nodesFile.Write(buf); err != nil {
		return 0, &Error{Op: "writeNode", Err: err}
	}
	if err := s.nodesFile.Sync(); err != nil {
		return 0, &Error{Op: "writeNode sync", Err: err}
	}
	s.nodeCount++
	if s.cache != nil {
		s.cache.Set(nodeCacheKey(s.nodeCount), buf)
	}
	return s.nodeCount, nil
}

func (s *FileHashStore) ReadLeaf(i int) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 1 || i > s.leafCount {
		return common.Hash{}, ErrNotFound
	}
	if s.cache != nil {
		if b := s.cache.Get(nil, leafCacheKey(i)); len(b) == leafRecordSize {
			return common.BytesToHash(b), nil
		}
	}
	buf := make([]byte, leafRecordSize)
	if _, err := s.leavesFile.ReadAt(buf, int64(i-1)*leafRecordSize); err != nil {
		return common.Hash{}, &Error{Op: "readLeaf", Err: err}
	}
	if s.cache != nil {
		s.cache.Set(leafCacheKey(i), buf)
	}
	return common.BytesToHash(buf), nil
}

func (s *FileHashStore) ReadNode(j int) (NodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j < 1 || j > s.nodeCount {
		return NodeRecord{}, ErrNotFound
	}
	var buf []byte
	if s.cache != nil {
		if b := s.cache.Get(nil, nodeCacheKey(j)); len(b) == nodeRecordSize {
			buf = b
		}
	}
	if buf == nil {
		buf = make([]byte, nodeRecordSize)
		if _, err := s.nodesFile.ReadAt(buf, int64(j-1)*nodeRecordSize); err != nil {
			return NodeRecord{}, &Error{Op: "readNode", Err: err}
		}
		if s.cache != nil {
			s.cache.Set(nodeCacheKey(j), buf)
		}
	}
	return NodeRecord{
		Start:  binary.BigEndian.Uint64(buf[0:8]),
		Height: binary.BigEndian.Uint32(buf[8:12]),
		Hash:   common.BytesToHash(buf[12:]),
	}, nil
}

func (s *FileHashStore) LeafCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leafCount, nil
}

func (s *FileHashStore) NodeCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeCount, nil
}

// Reset truncates both streams to empty, forcing the next recovery to
// rebuild from the transaction log. Must only be called while the owning
// ledger is stopped.
func (s *FileHashStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.leavesFile.Truncate(0); err != nil {
		return &Error{Op: "reset leaves", Err: err}
	}
	if _, err := s.leavesFile.Seek(0, io.SeekStart); err != nil {
		return &Error{Op: "reset leaves", Err: err}
	}
	if err := s.nodesFile.Truncate(0); err != nil {
		return &Error{Op: "reset nodes", Err: err}
	}
	if _, err := s.nodesFile.Seek(0, io.SeekStart); err != nil {
		return &Error{Op: "reset nodes", Err: err}
	}
	s.leafCount = 0
	s.nodeCount = 0
	if s.cache != nil {
		s.cache.Reset()
	}
	log.Info("hashstore: reset", "dir", s.dir)
	return nil
}

func (s *FileHashStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.leavesFile != nil {
		if err := s.leavesFile.Close(); err != nil {
			firstErr = err
		}
		s.leavesFile = nil
	}
	if s.nodesFile != nil {
		if err := s.nodesFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.nodesFile = nil
	}
	if firstErr != nil {
		return &Error{Op: "close", Err: firstErr}
	}
	return nil
}

func leafCacheKey(i int) []byte { return []byte("L" + strconv.Itoa(i)) }
func nodeCacheKey(j int) []byte { return []byte("N" + strconv.Itoa(j)) }

var _ HashStore = (*FileHashStore)(nil)
