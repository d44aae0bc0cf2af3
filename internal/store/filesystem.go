package store

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"ark-go/internal/ark"
)

// FileStore is the filesystem-backed durable store: a single append-only
// JSONL ledger file holding every stream's event envelopes in arrival order.
//
// Locking: a per-stream mutex serializes appends within one stream (no two
// events for the same stream interleave mid-write) while different streams
// may proceed in parallel up to the file-level lock, which orders the actual
// writes. Readers take the file lock shared, so View observes one
// consistent instant. The append-only discipline gives the prefix property
// restores depend on: the store's bytes at any past instant are a prefix of
// its current bytes.
type FileStore struct {
	name string
	path string

	mu        sync.RWMutex // file-level: appends exclusive, reads shared
	streamsMu sync.Mutex
	streams   map[string]*sync.Mutex
}

var _ ark.DurableStore = (*FileStore)(nil)

// NewFileStore opens (or creates) the ledger file at dir/<name>.log.
func NewFileStore(name, dir string) (*FileStore, error) {
	if name == "" {
		return nil, fmt.Errorf("store name is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	path := filepath.Join(dir, name+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger file: %w", err)
	}
	f.Close()

	return &FileStore{
		name:    name,
		path:    path,
		streams: make(map[string]*sync.Mutex),
	}, nil
}

// Name returns the store name artifact filenames derive from.
func (s *FileStore) Name() string { return s.name }

// Path returns the ledger file location.
func (s *FileStore) Path() string { return s.path }

// Append atomically appends data for a stream and returns the byte offset
// the write started at. Failures surface as ErrStoreUnavailable.
func (s *FileStore) Append(streamID string, data []byte) (int64, error) {
	if streamID == "" {
		return 0, fmt.Errorf("stream id is required")
	}

	lock := s.streamLock(streamID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: opening ledger: %v", ark.ErrStoreUnavailable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat ledger: %v", ark.ErrStoreUnavailable, err)
	}
	offset := info.Size()

	// One Write call: the envelope line lands whole or not at all.
	if _, err := f.Write(data); err != nil {
		return 0, fmt.Errorf("%w: writing ledger: %v", ark.ErrStoreUnavailable, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: syncing ledger: %v", ark.ErrStoreUnavailable, err)
	}
	return offset, nil
}

// ReadAll returns every envelope line belonging to streamID, in append order.
func (s *FileStore) ReadAll(streamID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening ledger: %v", ark.ErrStoreUnavailable, err)
	}
	defer f.Close()

	var out bytes.Buffer
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env struct {
			StreamID string `json:"stream_id"`
		}
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, fmt.Errorf("decoding envelope: %w", err)
		}
		if env.StreamID != streamID {
			continue
		}
		out.Write(line)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning ledger: %w", err)
	}
	return out.Bytes(), nil
}

// ContentHash returns the SHA-256 hex of the full ledger file.
func (s *FileStore) ContentHash() (string, error) {
	var sum string
	err := s.View(func(r io.Reader, _ int64) error {
		h := sha256.New()
		if _, err := io.Copy(h, r); err != nil {
			return err
		}
		sum = hex.EncodeToString(h.Sum(nil))
		return nil
	})
	if err != nil {
		return "", err
	}
	return sum, nil
}

// View runs fn with a reader over the ledger's full contents while appends
// are blocked, so fn sees one consistent instant.
func (s *FileStore) View(fn func(r io.Reader, size int64) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: opening ledger: %v", ark.ErrStoreUnavailable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat ledger: %v", ark.ErrStoreUnavailable, err)
	}
	return fn(f, info.Size())
}

func (s *FileStore) streamLock(streamID string) *sync.Mutex {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	lock, ok := s.streams[streamID]
	if !ok {
		lock = &sync.Mutex{}
		s.streams[streamID] = lock
	}
	return lock
}
