package store

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"ark-go/internal/ark"
)

// MemoryStore is an in-memory durable store with the same locking semantics
// as FileStore. Use in tests and for ephemeral setups.
type MemoryStore struct {
	name string

	mu        sync.RWMutex
	buf       bytes.Buffer
	streamsMu sync.Mutex
	streams   map[string]*sync.Mutex
}

var _ ark.DurableStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:    name,
		streams: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) Append(streamID string, data []byte) (int64, error) {
	if streamID == "" {
		return 0, fmt.Errorf("stream id is required")
	}

	lock := s.streamLock(streamID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	offset := int64(s.buf.Len())
	s.buf.Write(data)
	return offset, nil
}

func (s *MemoryStore) ReadAll(streamID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(s.buf.Bytes()))
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

func (s *MemoryStore) ContentHash() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := sha256.Sum256(s.buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func (s *MemoryStore) View(fn func(r io.Reader, size int64) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := s.buf.Bytes()
	return fn(bytes.NewReader(data), int64(len(data)))
}

func (s *MemoryStore) streamLock(streamID string) *sync.Mutex {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	lock, ok := s.streams[streamID]
	if !ok {
		lock = &sync.Mutex{}
		s.streams[streamID] = lock
	}
	return lock
}
