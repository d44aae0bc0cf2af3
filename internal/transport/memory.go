package transport

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"ark-go/internal/ark"
)

// MemoryTransport is an in-memory ArchiveTransport for tests and ephemeral
// setups. Safe for concurrent use.
type MemoryTransport struct {
	mu        sync.RWMutex
	artifacts map[string][]byte
}

var _ ark.ArchiveTransport = (*MemoryTransport)(nil)

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		artifacts: make(map[string][]byte),
	}
}

func (t *MemoryTransport) Store(label string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.artifacts[label] = data
	return nil
}

func (t *MemoryTransport) Fetch(label string, w io.Writer) error {
	t.mu.RLock()
	data, ok := t.artifacts[label]
	t.mu.RUnlock()

	if !ok {
		return fmt.Errorf("artifact not found: %s", label)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

func (t *MemoryTransport) ValidateSetup() error { return nil }

// Labels returns the stored artifact labels. Test helper.
func (t *MemoryTransport) Labels() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	labels := make([]string, 0, len(t.artifacts))
	for label := range t.artifacts {
		labels = append(labels, label)
	}
	return labels
}
