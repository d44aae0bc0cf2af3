package testutil

import (
	"ark-go/internal/ark"
	"ark-go/internal/transport"
)

// NewTestTransport creates a new in-memory archive transport for testing.
func NewTestTransport() ark.ArchiveTransport {
	return transport.NewMemoryTransport()
}
