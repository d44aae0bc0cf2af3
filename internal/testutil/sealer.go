package testutil

import (
	"ark-go/internal/ark"
	"ark-go/internal/seal"
)

// NewTestSealer creates a new test sealer for testing.
func NewTestSealer() ark.Sealer {
	return seal.NewTestSealer()
}
