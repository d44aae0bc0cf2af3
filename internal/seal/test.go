package seal

import (
	"bytes"
	"fmt"
	"io"

	"ark-go/internal/ark"
)

// testHeader is prepended to data by TestSealer to make sealed output
// clearly different from plaintext while remaining deterministic and reversible.
var testHeader = []byte("ARKSEAL\x00")

// TestSealer is a simple, deterministic sealer for testing. It prepends a
// fixed 8-byte header during sealing and strips it during unsealing, so
// sealed output differs from plaintext (checksums differ) while being
// trivially reversible and requiring no crypto.
type TestSealer struct {
	setupCalled bool
}

var _ ark.Sealer = (*TestSealer)(nil)

// NewTestSealer creates a new TestSealer.
func NewTestSealer() *TestSealer {
	return &TestSealer{}
}

func (s *TestSealer) Setup(passphrase string) error {
	s.setupCalled = true
	return nil
}

func (s *TestSealer) Seal(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (s *TestSealer) Unlock(passphrase string) (ark.UnsealContext, error) {
	return &TestUnsealContext{}, nil
}

func (s *TestSealer) IsConfigured() bool {
	return true
}

// TestUnsealContext strips the test header added by TestSealer.
type TestUnsealContext struct{}

var _ ark.UnsealContext = (*TestUnsealContext)(nil)

func (c *TestUnsealContext) Unseal(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test seal header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
