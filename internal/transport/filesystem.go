package transport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ark-go/internal/ark"
)

// FileSystemTransport is a filesystem-based implementation of the
// ArchiveTransport interface. Artifacts land under <root>/bundles/<label>.
type FileSystemTransport struct {
	root       string
	bundlesDir string
}

var _ ark.ArchiveTransport = (*FileSystemTransport)(nil)

// NewFileSystemTransport creates a filesystem transport rooted at the given path.
func NewFileSystemTransport(root string) (*FileSystemTransport, error) {
	bundlesDir := filepath.Join(root, "bundles")
	if err := os.MkdirAll(bundlesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bundles directory: %w", err)
	}

	return &FileSystemTransport{
		root:       root,
		bundlesDir: bundlesDir,
	}, nil
}

// Store writes the artifact under label using atomic write (temp file + rename).
func (t *FileSystemTransport) Store(label string, r io.Reader, size int64) error {
	destPath := filepath.Join(t.bundlesDir, label)

	tmp, err := os.CreateTemp(t.bundlesDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Fetch reads the artifact stored under label and writes it to w.
func (t *FileSystemTransport) Fetch(label string, w io.Writer) error {
	srcPath := filepath.Join(t.bundlesDir, label)
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("artifact not found: %s", label)
		}
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the transport directories are accessible.
func (t *FileSystemTransport) ValidateSetup() error {
	info, err := os.Stat(t.root)
	if err != nil {
		return fmt.Errorf("transport root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("transport root is not a directory: %s", t.root)
	}

	info, err = os.Stat(t.bundlesDir)
	if err != nil {
		return fmt.Errorf("transport directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("transport path is not a directory: %s", t.bundlesDir)
	}
	return nil
}
