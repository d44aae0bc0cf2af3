package ark

import "io"

// ArchiveTransport moves immutable bundle artifacts to and from off-site
// storage. All operations stream through io.Reader/io.Writer so large
// archives never need to fit in memory. Backends live in internal/transport.
type ArchiveTransport interface {
	// Store uploads an artifact under the given label. Storing the same
	// label twice overwrites; bundles are content-addressed by their
	// checksum companions, so a re-upload of identical bytes is harmless.
	// size is the number of bytes that will be read from r.
	Store(label string, r io.Reader, size int64) error

	// Fetch retrieves the artifact stored under label and writes it to w.
	Fetch(label string, w io.Writer) error

	// ValidateSetup verifies that the transport is accessible and properly
	// configured.
	ValidateSetup() error
}
