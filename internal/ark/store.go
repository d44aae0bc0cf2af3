package ark

import "io"

// DurableStore is the append-only byte storage the core writes events into.
// The core consumes this interface and never reimplements storage semantics;
// backends live in internal/store.
type DurableStore interface {
	// Append atomically appends data for a stream and returns the byte
	// offset the write started at. Appends to the same stream are
	// serialized; different streams may append in parallel. Failures are
	// reported as ErrStoreUnavailable.
	Append(streamID string, data []byte) (int64, error)

	// ReadAll returns every stored byte belonging to the given stream, in
	// append order.
	ReadAll(streamID string) ([]byte, error)

	// ContentHash returns the SHA-256 hex of the store's full current
	// contents.
	ContentHash() (string, error)

	// Name identifies the store; artifact filenames derive from it.
	Name() string

	// View runs fn with a reader over the store's full contents. Appends
	// are blocked for the duration, so fn observes one consistent instant,
	// never a half-written append.
	View(fn func(r io.Reader, size int64) error) error
}
