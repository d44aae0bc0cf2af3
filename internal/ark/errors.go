package ark

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Callers classify failures with
// errors.Is; integrity failures additionally carry both hash values via
// HashMismatchError or ChainError.
var (
	// ErrStoreUnavailable marks transient store write/read failures.
	// Callers may retry with backoff; the ledger never retries silently.
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrSnapshotCorrupted marks a snapshot artifact whose recomputed hash
	// no longer matches its recorded metadata.
	ErrSnapshotCorrupted = errors.New("snapshot corrupted")

	// ErrBundleCorrupted marks a bundle that fails its checksum or cannot
	// be structurally traversed.
	ErrBundleCorrupted = errors.New("bundle corrupted")

	// ErrSelfHashMismatch marks a manifest whose recomputed self-hash
	// differs from the stored one.
	ErrSelfHashMismatch = errors.New("manifest self-hash mismatch")

	// ErrChainBroken marks a manifest whose previous_manifest_hash does not
	// match its predecessor.
	ErrChainBroken = errors.New("manifest chain broken")

	// ErrSnapshotNotFound means no snapshot exists at or before the
	// requested restore target.
	ErrSnapshotNotFound = errors.New("no eligible snapshot before target")

	// ErrBundleNotFound means no bundle covers the restore target's period.
	ErrBundleNotFound = errors.New("no bundle covering target period")

	// ErrRestoreHashMismatch means a restore completed but produced bytes
	// whose hash differs from the manifest-recorded corpus hash. The
	// restored artifact is kept for inspection and never promoted.
	ErrRestoreHashMismatch = errors.New("restored corpus hash mismatch")
)

// HashMismatchError reports an integrity failure on a single artifact,
// carrying both the expected and the recomputed hash.
type HashMismatchError struct {
	Kind     error // one of the sentinel errors above
	Path     string
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("%v: %s: expected %s, got %s", e.Kind, e.Path, e.Expected, e.Actual)
}

func (e *HashMismatchError) Unwrap() error { return e.Kind }

// ChainError reports the earliest failing day found during chain
// verification. A single altered manifest corrupts every later link, so
// verification short-circuits at the first bad day.
type ChainError struct {
	Date     string
	Kind     error // ErrSelfHashMismatch or ErrChainBroken
	Expected string
	Actual   string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%v at %s: expected %s, got %s", e.Kind, e.Date, e.Expected, e.Actual)
}

func (e *ChainError) Unwrap() error { return e.Kind }
