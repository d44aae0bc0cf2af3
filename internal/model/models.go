package model

import "time"

// Event is one immutable domain fact in the ledger.
// AuditHash is a pure function of Type, Payload, Timestamp and StreamID:
// recomputing it over the canonical serialization of those fields must
// always reproduce the stored value, independent of write order.
type Event struct {
	EventID   string         `json:"event_id"`  // UUID
	StreamID  string         `json:"stream_id"` // owning consultation/session
	Timestamp time.Time      `json:"timestamp"` // UTC, monotonic per stream
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	AuditHash string         `json:"audit_hash"` // SHA-256 hex
}

// SnapshotMetadata describes a point-in-time copy of the durable store.
// SHA256 is the hash of the artifact bytes; a later verification that
// recomputes a different value signals corruption or tampering.
type SnapshotMetadata struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
	Label     string    `json:"label,omitempty"`
}

// BundleMetadata describes an immutable monthly archive of full history.
type BundleMetadata struct {
	Label      string `json:"label"` // period key, YYYY-MM
	Path       string `json:"path"`
	SHA256     string `json:"sha256"`
	SizeBytes  int64  `json:"size_bytes"`
	EntryCount int    `json:"entry_count"`
	Sealed     bool   `json:"sealed,omitempty"`
}

// DailyManifest is one link in the tamper-evidence chain. ManifestHash is
// the SHA-256 of the canonical serialization of every other field, including
// PreviousManifestHash, so altering any past day breaks every later link.
type DailyManifest struct {
	Date                 string    `json:"date"` // YYYY-MM-DD
	CorpusHash           string    `json:"corpus_hash"`
	SnapshotHash         string    `json:"snapshot_hash"`
	BundleHash           string    `json:"bundle_hash,omitempty"`
	EventCount           int64     `json:"event_count"`
	StreamCount          int64     `json:"stream_count"`
	PreviousManifestHash string    `json:"previous_manifest_hash"`
	ManifestHash         string    `json:"manifest_hash"`
	Timestamp            time.Time `json:"timestamp"`
}

// RestoreReport records the inputs and outcome of one restore attempt.
// It is persisted for every attempt, pass or fail.
type RestoreReport struct {
	SessionID          string    `json:"sessionId"`
	TargetTimestamp    time.Time `json:"targetTimestamp"`
	SnapshotUsed       string    `json:"snapshotUsed"`
	BundleUsed         string    `json:"bundleUsed"`
	RestoredPath       string    `json:"restoredPath"`
	FinalHash          string    `json:"finalHash"`
	ExpectedHash       string    `json:"expectedHash"`
	VerificationPassed bool      `json:"verificationPassed"`
	RestoreTimestamp   time.Time `json:"restoreTimestamp"`
}

// Operation is one operator command recorded in the operations index.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "success" or "error"
}
