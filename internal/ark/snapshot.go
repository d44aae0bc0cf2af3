package ark

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ark-go/internal/model"
)

// snapshotTimeFormat is the filename-safe UTC timestamp used in artifact names.
const snapshotTimeFormat = "20060102T150405Z"

// SnapshotManager copies the durable store's current bytes into immutable,
// hash-verified snapshot artifacts and applies the retention policy.
//
// Layout under dir: <storeName>-<timestamp>[-<label>].snapshot with a
// sibling <name>.snapshot.json metadata file.
type SnapshotManager struct {
	store  DurableStore
	dir    string
	logger Logger
	clock  Clock
}

// NewSnapshotManager creates a SnapshotManager writing artifacts under dir.
func NewSnapshotManager(store DurableStore, dir string, logger Logger, clock Clock) *SnapshotManager {
	return &SnapshotManager{
		store:  store,
		dir:    dir,
		logger: logger,
		clock:  clock,
	}
}

// Create copies the store's bytes verbatim into a new snapshot artifact and
// persists its metadata. The copy runs under the store's view lock, so the
// artifact represents one consistent instant even with concurrent appends.
func (m *SnapshotManager) Create(label string) (*model.SnapshotMetadata, error) {
	ts := m.clock.Now().UTC()

	name := m.store.Name() + "-" + ts.Format(snapshotTimeFormat)
	if label != "" {
		name += "-" + label
	}
	name += ".snapshot"
	path := filepath.Join(m.dir, name)

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	var size int64
	err = m.store.View(func(r io.Reader, n int64) error {
		written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
		if err != nil {
			return fmt.Errorf("copying store bytes: %w", err)
		}
		if written != n {
			return fmt.Errorf("short copy: expected %d bytes, got %d", n, written)
		}
		size = written
		return nil
	})
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("renaming snapshot into place: %w", err)
	}
	success = true

	meta := &model.SnapshotMetadata{
		Name:      name,
		Path:      path,
		Timestamp: ts,
		SHA256:    hex.EncodeToString(hasher.Sum(nil)),
		SizeBytes: size,
		Label:     label,
	}

	if err := writeJSONFile(path+".json", meta); err != nil {
		return nil, fmt.Errorf("writing snapshot metadata: %w", err)
	}

	m.logger.Info("snapshot created", "name", name, "sha256", meta.SHA256, "size_bytes", size)
	return meta, nil
}

// Verify recomputes the SHA-256 of the artifact at path and compares it to
// the recorded metadata. A mismatch is ErrSnapshotCorrupted.
func (m *SnapshotManager) Verify(path string) error {
	meta, err := readSnapshotMetadata(path + ".json")
	if err != nil {
		return fmt.Errorf("reading snapshot metadata: %w", err)
	}

	actual, size, err := hashFile(path)
	if err != nil {
		return fmt.Errorf("hashing snapshot artifact: %w", err)
	}

	if actual != meta.SHA256 || size != meta.SizeBytes {
		m.logger.Error("SNAPSHOT_HASH_MISMATCH",
			"path", path, "expected", meta.SHA256, "actual", actual)
		return &HashMismatchError{
			Kind:     ErrSnapshotCorrupted,
			Path:     path,
			Expected: meta.SHA256,
			Actual:   actual,
		}
	}

	m.logger.Debug("snapshot verified", "path", path, "sha256", actual)
	return nil
}

// List returns metadata for every snapshot, ordered by timestamp ascending.
func (m *SnapshotManager) List() ([]*model.SnapshotMetadata, error) {
	matches, err := filepath.Glob(filepath.Join(m.dir, "*.snapshot.json"))
	if err != nil {
		return nil, fmt.Errorf("listing snapshot metadata: %w", err)
	}

	metas := make([]*model.SnapshotMetadata, 0, len(matches))
	for _, metaPath := range matches {
		meta, err := readSnapshotMetadata(metaPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", metaPath, err)
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Timestamp.Before(metas[j].Timestamp)
	})
	return metas, nil
}

// FindClosest returns the snapshot with the greatest timestamp at or before
// target, or ErrSnapshotNotFound if none exists.
func (m *SnapshotManager) FindClosest(target time.Time) (*model.SnapshotMetadata, error) {
	metas, err := m.List()
	if err != nil {
		return nil, err
	}

	var best *model.SnapshotMetadata
	for _, meta := range metas {
		if meta.Timestamp.After(target) {
			continue
		}
		if best == nil || meta.Timestamp.After(best.Timestamp) {
			best = meta
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: target %s", ErrSnapshotNotFound, target.UTC().Format(time.RFC3339))
	}
	return best, nil
}

// Cleanup deletes every snapshot the policy rejects at the instant now.
// Manifests are retained forever and are never touched here. Returns the
// number of snapshots removed.
func (m *SnapshotManager) Cleanup(policy RetentionPolicy, now time.Time) (int, error) {
	metas, err := m.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, meta := range metas {
		if policy.ShouldKeep(meta.Timestamp, now) {
			continue
		}
		if err := os.Remove(meta.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing snapshot %s: %w", meta.Name, err)
		}
		if err := os.Remove(meta.Path + ".json"); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing snapshot metadata %s: %w", meta.Name, err)
		}
		removed++
		m.logger.Info("snapshot pruned", "name", meta.Name, "timestamp", meta.Timestamp.Format(time.RFC3339))
	}
	return removed, nil
}

func readSnapshotMetadata(path string) (*model.SnapshotMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta model.SnapshotMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &meta, nil
}

// hashFile returns the SHA-256 hex and size of the file at path.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// writeJSONFile writes v as indented JSON via temp file + rename so readers
// never observe a partial write.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
