package ark

import (
	"fmt"
	"sync"
	"time"

	"ark-go/internal/model"
)

// GenesisHash anchors the first manifest in the chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ManifestChain links each day's store, snapshot and bundle hashes to the
// previous day's manifest hash, so any retroactive alteration anywhere in
// history is detectable. Manifests are write-once and retained forever.
//
// There is no rollback operation: correcting a detected tamper is an
// out-of-band forensic action, not a chain API call.
type ManifestChain struct {
	repo   ManifestRepository
	logger Logger
	clock  Clock

	// mu serializes manifest creation. Two concurrent writers computing
	// conflicting previous_manifest_hash values would fork the chain.
	mu sync.Mutex
}

// NewManifestChain creates a ManifestChain over the given repository.
func NewManifestChain(repo ManifestRepository, logger Logger, clock Clock) *ManifestChain {
	return &ManifestChain{
		repo:   repo,
		logger: logger,
		clock:  clock,
	}
}

// CreateDaily builds, self-hashes and persists the manifest for today.
// bundleHash may be empty when no bundle exists yet for the period. Exactly
// one manifest may exist per calendar day; a second create for the same day
// is an error.
func (c *ManifestChain) CreateDaily(corpusHash, snapshotHash, bundleHash string, eventCount, streamCount int64) (*model.DailyManifest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now().UTC()
	date := now.Format("2006-01-02")

	prev := GenesisHash
	latest, err := c.repo.Latest()
	if err != nil {
		return nil, fmt.Errorf("loading latest manifest: %w", err)
	}
	if latest != nil {
		if latest.Date >= date {
			return nil, fmt.Errorf("manifest for %s already exists (latest is %s)", date, latest.Date)
		}
		prev = latest.ManifestHash
	}

	m := &model.DailyManifest{
		Date:                 date,
		CorpusHash:           corpusHash,
		SnapshotHash:         snapshotHash,
		BundleHash:           bundleHash,
		EventCount:           eventCount,
		StreamCount:          streamCount,
		PreviousManifestHash: prev,
		Timestamp:            now,
	}

	selfHash, err := ManifestSelfHash(m)
	if err != nil {
		return nil, fmt.Errorf("computing manifest hash: %w", err)
	}
	m.ManifestHash = selfHash

	if err := c.repo.Append(m); err != nil {
		return nil, fmt.Errorf("persisting manifest: %w", err)
	}

	c.logger.Info("manifest committed",
		"date", date, "manifest_hash", selfHash, "previous", prev,
		"event_count", eventCount, "stream_count", streamCount)
	return m, nil
}

// Manifest returns the manifest for the given YYYY-MM-DD date, or an error
// if none exists.
func (c *ManifestChain) Manifest(date string) (*model.DailyManifest, error) {
	m, err := c.repo.Load(date)
	if err != nil {
		return nil, fmt.Errorf("loading manifest for %s: %w", date, err)
	}
	if m == nil {
		return nil, fmt.Errorf("no manifest exists for %s", date)
	}
	return m, nil
}

// VerifyChain walks every manifest from fromDate (empty means genesis)
// ordered by date, checking each link against its predecessor's hash and
// recomputing each self-hash. It short-circuits at the earliest failing
// date, since a single inserted or altered manifest corrupts everything
// after it. A nil return means the whole verified segment is intact.
func (c *ManifestChain) VerifyChain(fromDate string) error {
	all, err := c.repo.LoadAll()
	if err != nil {
		return fmt.Errorf("loading manifests: %w", err)
	}

	start := 0
	if fromDate != "" {
		for start < len(all) && all[start].Date < fromDate {
			start++
		}
	}

	for i := start; i < len(all); i++ {
		m := all[i]

		wantPrev := GenesisHash
		if i > 0 {
			wantPrev = all[i-1].ManifestHash
		}
		if m.PreviousManifestHash != wantPrev {
			c.logger.Error("MANIFEST_CHAIN_BROKEN",
				"date", m.Date, "expected", wantPrev, "actual", m.PreviousManifestHash)
			return &ChainError{
				Date:     m.Date,
				Kind:     ErrChainBroken,
				Expected: wantPrev,
				Actual:   m.PreviousManifestHash,
			}
		}

		selfHash, err := ManifestSelfHash(m)
		if err != nil {
			return fmt.Errorf("recomputing hash for %s: %w", m.Date, err)
		}
		if selfHash != m.ManifestHash {
			c.logger.Error("MANIFEST_SELF_HASH_MISMATCH",
				"date", m.Date, "expected", selfHash, "actual", m.ManifestHash)
			return &ChainError{
				Date:     m.Date,
				Kind:     ErrSelfHashMismatch,
				Expected: selfHash,
				Actual:   m.ManifestHash,
			}
		}
	}

	c.logger.Debug("chain verified", "from", fromDate, "manifests", len(all)-start)
	return nil
}

// ManifestSelfHash computes the SHA-256 over the canonical serialization of
// every manifest field except the self-hash, including
// previous_manifest_hash.
func ManifestSelfHash(m *model.DailyManifest) (string, error) {
	doc := map[string]any{
		"date":                   m.Date,
		"corpus_hash":            m.CorpusHash,
		"snapshot_hash":          m.SnapshotHash,
		"event_count":            m.EventCount,
		"stream_count":           m.StreamCount,
		"previous_manifest_hash": m.PreviousManifestHash,
		"timestamp":              m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if m.BundleHash != "" {
		doc["bundle_hash"] = m.BundleHash
	}
	return HashCanonical(doc)
}
