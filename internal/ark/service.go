package ark

import (
	"context"
	"fmt"
	"time"

	"ark-go/internal/model"
)

// ArkService is the orchestration layer that coordinates across all
// components to perform the high-level operations needed by the CLI. The
// core is scheduler-agnostic: the scheduled flows (RunDaily, RunMonthly) are
// plain synchronous functions an external cron-equivalent invokes.
type ArkService struct {
	ledger    *EventLedger
	snapshots *SnapshotManager
	bundles   *BundleManager
	chain     *ManifestChain
	restorer  *RestoreOrchestrator
	store     DurableStore
	database  Database
	policy    RetentionPolicy
	logger    Logger
	clock     Clock
}

// NewArkService creates an ArkService with the provided dependencies.
// database may be nil when no operations index is configured.
func NewArkService(ledger *EventLedger, snapshots *SnapshotManager, bundles *BundleManager, chain *ManifestChain, restorer *RestoreOrchestrator, store DurableStore, database Database, policy RetentionPolicy, logger Logger, clock Clock) *ArkService {
	return &ArkService{
		ledger:    ledger,
		snapshots: snapshots,
		bundles:   bundles,
		chain:     chain,
		restorer:  restorer,
		store:     store,
		database:  database,
		policy:    policy,
		logger:    logger,
		clock:     clock,
	}
}

// AppendEvent appends one domain event to the ledger.
func (s *ArkService) AppendEvent(streamID, eventType string, payload map[string]any, ts time.Time) (*model.Event, error) {
	return s.ledger.Append(streamID, eventType, payload, ts)
}

// CreateSnapshot copies the store into a new snapshot artifact.
func (s *ArkService) CreateSnapshot(label string) (*model.SnapshotMetadata, error) {
	return s.snapshots.Create(label)
}

// VerifySnapshot checks one snapshot artifact against its metadata.
func (s *ArkService) VerifySnapshot(path string) error {
	return s.snapshots.Verify(path)
}

// ListSnapshots returns all snapshot metadata, oldest first.
func (s *ArkService) ListSnapshots() ([]*model.SnapshotMetadata, error) {
	return s.snapshots.List()
}

// CleanupSnapshots applies the retention policy now. Returns the number of
// snapshots removed.
func (s *ArkService) CleanupSnapshots() (int, error) {
	return s.snapshots.Cleanup(s.policy, s.clock.Now())
}

// CreateBundle archives the given month's history (empty means current).
func (s *ArkService) CreateBundle(month string) (*model.BundleMetadata, error) {
	return s.bundles.CreateMonthly(month)
}

// VerifyBundle checks a bundle's checksum and structural integrity.
// unseal may be nil for unsealed bundles.
func (s *ArkService) VerifyBundle(path string, unseal UnsealContext) error {
	return s.bundles.Verify(path, unseal)
}

// CreateDailyManifest links the current store hash, the most recent
// snapshot's hash and (when present) the current month's bundle hash into
// the chain. A snapshot must exist: the manifest records which artifact can
// reproduce the hashed corpus.
func (s *ArkService) CreateDailyManifest() (*model.DailyManifest, error) {
	corpusHash, err := s.store.ContentHash()
	if err != nil {
		return nil, fmt.Errorf("hashing store: %w", err)
	}

	snaps, err := s.snapshots.List()
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no snapshot exists; create one before the daily manifest")
	}
	snapshotHash := snaps[len(snaps)-1].SHA256

	bundleHash := ""
	month := s.clock.Now().UTC().Format("2006-01")
	if bundle, err := s.bundles.Find(month); err == nil {
		bundleHash = bundle.SHA256
	}

	stats, err := s.ledger.Stats()
	if err != nil {
		return nil, fmt.Errorf("computing ledger stats: %w", err)
	}

	return s.chain.CreateDaily(corpusHash, snapshotHash, bundleHash, stats.EventCount, stats.StreamCount)
}

// VerifyChain verifies the whole manifest chain (or from fromDate on).
func (s *ArkService) VerifyChain(fromDate string) error {
	return s.chain.VerifyChain(fromDate)
}

// Restore reconstructs state at target and records the report in the
// operations index when one is configured.
func (s *ArkService) Restore(ctx context.Context, sessionID string, target time.Time) (*model.RestoreReport, error) {
	report, err := s.restorer.Restore(ctx, sessionID, target)

	if s.database != nil && report != nil {
		if dbErr := s.database.RecordRestoreReport(report); dbErr != nil {
			s.logger.Error("restore report not recorded in index", "session_id", sessionID, "error", dbErr)
		}
	}
	return report, err
}

// RunDaily is the scheduled once-a-day flow: snapshot the store, then commit
// the daily manifest over it.
func (s *ArkService) RunDaily() (*model.SnapshotMetadata, *model.DailyManifest, error) {
	snap, err := s.snapshots.Create("")
	if err != nil {
		return nil, nil, fmt.Errorf("daily snapshot: %w", err)
	}
	manifest, err := s.CreateDailyManifest()
	if err != nil {
		return snap, nil, fmt.Errorf("daily manifest: %w", err)
	}
	return snap, manifest, nil
}

// RunMonthly is the scheduled once-a-month flow: bundle the month's history.
func (s *ArkService) RunMonthly(month string) (*model.BundleMetadata, error) {
	return s.bundles.CreateMonthly(month)
}

// History returns the most recent operator commands from the index.
func (s *ArkService) History(limit int) ([]*model.Operation, error) {
	if s.database == nil {
		return nil, fmt.Errorf("no operations index configured")
	}
	return s.database.ListOperations(limit)
}
