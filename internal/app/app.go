package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"ark-go/internal/ark"
	"ark-go/internal/config"
	"ark-go/internal/database"
	"ark-go/internal/manifest"
	"ark-go/internal/model"
	"ark-go/internal/seal"
	"ark-go/internal/store"
	"ark-go/internal/transport"
)

// ArkApp is the application layer between the CLI and ArkService.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the DB and log lifecycle on Close.
type ArkApp struct {
	cfg     *config.Config
	db      ark.Database
	store   ark.DurableStore
	sealer  ark.Sealer
	service *ark.ArkService
	op      *ArkOperation
	logFile *os.File
}

// NewArkApp creates a fully wired ArkApp from the given config.
// operation identifies the CLI command being run (e.g. "AppendEvent", "RunDaily").
// The caller must call Close when done.
func NewArkApp(cfg *config.Config, operation string) (*ArkApp, error) {
	st, err := store.NewStoreFromConfig(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	tr, err := transport.NewTransportFromConfig(cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("creating archive transport: %w", err)
	}

	repo, err := manifest.NewRepositoryFromConfig(cfg.Manifests)
	if err != nil {
		return nil, fmt.Errorf("creating manifest repository: %w", err)
	}

	sealer, err := seal.NewSealerFromConfig(cfg.Seal)
	if err != nil {
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	l := &slogAdapter{l: logger}
	clock := ark.RealClock{}

	ledger := ark.NewEventLedger(st, l, clock, ark.UUIDGenerator{})
	snapshots := ark.NewSnapshotManager(st, cfg.Snapshots.Dir, l, clock)
	bundles := ark.NewBundleManager(st, tr, sealer, cfg.Bundles.Dir, cfg.Bundles.Prefix, l, clock)
	chain := ark.NewManifestChain(repo, l, clock)
	restorer := ark.NewRestoreOrchestrator(st, snapshots, bundles, chain, cfg.Restore.WorkDir, l, clock)

	svc := ark.NewArkService(ledger, snapshots, bundles, chain, restorer, st, db, retentionPolicy(cfg.Retention), l, clock)
	op := NewArkOperation(operation, "")

	return &ArkApp{
		cfg:     cfg,
		db:      db,
		store:   st,
		sealer:  sealer,
		service: svc,
		op:      op,
		logFile: logFile,
	}, nil
}

// retentionPolicy maps the config section to a policy, falling back to the
// defaults when the section was left empty.
func retentionPolicy(rc config.RetentionConfig) ark.RetentionPolicy {
	if rc.HourlyCount == 0 && rc.DailyCount == 0 && rc.WeeklyCount == 0 &&
		rc.MonthlyCount == 0 && rc.TotalRetentionDays == 0 {
		return ark.DefaultRetentionPolicy()
	}
	return ark.RetentionPolicy{
		HourlyCount:        rc.HourlyCount,
		DailyCount:         rc.DailyCount,
		WeeklyCount:        rc.WeeklyCount,
		MonthlyCount:       rc.MonthlyCount,
		TotalRetentionDays: rc.TotalRetentionDays,
	}
}

// persistOperation saves the operation to the index, giving it an
// auto-increment ID. This should only be called for mutating commands.
func (a *ArkApp) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// AppendEvent appends one domain event to the ledger with the current time.
func (a *ArkApp) AppendEvent(streamID, eventType string, payload map[string]any) (*model.Event, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	ev, err := a.service.AppendEvent(streamID, eventType, payload, time.Now().UTC())
	if err != nil {
		a.op.Fail()
	}
	return ev, err
}

// CreateSnapshot copies the store into a new snapshot artifact.
func (a *ArkApp) CreateSnapshot(label string) (*model.SnapshotMetadata, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	snap, err := a.service.CreateSnapshot(label)
	if err != nil {
		a.op.Fail()
	}
	return snap, err
}

// VerifySnapshot checks a snapshot artifact against its recorded hash.
func (a *ArkApp) VerifySnapshot(path string) error {
	return a.service.VerifySnapshot(path)
}

// ListSnapshots returns all snapshot metadata, oldest first.
func (a *ArkApp) ListSnapshots() ([]*model.SnapshotMetadata, error) {
	return a.service.ListSnapshots()
}

// CleanupSnapshots applies the retention policy and returns the number of
// snapshots removed.
func (a *ArkApp) CleanupSnapshots() (int, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	n, err := a.service.CleanupSnapshots()
	if err != nil {
		a.op.Fail()
	}
	return n, err
}

// CreateBundle archives the given month's history. An empty month means the
// current month.
func (a *ArkApp) CreateBundle(month string) (*model.BundleMetadata, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	b, err := a.service.CreateBundle(month)
	if err != nil {
		a.op.Fail()
	}
	return b, err
}

// VerifyBundle checks a bundle's checksum and structure. When passphrase is
// non-empty the sealing key is unlocked so sealed contents can be walked.
func (a *ArkApp) VerifyBundle(path, passphrase string) error {
	var unseal ark.UnsealContext
	if passphrase != "" {
		if a.sealer == nil {
			return fmt.Errorf("no sealer configured")
		}
		uc, err := a.sealer.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking sealing key: %w", err)
		}
		unseal = uc
	}
	return a.service.VerifyBundle(path, unseal)
}

// CreateDailyManifest commits today's manifest to the chain.
func (a *ArkApp) CreateDailyManifest() (*model.DailyManifest, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	m, err := a.service.CreateDailyManifest()
	if err != nil {
		a.op.Fail()
	}
	return m, err
}

// VerifyChain verifies the manifest chain. fromDate may be empty to verify
// from the beginning.
func (a *ArkApp) VerifyChain(fromDate string) error {
	return a.service.VerifyChain(fromDate)
}

// Restore reconstructs store state as of target and reports the outcome.
func (a *ArkApp) Restore(ctx context.Context, target time.Time) (*model.RestoreReport, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	sessionID := ark.UUIDGenerator{}.New()
	report, err := a.service.Restore(ctx, sessionID, target)
	if err != nil {
		a.op.Fail()
	}
	return report, err
}

// RunDaily executes the scheduled daily flow: snapshot, then manifest.
func (a *ArkApp) RunDaily() (*model.SnapshotMetadata, *model.DailyManifest, error) {
	if err := a.persistOperation(); err != nil {
		return nil, nil, err
	}
	snap, m, err := a.service.RunDaily()
	if err != nil {
		a.op.Fail()
	}
	return snap, m, err
}

// RunMonthly executes the scheduled monthly flow: bundle the month.
func (a *ArkApp) RunMonthly(month string) (*model.BundleMetadata, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	b, err := a.service.RunMonthly(month)
	if err != nil {
		a.op.Fail()
	}
	return b, err
}

// SealSetup generates the sealing key pair, protecting the private key with
// the given passphrase.
func (a *ArkApp) SealSetup(passphrase string) error {
	if a.sealer == nil {
		return fmt.Errorf("no sealer configured; set seal.type in the config")
	}
	if err := a.persistOperation(); err != nil {
		return err
	}
	if err := a.sealer.Setup(passphrase); err != nil {
		a.op.Fail()
		return err
	}
	return nil
}

// GetHistory returns the most recent operator commands from the index.
func (a *ArkApp) GetHistory(limit int) ([]*model.Operation, error) {
	return a.service.History(limit)
}

// GetRestoreReports returns the most recent restore reports from the index.
func (a *ArkApp) GetRestoreReports(limit int) ([]*model.RestoreReport, error) {
	return a.db.ListRestoreReports(limit)
}

// Close finalizes the operation record and closes all resources.
func (a *ArkApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
