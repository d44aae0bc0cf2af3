package ark

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"ark-go/internal/model"
)

// RestoreOrchestrator reconstructs historical state at an arbitrary past
// instant and cryptographically confirms the result. It is read-only against
// the live store and works in an isolated workspace, so restores may run
// concurrently with live ingestion and with each other.
type RestoreOrchestrator struct {
	store     DurableStore
	snapshots *SnapshotManager
	bundles   *BundleManager
	chain     *ManifestChain
	workDir   string
	logger    Logger
	clock     Clock
}

// NewRestoreOrchestrator creates a RestoreOrchestrator materializing into
// workDir.
func NewRestoreOrchestrator(store DurableStore, snapshots *SnapshotManager, bundles *BundleManager, chain *ManifestChain, workDir string, logger Logger, clock Clock) *RestoreOrchestrator {
	return &RestoreOrchestrator{
		store:     store,
		snapshots: snapshots,
		bundles:   bundles,
		chain:     chain,
		workDir:   workDir,
		logger:    logger,
		clock:     clock,
	}
}

// Restore locates the closest snapshot at or before target, verifies the
// covering bundle, the snapshot and the manifest chain, materializes the
// snapshot into an isolated location, replays subsequent ledger events up to
// target, and asserts the reconstructed hash equals the manifest-recorded
// corpus hash.
//
// A restore report is persisted for every attempt, success or failure. On a
// hash mismatch the restored artifact is retained for forensic inspection
// and never promoted to replace the live store. ctx is honored between
// discrete steps; cancellation never leaves a partially-materialized
// artifact visible as complete.
func (o *RestoreOrchestrator) Restore(ctx context.Context, sessionID string, target time.Time) (*model.RestoreReport, error) {
	target = target.UTC()
	report := &model.RestoreReport{
		SessionID:        sessionID,
		TargetTimestamp:  target,
		RestoreTimestamp: o.clock.Now().UTC(),
	}

	err := o.restore(ctx, report, target)
	report.VerificationPassed = err == nil

	if reportErr := o.writeReport(report); reportErr != nil {
		o.logger.Error("restore report not persisted", "session_id", sessionID, "error", reportErr)
		if err == nil {
			err = reportErr
		}
	}

	if err != nil {
		o.logger.Error("restore FAILED", "session_id", sessionID,
			"target", target.Format(time.RFC3339), "error", err)
		return report, err
	}

	o.logger.Info("restore verified", "session_id", sessionID,
		"target", target.Format(time.RFC3339), "hash", report.FinalHash)
	return report, nil
}

func (o *RestoreOrchestrator) restore(ctx context.Context, report *model.RestoreReport, target time.Time) error {
	// Closest snapshot at or before the target.
	snap, err := o.snapshots.FindClosest(target)
	if err != nil {
		return err
	}
	report.SnapshotUsed = snap.Path

	// The bundle covering the target's period must exist and verify.
	bundle, err := o.bundles.Find(target.Format("2006-01"))
	if err != nil {
		return err
	}
	report.BundleUsed = bundle.Path
	if err := o.bundles.Verify(bundle.Path, nil); err != nil {
		return err
	}

	// Snapshot integrity comes before any hash comparison.
	if err := o.snapshots.Verify(snap.Path); err != nil {
		return err
	}

	// The chain segment covering the target must be intact.
	date := target.Format("2006-01-02")
	if err := o.chain.VerifyChain(date); err != nil {
		return fmt.Errorf("chain verification failed: %w", err)
	}

	manifest, err := o.chain.Manifest(date)
	if err != nil {
		return err
	}
	report.ExpectedHash = manifest.CorpusHash

	if err := ctx.Err(); err != nil {
		return err
	}

	// Materialize into an isolated workspace, staged as .partial until the
	// replay finishes so cancellation never leaves a half-artifact looking
	// complete.
	restoreDir := filepath.Join(o.workDir, "restore-"+report.SessionID)
	if err := os.MkdirAll(restoreDir, 0755); err != nil {
		return fmt.Errorf("creating restore workspace: %w", err)
	}
	finalPath := filepath.Join(restoreDir, o.store.Name()+".log")
	partialPath := finalPath + ".partial"

	if err := copyFile(snap.Path, partialPath); err != nil {
		return fmt.Errorf("materializing snapshot: %w", err)
	}

	if err := ctx.Err(); err != nil {
		os.Remove(partialPath)
		return err
	}

	// Replay events appended after the snapshot instant, up to the target,
	// in increasing timestamp order. The ledger file is append-only, so the
	// snapshot is a byte prefix of the current store and replay appends the
	// stored envelope lines verbatim beyond that prefix.
	if err := o.replay(partialPath, snap.SizeBytes, target); err != nil {
		os.Remove(partialPath)
		return fmt.Errorf("replaying events: %w", err)
	}

	if err := ctx.Err(); err != nil {
		os.Remove(partialPath)
		return err
	}

	finalHash, _, err := hashFile(partialPath)
	if err != nil {
		os.Remove(partialPath)
		return fmt.Errorf("hashing restored corpus: %w", err)
	}
	report.FinalHash = finalHash

	if err := os.Rename(partialPath, finalPath); err != nil {
		return fmt.Errorf("finalizing restored corpus: %w", err)
	}
	report.RestoredPath = finalPath

	if finalHash != manifest.CorpusHash {
		o.logger.Error("RESTORE_HASH_MISMATCH",
			"expected", manifest.CorpusHash, "actual", finalHash, "path", finalPath)
		return &HashMismatchError{
			Kind:     ErrRestoreHashMismatch,
			Path:     finalPath,
			Expected: manifest.CorpusHash,
			Actual:   finalHash,
		}
	}
	return nil
}

// replay appends ledger envelope lines beyond the snapshot prefix whose
// timestamps are at or before target.
func (o *RestoreOrchestrator) replay(path string, prefixLen int64, target time.Time) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening restored corpus: %w", err)
	}
	defer out.Close()

	return o.store.View(func(r io.Reader, size int64) error {
		if size < prefixLen {
			return fmt.Errorf("live store (%d bytes) is shorter than snapshot (%d bytes)", size, prefixLen)
		}
		if _, err := io.CopyN(io.Discard, r, prefixLen); err != nil {
			return fmt.Errorf("skipping snapshot prefix: %w", err)
		}

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var env struct {
				Timestamp time.Time `json:"timestamp"`
			}
			if err := json.Unmarshal(line, &env); err != nil {
				return fmt.Errorf("decoding event envelope: %w", err)
			}
			if env.Timestamp.After(target) {
				break
			}
			if _, err := out.Write(append(line, '\n')); err != nil {
				return fmt.Errorf("appending replayed event: %w", err)
			}
		}
		return scanner.Err()
	})
}

// writeReport persists the restore report as restore-report-<sessionId>.json
// in the workspace root.
func (o *RestoreOrchestrator) writeReport(report *model.RestoreReport) error {
	if err := os.MkdirAll(o.workDir, 0755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	path := filepath.Join(o.workDir, "restore-report-"+report.SessionID+".json")
	if err := writeJSONFile(path, report); err != nil {
		return fmt.Errorf("writing restore report: %w", err)
	}
	return nil
}

// copyFile copies src to dst, creating or truncating dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
