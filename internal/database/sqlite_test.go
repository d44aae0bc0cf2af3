package database

import (
	"testing"
	"time"

	"ark-go/internal/config"
	"ark-go/internal/model"
)

func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()
	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		t.Fatalf("MigrateUp() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	t.Run("create and list", func(t *testing.T) {
		db := newTestDB(t)

		op, err := db.CreateOperation("CreateSnapshot", "label=pre-upgrade")
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		if op.ID == 0 {
			t.Error("CreateOperation() returned zero ID")
		}
		if op.Status != "success" {
			t.Errorf("Status = %q, want success", op.Status)
		}

		ops, err := db.ListOperations(10)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 1 {
			t.Fatalf("len(ops) = %d, want 1", len(ops))
		}
		if ops[0].Operation != "CreateSnapshot" || ops[0].Parameters != "label=pre-upgrade" {
			t.Errorf("ops[0] = %+v", ops[0])
		}
		if ops[0].FinishedAt != nil {
			t.Error("FinishedAt set before FinishOperation")
		}
	})

	t.Run("finish sets status and timestamp", func(t *testing.T) {
		db := newTestDB(t)

		op, err := db.CreateOperation("Restore", "")
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		if err := db.FinishOperation(op.ID, "error"); err != nil {
			t.Fatalf("FinishOperation() error = %v", err)
		}

		ops, err := db.ListOperations(1)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if ops[0].Status != "error" {
			t.Errorf("Status = %q, want error", ops[0].Status)
		}
		if ops[0].FinishedAt == nil {
			t.Error("FinishedAt not set")
		}
	})

	t.Run("list is newest first and honors the limit", func(t *testing.T) {
		db := newTestDB(t)

		for _, name := range []string{"first", "second", "third"} {
			if _, err := db.CreateOperation(name, ""); err != nil {
				t.Fatalf("CreateOperation(%s) error = %v", name, err)
			}
		}

		ops, err := db.ListOperations(2)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 2 {
			t.Fatalf("len(ops) = %d, want 2", len(ops))
		}
		if ops[0].Operation != "third" || ops[1].Operation != "second" {
			t.Errorf("order = %s, %s", ops[0].Operation, ops[1].Operation)
		}
	})
}

func TestSQLiteDatabase_RestoreReports(t *testing.T) {
	db := newTestDB(t)

	report := &model.RestoreReport{
		SessionID:          "sess-1",
		TargetTimestamp:    time.Date(2024, 3, 2, 23, 0, 0, 0, time.UTC),
		SnapshotUsed:       "/snapshots/ledger-20240302T120000Z.snapshot",
		BundleUsed:         "/bundles/ark-2024-03.bundle",
		RestoredPath:       "/restore/restore-sess-1/ledger.log",
		FinalHash:          "aaaa",
		ExpectedHash:       "aaaa",
		VerificationPassed: true,
		RestoreTimestamp:   time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	if err := db.RecordRestoreReport(report); err != nil {
		t.Fatalf("RecordRestoreReport() error = %v", err)
	}

	failed := &model.RestoreReport{
		SessionID:        "sess-2",
		TargetTimestamp:  time.Date(2024, 3, 2, 23, 0, 0, 0, time.UTC),
		FinalHash:        "bbbb",
		ExpectedHash:     "aaaa",
		RestoreTimestamp: time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC),
	}
	if err := db.RecordRestoreReport(failed); err != nil {
		t.Fatalf("RecordRestoreReport() error = %v", err)
	}

	reports, err := db.ListRestoreReports(10)
	if err != nil {
		t.Fatalf("ListRestoreReports() error = %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}

	// Newest first.
	if reports[0].SessionID != "sess-2" || reports[1].SessionID != "sess-1" {
		t.Errorf("order = %s, %s", reports[0].SessionID, reports[1].SessionID)
	}
	if reports[0].VerificationPassed {
		t.Error("failed report round-tripped as passed")
	}
	if !reports[1].VerificationPassed {
		t.Error("passed report round-tripped as failed")
	}
	if !reports[1].TargetTimestamp.Equal(report.TargetTimestamp) {
		t.Errorf("TargetTimestamp = %s, want %s", reports[1].TargetTimestamp, report.TargetTimestamp)
	}
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	t.Run("fails before migration", func(t *testing.T) {
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() error = %v", err)
		}
		defer db.Close()

		if err := db.CheckMigrations(); err == nil {
			t.Error("CheckMigrations() before MigrateUp should fail")
		}
	})

	t.Run("passes after migration", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})
}

func TestNewDatabaseFromConfig(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		db, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"}, "host-1")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() error = %v", err)
		}
		defer db.Close()

		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("sqlite requires data_dir", func(t *testing.T) {
		if _, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "sqlite"}, "host-1"); err == nil {
			t.Error("NewDatabaseFromConfig() without data_dir should fail")
		}
	})

	t.Run("sqlite creates the data dir", func(t *testing.T) {
		dir := t.TempDir() + "/db"
		db, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: dir}, "host-1")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() error = %v", err)
		}
		defer db.Close()

		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "postgres"}, "h"); err == nil {
			t.Error("NewDatabaseFromConfig() with unknown type should fail")
		}
	})
}
