package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ark-go/internal/ark"
	"ark-go/internal/database/migrations"
	"ark-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the ark.Database operations index using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ ark.Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// MigrateUp brings the schema to the latest version.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// CreateOperation records the start of an operator command.
func (s *SQLiteDatabase) CreateOperation(operation, parameters string) (*model.Operation, error) {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (operation, parameters, started_at, status) VALUES (?, ?, ?, 'success')`,
		operation, parameters, startedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}

	return &model.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
		Status:     "success",
	}, nil
}

// FinishOperation marks an operation finished with the given status.
func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	_, err := s.db.ExecContext(context.Background(),
		`UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().UTC(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

// ListOperations returns the most recent operations, newest first.
func (s *SQLiteDatabase) ListOperations(limit int) ([]*model.Operation, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, operation, parameters, started_at, finished_at, status
		 FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		var op model.Operation
		var finishedAt sql.NullTime
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &finishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

// RecordRestoreReport stores a restore report row.
func (s *SQLiteDatabase) RecordRestoreReport(r *model.RestoreReport) error {
	passed := 0
	if r.VerificationPassed {
		passed = 1
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO restore_reports
		 (session_id, target_timestamp, snapshot_used, bundle_used, restored_path,
		  final_hash, expected_hash, verification_passed, restore_timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.TargetTimestamp, r.SnapshotUsed, r.BundleUsed, r.RestoredPath,
		r.FinalHash, r.ExpectedHash, passed, r.RestoreTimestamp)
	if err != nil {
		return fmt.Errorf("inserting restore report: %w", err)
	}
	return nil
}

// ListRestoreReports returns the most recent restore reports, newest first.
func (s *SQLiteDatabase) ListRestoreReports(limit int) ([]*model.RestoreReport, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT session_id, target_timestamp, snapshot_used, bundle_used, restored_path,
		        final_hash, expected_hash, verification_passed, restore_timestamp
		 FROM restore_reports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing restore reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.RestoreReport
	for rows.Next() {
		var r model.RestoreReport
		var passed int
		if err := rows.Scan(&r.SessionID, &r.TargetTimestamp, &r.SnapshotUsed, &r.BundleUsed,
			&r.RestoredPath, &r.FinalHash, &r.ExpectedHash, &passed, &r.RestoreTimestamp); err != nil {
			return nil, fmt.Errorf("scanning restore report: %w", err)
		}
		r.VerificationPassed = passed != 0
		reports = append(reports, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating restore reports: %w", err)
	}
	return reports, nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}
