package ark

import "ark-go/internal/model"

// Database is the operations index: a queryable record of every mutating
// operator command and every restore report. It is bookkeeping only; the
// artifacts and manifests on disk remain the source of truth.
type Database interface {
	// CreateOperation records the start of an operator command.
	CreateOperation(operation, parameters string) (*model.Operation, error)

	// FinishOperation marks an operation finished with the given status
	// ("success" or "error").
	FinishOperation(id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// RecordRestoreReport stores a restore report row.
	RecordRestoreReport(r *model.RestoreReport) error

	// ListRestoreReports returns the most recent restore reports, newest first.
	ListRestoreReports(limit int) ([]*model.RestoreReport, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}
