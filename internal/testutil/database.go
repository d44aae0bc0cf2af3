package testutil

import (
	"testing"

	"ark-go/internal/ark"
	"ark-go/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite operations index with the
// schema migrated up. The database is automatically closed when the test
// completes.
func NewTestDatabase(t *testing.T) ark.Database {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.MigrateUp(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
