package database

import (
	"fmt"
	"os"
	"path/filepath"

	"ark-go/internal/ark"
	"ark-go/internal/config"
)

// NewDatabaseFromConfig creates a Database implementation based on the
// database config type. In-memory databases are migrated on open; file
// databases are migrated on first open only.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, hostID string) (ark.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, hostID+".db")
		db, err := NewSQLiteDatabase(dbPath)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		return db, nil
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
