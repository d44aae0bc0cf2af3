package store

import (
	"fmt"

	"ark-go/internal/ark"
	"ark-go/internal/config"
)

// NewStoreFromConfig creates a DurableStore implementation based on the
// store config type.
func NewStoreFromConfig(cfg config.StoreConfig) (ark.DurableStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.Name), nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem store requires dir to be set")
		}
		return NewFileStore(cfg.Name, cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
