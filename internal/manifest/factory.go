package manifest

import (
	"fmt"

	"ark-go/internal/ark"
	"ark-go/internal/config"
)

// NewRepositoryFromConfig creates a ManifestRepository based on the
// manifests config type.
func NewRepositoryFromConfig(cfg config.ManifestsConfig) (ark.ManifestRepository, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryRepository(), nil
	case "filesystem", "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem manifest repository requires dir to be set")
		}
		return NewFileRepository(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown manifest repository type: %s", cfg.Type)
	}
}
