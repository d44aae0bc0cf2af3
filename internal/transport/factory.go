package transport

import (
	"fmt"

	"ark-go/internal/ark"
	"ark-go/internal/config"
)

// NewTransportFromConfig creates an ArchiveTransport based on the archive
// config type. Returns nil (no transport) for type "none" or empty.
func NewTransportFromConfig(cfg config.ArchiveConfig) (ark.ArchiveTransport, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryTransport(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem transport requires root to be set")
		}
		return NewFileSystemTransport(cfg.Root)
	case "s3":
		return NewS3Transport(cfg)
	default:
		return nil, fmt.Errorf("unknown archive transport type: %s", cfg.Type)
	}
}
