package seal

import (
	"fmt"

	"ark-go/internal/ark"
	"ark-go/internal/config"
)

// NewSealerFromConfig creates a Sealer based on the configuration type.
// Returns nil (no sealing) for type "none" or empty.
func NewSealerFromConfig(cfg config.SealConfig) (ark.Sealer, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "age":
		return NewAgeSealer(cfg), nil
	case "test":
		return NewTestSealer(), nil
	default:
		return nil, fmt.Errorf("unknown seal type: %q", cfg.Type)
	}
}
