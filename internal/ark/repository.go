package ark

import "ark-go/internal/model"

// ManifestRepository persists daily manifests. There is no global "latest
// manifest" state anywhere; whoever needs the chain head asks the
// repository. Implementations live in internal/manifest.
type ManifestRepository interface {
	// Latest returns the most recent manifest by date, or nil if the chain
	// is empty.
	Latest() (*model.DailyManifest, error)

	// Load returns the manifest for the given YYYY-MM-DD date, or nil if
	// none exists.
	Load(date string) (*model.DailyManifest, error)

	// LoadAll returns every manifest ordered by date ascending.
	LoadAll() ([]*model.DailyManifest, error)

	// Append persists a new manifest. Manifests are write-once: appending a
	// second manifest for an existing date is an error, and repositories
	// never mutate a stored manifest.
	Append(m *model.DailyManifest) error
}
