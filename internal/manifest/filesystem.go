package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"ark-go/internal/ark"
	"ark-go/internal/model"
)

var manifestFileRe = regexp.MustCompile(`^manifest-(\d{4}-\d{2}-\d{2})\.json$`)

// FileRepository stores one manifest-<YYYY-MM-DD>.json file per day.
// Files are written once via temp file + rename and never rewritten.
type FileRepository struct {
	dir string
}

var _ ark.ManifestRepository = (*FileRepository)(nil)

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(date string) string {
	return filepath.Join(r.dir, "manifest-"+date+".json")
}

// Latest returns the most recent manifest by date, or nil when none exist.
func (r *FileRepository) Latest() (*model.DailyManifest, error) {
	dates, err := r.dates()
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}
	return r.Load(dates[len(dates)-1])
}

// Load returns the manifest for date, or nil when none exists.
func (r *FileRepository) Load(date string) (*model.DailyManifest, error) {
	data, err := os.ReadFile(r.path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m model.DailyManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest for %s: %w", date, err)
	}
	return &m, nil
}

// LoadAll returns every manifest ordered by date ascending.
func (r *FileRepository) LoadAll() ([]*model.DailyManifest, error) {
	dates, err := r.dates()
	if err != nil {
		return nil, err
	}

	manifests := make([]*model.DailyManifest, 0, len(dates))
	for _, date := range dates {
		m, err := r.Load(date)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("manifest for %s disappeared during load", date)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// Append persists a new manifest. Appending a second manifest for an
// existing date is an error.
func (r *FileRepository) Append(m *model.DailyManifest) error {
	path := r.path(m.Date)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("manifest for %s already exists", m.Date)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(r.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming manifest into place: %w", err)
	}
	return nil
}

// dates lists the available manifest dates ascending.
func (r *FileRepository) dates() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("listing manifest directory: %w", err)
	}

	var dates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := manifestFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		dates = append(dates, m[1])
	}
	sort.Strings(dates)
	return dates, nil
}
