package manifest

import (
	"fmt"
	"sort"
	"sync"

	"ark-go/internal/ark"
	"ark-go/internal/model"
)

// MemoryRepository is an in-memory ManifestRepository for tests.
// Loads return copies, so callers mutating a returned manifest (as tamper
// tests do) never alter the stored record by accident; Corrupt mutates the
// stored record itself.
type MemoryRepository struct {
	mu        sync.RWMutex
	manifests map[string]*model.DailyManifest
}

var _ ark.ManifestRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		manifests: make(map[string]*model.DailyManifest),
	}
}

func (r *MemoryRepository) Latest() (*model.DailyManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.DailyManifest
	for _, m := range r.manifests {
		if latest == nil || m.Date > latest.Date {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (r *MemoryRepository) Load(date string) (*model.DailyManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.manifests[date]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (r *MemoryRepository) LoadAll() ([]*model.DailyManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.DailyManifest, 0, len(r.manifests))
	for _, m := range r.manifests {
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *MemoryRepository) Append(m *model.DailyManifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.manifests[m.Date]; exists {
		return fmt.Errorf("manifest for %s already exists", m.Date)
	}
	copied := *m
	r.manifests[m.Date] = &copied
	return nil
}

// Corrupt applies fn to the stored manifest for date, bypassing the
// write-once rule. Test helper for tamper scenarios.
func (r *MemoryRepository) Corrupt(date string, fn func(m *model.DailyManifest)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.manifests[date]
	if !ok {
		return fmt.Errorf("no manifest for %s", date)
	}
	fn(m)
	return nil
}
