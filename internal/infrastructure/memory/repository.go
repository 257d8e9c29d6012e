// Package memory provides an in-process index repository.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
)

// Repository implements domain.Repository with maps guarded by a mutex.
// Find evaluates layout.Query.Matches directly.
type Repository struct {
	mu    sync.RWMutex
	runs  map[string][]domain.Run
	files map[string][]domain.File
}

// Ensure Repository implements domain.Repository.
var _ domain.Repository = (*Repository)(nil)

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		runs:  make(map[string][]domain.Run),
		files: make(map[string][]domain.File),
	}
}

// ReplaceAll records run and replaces the dataset's files.
func (r *Repository) ReplaceAll(_ context.Context, run domain.Run, files []domain.File) error {
	sorted := make([]domain.File, len(files))
	for i, f := range files {
		sorted[i] = domain.File{Path: f.Path, Matched: f.Matched, Entities: f.Entities.Clone()}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.Dataset] = append(r.runs[run.Dataset], run)
	r.files[run.Dataset] = sorted
	return nil
}

// Find returns the files of dataset matching q, ordered by path.
func (r *Repository) Find(_ context.Context, dataset string, q layout.Query) ([]domain.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.File{}
	for _, f := range r.files[dataset] {
		if q.Matches(f.Entities) {
			out = append(out, f)
		}
	}
	return out, nil
}

// All returns every file of dataset ordered by path.
func (r *Repository) All(_ context.Context, dataset string) ([]domain.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.File{}, r.files[dataset]...), nil
}

// LatestRun returns the last run stored for dataset.
func (r *Repository) LatestRun(_ context.Context, dataset string) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := r.runs[dataset]
	if len(runs) == 0 {
		return nil, &domain.RunNotFoundError{Dataset: dataset}
	}
	latest := runs[len(runs)-1]
	return &latest, nil
}

// Close is a no-op.
func (r *Repository) Close() error { return nil }
