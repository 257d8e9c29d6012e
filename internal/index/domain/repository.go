package domain

import (
	"context"

	"github.com/zjrosen/smripost/internal/domain/layout"
)

// Repository defines the persistence interface for indexed derivatives.
// Implementations may use SQLite, in-memory storage, or other backends.
type Repository interface {
	// ReplaceAll stores run and replaces every file previously indexed for
	// run.Dataset with files.
	ReplaceAll(ctx context.Context, run Run, files []File) error

	// Find returns the files of dataset whose entities satisfy q, ordered
	// by path. The semantics are those of layout.Query.Matches.
	Find(ctx context.Context, dataset string, q layout.Query) ([]File, error)

	// All returns every file of dataset ordered by path.
	All(ctx context.Context, dataset string) ([]File, error)

	// LatestRun returns the most recent run for dataset.
	// Returns RunNotFoundError if the dataset was never indexed.
	LatestRun(ctx context.Context, dataset string) (*Run, error)

	// Close releases any resources held by the repository.
	Close() error
}
