// Package domain provides the pure domain layer for the derivative index
// with no infrastructure dependencies.
//
// This package follows the same rules as the other domain packages:
//   - Contains only pure Go code with standard library imports (plus the layout domain)
//   - Defines the Run and File entities
//   - Defines the Repository interface for persistence abstraction
//   - Provides domain-specific error types
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/smripost/internal/domain/layout"
)

// ErrRunNotFound is returned when a dataset has never been indexed.
var ErrRunNotFound = errors.New("index run not found")

// RunNotFoundError names the dataset without an index run.
type RunNotFoundError struct {
	Dataset string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("no index run for dataset %s", e.Dataset)
}

func (e *RunNotFoundError) Unwrap() error { return ErrRunNotFound }

// Run is one indexing pass over a dataset.
type Run struct {
	ID             string
	Dataset        string // absolute dataset root
	DatasetType    string // DatasetType from dataset_description.json
	StartedAt      time.Time
	FinishedAt     time.Time
	FileCount      int
	UnmatchedCount int
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// File is one indexed file.
type File struct {
	// Path is relative to the dataset root and slash separated.
	Path string
	// Entities holds the values parsed by the path pattern engine, or the
	// registry's extraction result when no pattern matched.
	Entities layout.Entities
	// Matched is true when a path pattern matched the whole path.
	Matched bool
}

// Paths returns the Path of every file.
func Paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
