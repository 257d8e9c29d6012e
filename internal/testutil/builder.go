// Package testutil builds dataset trees and index databases for tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// Builder accumulates files of a dataset and writes them under a root.
type Builder struct {
	t           *testing.T
	root        string
	description map[string]any
	files       map[string]string
}

// NewBuilder creates a builder for a dataset under a fresh temp directory.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return NewBuilderAt(t, t.TempDir())
}

// NewBuilderAt creates a builder for a dataset rooted at root.
func NewBuilderAt(t *testing.T, root string) *Builder {
	t.Helper()
	return &Builder{t: t, root: root, files: make(map[string]string)}
}

// WithDescription sets dataset_description.json.
func (b *Builder) WithDescription(opts ...DescriptionOption) *Builder {
	desc := map[string]any{"Name": "test", "BIDSVersion": "1.9.0"}
	for _, opt := range opts {
		opt(desc)
	}
	b.description = desc
	return b
}

// WithFiles adds empty files at slash-separated paths relative to the root.
func (b *Builder) WithFiles(paths ...string) *Builder {
	for _, p := range paths {
		b.files[p] = ""
	}
	return b
}

// WithFile adds a file with content.
func (b *Builder) WithFile(path, content string) *Builder {
	b.files[path] = content
	return b
}

// Build writes the dataset and returns its root.
func (b *Builder) Build() string {
	b.t.Helper()
	require.NoError(b.t, os.MkdirAll(b.root, 0o755))

	if b.description != nil {
		data, err := json.MarshalIndent(b.description, "", "  ")
		require.NoError(b.t, err)
		b.write("dataset_description.json", string(data))
	}

	paths := make([]string, 0, len(b.files))
	for p := range b.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		b.write(p, b.files[p])
	}
	return b.root
}

func (b *Builder) write(rel, content string) {
	b.t.Helper()
	path := filepath.Join(b.root, filepath.FromSlash(rel))
	require.NoError(b.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(b.t, os.WriteFile(path, []byte(content), 0o644))
}
