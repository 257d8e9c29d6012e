package iospec

import (
	"embed"
	"io/fs"
	"sync"
)

//go:embed data/*.json
var dataFS embed.FS

// Embedded document names.
const (
	DefaultDocument = "io_spec.json"
	AtlasDocument   = "atlas_spec.json"
)

// DataFS returns the embedded documents rooted at the data directory.
func DataFS() fs.FS {
	sub, err := fs.Sub(dataFS, "data")
	if err != nil {
		// data/ is embedded at build time.
		panic(err)
	}
	return sub
}

var (
	defaultOnce sync.Once
	defaultSpec *Spec
	defaultErr  error

	atlasOnce sync.Once
	atlasSpec *Spec
	atlasErr  error
)

// Default returns the embedded derivatives specification, built once.
func Default() (*Spec, error) {
	defaultOnce.Do(func() {
		defaultSpec, defaultErr = LoadFS(DataFS(), DefaultDocument)
	})
	return defaultSpec, defaultErr
}

// Atlas returns the embedded specification for atlas datasets, built once.
func Atlas() (*Spec, error) {
	atlasOnce.Do(func() {
		atlasSpec, atlasErr = LoadFS(DataFS(), AtlasDocument)
	})
	return atlasSpec, atlasErr
}

// Load returns the specification at path, or the embedded default when path
// is empty.
func Load(path string) (*Spec, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}
