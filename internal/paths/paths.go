// Package paths resolves dataset locations from user input.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DescriptionFile marks the root of a BIDS dataset.
const DescriptionFile = "dataset_description.json"

// ErrNoDatasetRoot is returned when no enclosing dataset root exists.
var ErrNoDatasetRoot = errors.New("no dataset root found")

// DatasetRoot resolves path to the absolute root of the dataset containing
// it. path may be the root itself, a directory below it or a file in it.
//
// Input normalization:
//   - "/data/deriv"                      -> "/data/deriv"
//   - "/data/deriv/sub-01/anat"          -> "/data/deriv"
//   - "/data/deriv/sub-01/anat/x.nii.gz" -> "/data/deriv"
//   - ""                                 -> the root enclosing "."
//
// The nearest enclosing root wins, so a dataset nested inside another (a
// derivatives/ folder in a raw dataset) resolves to itself.
func DatasetRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	dir := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, DescriptionFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrNoDatasetRoot, abs)
		}
		dir = parent
	}
}
