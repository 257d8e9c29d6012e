// Package bidsignore reads, matches and writes .bidsignore files.
//
// Patterns follow the gitignore flavour used by the BIDS validator: a pattern
// without a slash matches at any depth, a trailing slash matches a directory
// and everything under it, and a leading slash anchors at the dataset root.
// Matching is done with doublestar globs.
package bidsignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/zjrosen/smripost/internal/log"
)

// FileName is the name of the ignore file at a dataset root.
const FileName = ".bidsignore"

// Defaults are written to every derivatives dataset.
var Defaults = []string{
	"*.html",
	"logs/",
	"figures/",
	"*_xfm.*",
	"*.surf.gii",
	"*_boldref.nii.gz",
	"*_bold.func.gii",
	"*_mixing.tsv",
	"*_timeseries.tsv",
}

// Matcher matches dataset-relative paths against ignore patterns.
type Matcher struct {
	raw   []string
	globs []string
}

// New compiles patterns.
func New(patterns ...string) (*Matcher, error) {
	m := &Matcher{}
	if err := m.Add(patterns...); err != nil {
		return nil, err
	}
	return m, nil
}

// Add compiles more patterns. Blank lines and # comments are skipped.
func (m *Matcher) Add(patterns ...string) error {
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		globs := toGlobs(p)
		for _, g := range globs {
			if !doublestar.ValidatePattern(g) {
				return fmt.Errorf("invalid ignore pattern %q", p)
			}
		}
		m.raw = append(m.raw, p)
		m.globs = append(m.globs, globs...)
	}
	return nil
}

func toGlobs(p string) []string {
	dirOnly := strings.HasSuffix(p, "/")
	p = strings.TrimSuffix(p, "/")
	anchored := strings.HasPrefix(p, "/")
	p = strings.TrimPrefix(p, "/")

	if !anchored && !strings.Contains(p, "/") {
		p = "**/" + p
	}
	if dirOnly {
		return []string{p + "/**"}
	}
	return []string{p, p + "/**"}
}

// Patterns returns the source patterns in the order they were added.
func (m *Matcher) Patterns() []string {
	return m.raw
}

// Match reports whether rel (relative to the dataset root) is ignored.
func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// Parse reads patterns from r.
func Parse(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Load returns a Matcher for root/.bidsignore plus extra patterns. A missing
// file is not an error.
func Load(root string, extra ...string) (*Matcher, error) {
	m, err := New(extra...)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(root, FileName)
	f, err := os.Open(path) //nolint:gosec // G304: dataset root is user input
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	patterns, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := m.Add(patterns...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug(log.CatDataset, "Loaded .bidsignore", "path", path, "patterns", len(patterns))
	return m, nil
}

// Write writes the default patterns to dir/.bidsignore, replacing any
// existing file.
func Write(dir string) error {
	path := filepath.Join(dir, FileName)
	content := strings.Join(Defaults, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil { //nolint:gosec // G306: .bidsignore is world readable like the rest of the dataset
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info(log.CatDataset, "Wrote .bidsignore", "path", path)
	return nil
}
