package derivatives

import (
	"path/filepath"
	"sort"
	"strings"
)

// URIScheme prefixes every BIDS-URI.
const URIScheme = "bids:"

// BIDSURIs rewrites paths as BIDS-URIs. Each path is expressed relative to
// the nearest dataset in links ("bids:<name>:<rel>") or to outDir
// ("bids::<rel>"). Paths under none of them become absolute paths; values
// that already are BIDS-URIs, and empty values, pass through unchanged.
func BIDSURIs(paths []string, links map[string]string, outDir string) []string {
	type root struct {
		prefix string
		dir    string
	}
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)

	roots := make([]root, 0, len(names)+1)
	for _, name := range names {
		roots = append(roots, root{prefix: URIScheme + name + ":", dir: links[name]})
	}
	roots = append(roots, root{prefix: URIScheme + ":", dir: outDir})

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" || strings.HasPrefix(p, URIScheme) {
			out = append(out, p)
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}

		best, bestDepth := "", -1
		for _, r := range roots {
			if r.dir == "" {
				continue
			}
			rel, ok := relativeTo(abs, r.dir)
			if !ok {
				continue
			}
			depth := strings.Count(rel, "/")
			if bestDepth < 0 || depth < bestDepth {
				best, bestDepth = r.prefix+rel, depth
			}
		}
		if bestDepth < 0 {
			best = abs
		}
		out = append(out, best)
	}
	return out
}

// relativeTo returns path relative to dir with forward slashes, when path
// lies inside dir.
func relativeTo(path, dir string) (string, bool) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
