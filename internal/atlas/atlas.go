// Package atlas collects parcellation atlases from BIDS-Atlas datasets.
package atlas

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/smripost/internal/config"
	"github.com/zjrosen/smripost/internal/dataset"
	"github.com/zjrosen/smripost/internal/derivatives"
	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
	"github.com/zjrosen/smripost/internal/iospec"
	"github.com/zjrosen/smripost/internal/log"
	"github.com/zjrosen/smripost/internal/tracing"
)

// Image formats.
const (
	FormatNIfTI = "nifti"
	FormatGIfTI = "gifti"
	FormatCIFTI = "cifti"
)

var (
	// ErrDuplicateAtlas is returned when two datasets provide the same atlas.
	ErrDuplicateAtlas = errors.New("atlas found in multiple datasets")
	// ErrNoLabels is returned when an atlas image has no labels TSV.
	ErrNoLabels = errors.New("atlas labels file not found")
	// ErrLabelColumns is returned when a labels TSV lacks index or label.
	ErrLabelColumns = errors.New("atlas labels file missing required column")
	// ErrUnknownFormat is returned for image extensions without a format.
	ErrUnknownFormat = errors.New("unknown atlas image format")
)

// Dataset is a named dataset root.
type Dataset struct {
	Name string
	Path string
}

// Info describes one collected atlas.
type Info struct {
	Dataset  string         `json:"dataset"`
	Image    string         `json:"image"`
	Labels   string         `json:"labels"`
	Metadata map[string]any `json:"metadata"`
	Space    string         `json:"space"`
	Format   string         `json:"format"`
}

// Result holds the atlases found and the requested ones that were not.
type Result struct {
	Atlases map[string]Info `json:"atlases"`
	Missing []string        `json:"missing,omitempty"`
}

// Collector finds atlases in indexed atlas datasets.
type Collector struct {
	spec   *iospec.Spec
	repo   domain.Repository
	spaces []string
	tracer trace.Tracer
}

// Option configures a Collector.
type Option func(*Collector)

// WithSpaces restricts atlas images to spaces.
func WithSpaces(spaces ...string) Option {
	return func(c *Collector) {
		c.spaces = spaces
	}
}

// WithTracer records atlas spans on tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Collector) {
		c.tracer = tracer
	}
}

// NewCollector creates a collector. spec is the atlas specification; repo
// receives the index of every searched dataset.
func NewCollector(spec *iospec.Spec, repo domain.Repository, opts ...Option) *Collector {
	c := &Collector{
		spec:   spec,
		repo:   repo,
		spaces: append([]string(nil), config.DefaultSpaces...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect searches datasets, in order, for each atlas. Datasets whose
// DatasetType is not "atlas" are skipped. filter adds equality constraints
// on other entities.
func (c *Collector) Collect(ctx context.Context, datasets []Dataset, atlases []string, filter layout.Entities) (result *Result, err error) {
	ctx, span := tracing.Start(ctx, c.tracer, tracing.SpanAtlases,
		attribute.StringSlice(tracing.AttrAtlas, atlases))
	defer func() { tracing.Finish(span, err) }()

	result = &Result{Atlases: map[string]Info{}}
	indexer := derivatives.NewIndexer(c.spec, c.repo,
		derivatives.WithDatasetTypes(dataset.TypeAtlas),
		derivatives.WithTracer(c.tracer),
	)

	for _, ds := range datasets {
		desc, err := dataset.ReadDescription(ds.Path)
		if err != nil {
			log.Warn(log.CatAtlas, "Skipping dataset without description", "dataset", ds.Name, "error", err)
			continue
		}
		if desc.DatasetType() != dataset.TypeAtlas {
			log.Debug(log.CatAtlas, "Skipping non-atlas dataset", "dataset", ds.Name, "type", desc.DatasetType())
			continue
		}

		indexed, err := indexer.Index(ctx, ds.Path)
		if err != nil {
			return nil, err
		}
		root := indexed.Run.Dataset
		files, err := c.repo.All(ctx, root)
		if err != nil {
			return nil, err
		}

		for _, name := range atlases {
			images, err := c.repo.Find(ctx, root, c.imageQuery(name, filter))
			if err != nil {
				return nil, err
			}
			images = slices.DeleteFunc(images, func(f domain.File) bool {
				ext := layout.FormatValue(f.Entities["extension"])
				return ext == ".tsv" || ext == ".json"
			})
			if len(images) == 0 {
				continue
			}
			if len(images) > 1 {
				log.Warn(log.CatAtlas, "Multiple atlas images found, using the first",
					"atlas", name, "images", domain.Paths(images))
			}
			if prev, exists := result.Atlases[name]; exists {
				return nil, fmt.Errorf("%w: %q in %s and %s", ErrDuplicateAtlas, name, prev.Dataset, ds.Name)
			}

			info, err := describe(root, ds.Name, images[0], files)
			if err != nil {
				return nil, fmt.Errorf("atlas %q: %w", name, err)
			}
			result.Atlases[name] = info
		}
	}

	for _, name := range atlases {
		if _, ok := result.Atlases[name]; !ok {
			result.Missing = append(result.Missing, name)
			log.Warn(log.CatAtlas, "No atlas images found", "atlas", name, "spaces", c.spaces)
		}
	}
	return result, nil
}

func (c *Collector) imageQuery(name string, filter layout.Entities) layout.Query {
	spaces := make([]any, len(c.spaces))
	for i, s := range c.spaces {
		spaces[i] = s
	}
	constraints := map[string]layout.Constraint{
		"atlas": layout.EqualTo(name),
		"space": layout.OneOfValues(spaces, false),
	}
	for k, v := range filter {
		if k == "atlas" || k == "space" || !filter.Bound(k) {
			continue
		}
		constraints[k] = layout.EqualTo(v)
	}
	return layout.NewQuery("atlases", name, constraints)
}

func describe(root, datasetName string, image domain.File, files []domain.File) (Info, error) {
	ext := layout.FormatValue(image.Entities["extension"])
	format, err := Format(ext)
	if err != nil {
		return Info{}, err
	}

	labels, ok := Nearest(files, image, ".tsv", false)
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNoLabels, image.Path)
	}
	labelsPath := filepath.Join(root, filepath.FromSlash(labels))
	if err := CheckLabels(labelsPath); err != nil {
		return Info{}, err
	}

	info := Info{
		Dataset: datasetName,
		Image:   filepath.Join(root, filepath.FromSlash(image.Path)),
		Labels:  labelsPath,
		Space:   layout.FormatValue(image.Entities["space"]),
		Format:  format,
	}
	if meta, ok := Nearest(files, image, ".json", true); ok {
		info.Metadata, err = readJSON(filepath.Join(root, filepath.FromSlash(meta)))
		if err != nil {
			return Info{}, err
		}
	}
	return info, nil
}

// Format maps an image extension to its format.
func Format(ext string) (string, error) {
	switch ext {
	case ".nii", ".nii.gz":
		return FormatNIfTI, nil
	case ".label.gii":
		return FormatGIfTI, nil
	case ".dlabel.nii":
		return FormatCIFTI, nil
	default:
		return "", fmt.Errorf("%w: extension %q", ErrUnknownFormat, ext)
	}
}

// Nearest finds the sidecar of image with extension ext, searching the
// image's directory and then each parent. Within a directory the candidate
// sharing the most entities with the image wins; candidates contradicting
// an image entity are never chosen. With strict, a candidate must carry
// every entity of the image.
func Nearest(files []domain.File, image domain.File, ext string, strict bool) (string, bool) {
	byDir := map[string][]domain.File{}
	for _, f := range files {
		if f.Path == image.Path || layout.FormatValue(f.Entities["extension"]) != ext {
			continue
		}
		dir := path.Dir(f.Path)
		byDir[dir] = append(byDir[dir], f)
	}

	for dir := path.Dir(image.Path); ; dir = path.Dir(dir) {
		best, bestScore := "", -1
		for _, cand := range byDir[dir] {
			score, ok := sidecarScore(image.Entities, cand.Entities, strict)
			if ok && score > bestScore {
				best, bestScore = cand.Path, score
			}
		}
		if bestScore >= 0 {
			return best, true
		}
		if dir == "." || dir == "/" {
			return "", false
		}
	}
}

func sidecarScore(image, cand layout.Entities, strict bool) (int, bool) {
	score := 0
	for k, v := range image {
		if k == "suffix" || k == "extension" {
			continue
		}
		cv, ok := cand[k]
		if !ok {
			if strict {
				return 0, false
			}
			continue
		}
		if layout.FormatValue(cv) != layout.FormatValue(v) {
			return 0, false
		}
		score++
	}
	for k := range cand {
		if k == "suffix" || k == "extension" {
			continue
		}
		if _, ok := image[k]; !ok {
			return 0, false
		}
	}
	return score, true
}

// CheckLabels verifies that the TSV at path has index and label columns.
func CheckLabels(path string) error {
	f, err := os.Open(path) //nolint:gosec // G304: atlas dataset path supplied by the user
	if err != nil {
		return fmt.Errorf("open labels %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s is empty", ErrLabelColumns, path)
	}
	if err != nil {
		return fmt.Errorf("read labels %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	for _, col := range []string{"label", "index"} {
		if !slices.Contains(header, col) {
			return fmt.Errorf("%w: %q not found in %s", ErrLabelColumns, col, path)
		}
	}
	return nil
}

func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: atlas dataset path supplied by the user
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return out, nil
}
