// Package derivatives indexes derivative datasets and collects the files a
// postprocessing run consumes.
package derivatives

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/smripost/internal/bidsignore"
	"github.com/zjrosen/smripost/internal/cachemanager"
	"github.com/zjrosen/smripost/internal/config"
	"github.com/zjrosen/smripost/internal/dataset"
	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
	"github.com/zjrosen/smripost/internal/iospec"
	"github.com/zjrosen/smripost/internal/log"
	"github.com/zjrosen/smripost/internal/tracing"
)

type pathKey string

// parsedPath is the cached outcome of parsing one relative path.
type parsedPath struct {
	Entities layout.Entities
	Matched  bool
}

// IndexResult summarizes an Index call.
type IndexResult struct {
	Run       domain.Run
	Unmatched []string
	Cache     cachemanager.Stats
}

// Indexer walks a dataset, parses every file name and stores the result.
type Indexer struct {
	spec          *iospec.Spec
	repo          domain.Repository
	ignore        []string
	useBIDSIgnore bool
	types         []string
	cache         *cachemanager.ReadThroughCache[pathKey, parsedPath, string]
	ttl           time.Duration
	tracer        trace.Tracer
	now           func() time.Time
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithIgnore skips files matching the doublestar globs, relative to the
// dataset root.
func WithIgnore(globs ...string) IndexerOption {
	return func(ix *Indexer) {
		ix.ignore = append(ix.ignore, globs...)
	}
}

// WithBIDSIgnore also honors the dataset's .bidsignore file.
func WithBIDSIgnore() IndexerOption {
	return func(ix *Indexer) {
		ix.useBIDSIgnore = true
	}
}

// WithDatasetTypes sets the DatasetType values whose files are indexed.
// The default is "derivative".
func WithDatasetTypes(types ...string) IndexerOption {
	return func(ix *Indexer) {
		ix.types = types
	}
}

// WithCache configures the parse cache. A disabled cache parses every file.
func WithCache(cfg config.CacheConfig) IndexerOption {
	return func(ix *Indexer) {
		ix.ttl = cfg.TTL
		ix.cache = newParseCache(ix.spec, cfg.TTL, !cfg.Enabled)
	}
}

// WithTracer records index spans on tracer.
func WithTracer(tracer trace.Tracer) IndexerOption {
	return func(ix *Indexer) {
		ix.tracer = tracer
	}
}

// NewIndexer creates an indexer storing into repo.
func NewIndexer(spec *iospec.Spec, repo domain.Repository, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		spec:  spec,
		repo:  repo,
		types: []string{dataset.TypeDerivative},
		ttl:   cachemanager.DefaultExpiration,
		now:   time.Now,
	}
	ix.cache = newParseCache(spec, ix.ttl, false)
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func newParseCache(spec *iospec.Spec, ttl time.Duration, skip bool) *cachemanager.ReadThroughCache[pathKey, parsedPath, string] {
	manager := cachemanager.NewInMemoryCacheManager[pathKey, parsedPath]("path-parse", ttl, cachemanager.DefaultCleanupInterval)
	return cachemanager.NewReadThroughCache[pathKey, parsedPath, string](manager, func(_ context.Context, rel string) (parsedPath, error) {
		return parse(spec, rel)
	}, skip)
}

// parse runs the pattern engine on rel. Paths no pattern accepts keep the
// entities the registry can extract from them.
func parse(spec *iospec.Spec, rel string) (parsedPath, error) {
	if ents, ok := spec.Patterns.Parse(rel); ok {
		return parsedPath{Entities: ents, Matched: true}, nil
	}
	ents, err := spec.Registry.ExtractAll(rel)
	if err != nil {
		return parsedPath{}, fmt.Errorf("extract entities from %s: %w", rel, err)
	}
	return parsedPath{Entities: ents}, nil
}

// Index walks root and replaces its stored files. A dataset whose
// DatasetType is not one of the indexed types is stored as empty.
func (ix *Indexer) Index(ctx context.Context, root string) (result *IndexResult, err error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	ctx, span := tracing.Start(ctx, ix.tracer, tracing.SpanIndex, attribute.String(tracing.AttrDataset, abs))
	defer func() { tracing.Finish(span, err) }()

	desc, err := dataset.ReadDescription(abs)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String(tracing.AttrDatasetType, desc.DatasetType()))

	run := domain.Run{
		ID:          uuid.New().String(),
		Dataset:     abs,
		DatasetType: desc.DatasetType(),
		StartedAt:   ix.now(),
	}
	before := ix.cache.Stats()

	var files []domain.File
	var unmatched []string
	if slices.Contains(ix.types, desc.DatasetType()) {
		files, unmatched, err = ix.walk(ctx, abs)
		if err != nil {
			return nil, err
		}
	} else {
		log.Info(log.CatIndex, "Dataset type not indexed, storing empty index",
			"dataset", abs, "type", desc.DatasetType())
	}

	run.FileCount = len(files)
	run.UnmatchedCount = len(unmatched)
	run.FinishedAt = ix.now()

	storeCtx, storeSpan := tracing.Start(ctx, ix.tracer, tracing.SpanIndexStore, attribute.String(tracing.AttrRunID, run.ID))
	err = ix.repo.ReplaceAll(storeCtx, run, files)
	tracing.Finish(storeSpan, err)
	if err != nil {
		return nil, fmt.Errorf("store index of %s: %w", abs, err)
	}

	after := ix.cache.Stats()
	stats := cachemanager.Stats{Hits: after.Hits - before.Hits, Misses: after.Misses - before.Misses}
	span.SetAttributes(
		attribute.String(tracing.AttrRunID, run.ID),
		attribute.Int(tracing.AttrFileCount, run.FileCount),
		attribute.Int(tracing.AttrUnmatched, run.UnmatchedCount),
		attribute.Int64(tracing.AttrCacheHits, stats.Hits),
		attribute.Int64(tracing.AttrCacheMisses, stats.Misses),
	)
	log.Info(log.CatIndex, "Indexed dataset",
		"dataset", abs, "run", run.ID, "files", run.FileCount, "unmatched", run.UnmatchedCount,
		"duration", run.Duration())

	return &IndexResult{Run: run, Unmatched: unmatched, Cache: stats}, nil
}

func (ix *Indexer) walk(ctx context.Context, root string) (files []domain.File, unmatched []string, err error) {
	ctx, span := tracing.Start(ctx, ix.tracer, tracing.SpanIndexWalk)
	defer func() { tracing.Finish(span, err) }()

	var ignore *bidsignore.Matcher
	if ix.useBIDSIgnore {
		ignore, err = bidsignore.Load(root, ix.ignore...)
	} else {
		ignore, err = bidsignore.New(ix.ignore...)
	}
	if err != nil {
		return nil, nil, err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if strings.HasPrefix(d.Name(), ".") || ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || rel == dataset.DescriptionFile {
			return nil
		}

		parsed, err := ix.cache.GetWithRefresh(ctx, pathKey(rel), rel, ix.ttl)
		if err != nil {
			return err
		}
		files = append(files, domain.File{Path: rel, Entities: parsed.Entities.Clone(), Matched: parsed.Matched})
		if !parsed.Matched {
			unmatched = append(unmatched, rel)
			span.AddEvent(tracing.EventUnmatchedFile, trace.WithAttributes(attribute.String("path", rel)))
			log.Debug(log.CatIndex, "No pattern matched", "path", rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, unmatched, nil
}
