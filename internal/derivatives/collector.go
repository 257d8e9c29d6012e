package derivatives

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/smripost/internal/dataset"
	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
	"github.com/zjrosen/smripost/internal/iospec"
	"github.com/zjrosen/smripost/internal/log"
	"github.com/zjrosen/smripost/internal/tracing"
)

// AnatPrefix marks queries whose matches may live at subject or session
// level; they are not narrowed by the caller's other entities.
const AnatPrefix = "anat"

// SpaceTransformQuery is the transform whose "to" field is swapped for each
// requested output space.
const SpaceTransformQuery = "anat2mni152nlin6asym"

var (
	// ErrMultipleMatches is returned when a query that must be unique
	// matches more than one file.
	ErrMultipleMatches = errors.New("multiple files match query")
	// ErrMissingSpaces is returned when transforms to requested output
	// spaces are absent.
	ErrMissingSpaces = errors.New("transforms to requested spaces not found")
	// ErrNotIndexed is returned when a dataset has no stored index.
	ErrNotIndexed = errors.New("dataset not indexed")
)

// MultipleMatchError names the query and the files it matched.
type MultipleMatchError struct {
	Key   string
	Paths []string
}

func (e *MultipleMatchError) Error() string {
	return fmt.Sprintf("multiple files found for %s: %s", e.Key, strings.Join(e.Paths, ", "))
}

func (e *MultipleMatchError) Unwrap() error { return ErrMultipleMatches }

// MissingSpacesError lists requested spaces without a transform.
type MissingSpacesError struct {
	Spaces []string
}

func (e *MissingSpacesError) Error() string {
	return "transforms to the following requested spaces not found: " + strings.Join(e.Spaces, ", ")
}

func (e *MissingSpacesError) Unwrap() error { return ErrMissingSpaces }

// CollectOptions tunes Collect.
type CollectOptions struct {
	// AllowMultiple returns every match of a query instead of failing.
	AllowMultiple bool
	// Spaces are output spaces that need an anatomical-to-space transform.
	Spaces []string
}

// Collection maps each query name to the absolute paths it selected. A nil
// entry means nothing matched.
type Collection struct {
	Dataset      string              `json:"dataset"`
	Files        map[string][]string `json:"files"`
	AnatToSpaces []string            `json:"anat2outputspaces_xfm,omitempty"`
}

// Keys returns the query names in sorted order.
func (c *Collection) Keys() []string {
	keys := make([]string, 0, len(c.Files))
	for k := range c.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// First returns the first path selected for key, or "".
func (c *Collection) First(key string) string {
	if paths := c.Files[key]; len(paths) > 0 {
		return paths[0]
	}
	return ""
}

// Collector answers the catalog's queries against an indexed dataset.
type Collector struct {
	spec   *iospec.Spec
	repo   domain.Repository
	tracer trace.Tracer
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithCollectTracer records collect spans on tracer.
func WithCollectTracer(tracer trace.Tracer) CollectorOption {
	return func(c *Collector) {
		c.tracer = tracer
	}
}

// NewCollector creates a collector over repo.
func NewCollector(spec *iospec.Spec, repo domain.Repository, opts ...CollectorOption) *Collector {
	c := &Collector{spec: spec, repo: repo}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect resolves every derivatives and transforms query for entities.
// Queries named anat* are searched for the subject with the given session
// or without one; the rest are narrowed by every bound entity.
func (c *Collector) Collect(ctx context.Context, root string, entities layout.Entities, opts CollectOptions) (coll *Collection, err error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	ctx, span := tracing.Start(ctx, c.tracer, tracing.SpanCollect,
		attribute.String(tracing.AttrDataset, abs),
		attribute.String(tracing.AttrSubject, layout.FormatValue(entities["subject"])),
		attribute.String(tracing.AttrSession, layout.FormatValue(entities["session"])),
	)
	defer func() { tracing.Finish(span, err) }()

	coll = &Collection{Dataset: abs, Files: map[string][]string{}}

	desc, err := dataset.ReadDescription(abs)
	if err != nil {
		return nil, err
	}
	if desc.DatasetType() != dataset.TypeDerivative {
		log.Info(log.CatCollect, "Not a derivative dataset, nothing to collect", "dataset", abs)
		return coll, nil
	}

	if _, err := c.repo.LatestRun(ctx, abs); err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotIndexed, abs)
		}
		return nil, err
	}

	for _, ns := range []string{layout.NamespaceDerivatives, layout.NamespaceTransforms} {
		for _, q := range c.spec.Catalog.Queries(ns) {
			paths, err := c.resolve(ctx, abs, effectiveQuery(q, entities), opts.AllowMultiple)
			if err != nil {
				return nil, err
			}
			coll.Files[q.Name()] = paths
		}
	}

	if len(opts.Spaces) > 0 {
		xfms, err := c.spaceTransforms(ctx, abs, entities, opts.Spaces)
		if err != nil {
			return nil, err
		}
		coll.AnatToSpaces = xfms
	}

	log.Info(log.CatCollect, "Collected derivatives", "dataset", abs, "queries", len(coll.Files))
	return coll, nil
}

// effectiveQuery layers the catalog query over the caller's entities.
func effectiveQuery(q layout.Query, entities layout.Entities) layout.Query {
	if !strings.HasPrefix(q.Name(), AnatPrefix) {
		return q.Underlay(entities)
	}
	base := layout.Entities{}
	if entities.Bound("subject") {
		base["subject"] = entities["subject"]
	}
	out := q.Underlay(base)
	if _, constrained := q.Constraint("session"); constrained {
		return out
	}
	var sessions []any
	if entities.Bound("session") {
		sessions = []any{entities["session"]}
	}
	return out.With("session", layout.OneOfValues(sessions, true))
}

// resolve applies the selection policy: no match gives nil, several matches
// of an anat* query give the first, several of any other query fail unless
// allowMultiple is set.
func (c *Collector) resolve(ctx context.Context, root string, q layout.Query, allowMultiple bool) (paths []string, err error) {
	ctx, span := tracing.Start(ctx, c.tracer, tracing.SpanCollectQuery,
		attribute.String(tracing.AttrQueryNS, q.Namespace()),
		attribute.String(tracing.AttrQueryName, q.Name()),
	)
	defer func() { tracing.Finish(span, err) }()

	files, err := c.repo.Find(ctx, root, q)
	if err != nil {
		return nil, fmt.Errorf("query %s/%s: %w", q.Namespace(), q.Name(), err)
	}
	span.SetAttributes(attribute.Int(tracing.AttrMatchCount, len(files)))

	if len(files) == 0 {
		return nil, nil
	}
	abs := make([]string, len(files))
	for i, f := range files {
		abs[i] = filepath.Join(root, filepath.FromSlash(f.Path))
	}
	if len(abs) == 1 || allowMultiple {
		return abs, nil
	}

	span.AddEvent(tracing.EventMultipleMatch, trace.WithAttributes(attribute.Int(tracing.AttrMatchCount, len(abs))))
	if strings.HasPrefix(q.Name(), AnatPrefix) {
		log.Debug(log.CatCollect, "Several anatomical matches, using the first", "query", q.Name(), "first", abs[0])
		return abs[:1], nil
	}
	return nil, &MultipleMatchError{Key: q.Name(), Paths: abs}
}

// spaceTransforms finds one anatomical-to-space transform per space.
func (c *Collector) spaceTransforms(ctx context.Context, root string, entities layout.Entities, spaces []string) ([]string, error) {
	base, err := c.spec.Catalog.Resolve(layout.NamespaceTransforms, SpaceTransformQuery)
	if err != nil {
		return nil, err
	}
	base = effectiveQuery(base, entities)

	xfms := make([]string, 0, len(spaces))
	var missing []string
	for _, space := range spaces {
		files, err := c.repo.Find(ctx, root, base.With("to", layout.EqualTo(space)))
		if err != nil {
			return nil, fmt.Errorf("query transform to %s: %w", space, err)
		}
		if len(files) == 0 {
			missing = append(missing, space)
			xfms = append(xfms, "")
			continue
		}
		xfms = append(xfms, filepath.Join(root, filepath.FromSlash(files[0].Path)))
	}
	if len(missing) > 0 {
		return nil, &MissingSpacesError{Spaces: missing}
	}
	return xfms, nil
}
