package presentation

import (
	"sort"

	"github.com/zjrosen/smripost/internal/atlas"
	"github.com/zjrosen/smripost/internal/dataset"
	"github.com/zjrosen/smripost/internal/derivatives"
	"github.com/zjrosen/smripost/internal/domain/layout"
)

// ParseResultDTO is the outcome of parsing one path.
type ParseResultDTO struct {
	Path     string          `json:"path"`
	Matched  bool            `json:"matched"`
	Pattern  string          `json:"pattern,omitempty"`
	Entities layout.Entities `json:"entities"`
}

// ParseResults is a list of parse outcomes.
type ParseResults []ParseResultDTO

// Table renders one row per path and entity.
func (r ParseResults) Table() Table {
	t := Table{Headers: []string{"Path", "Matched", "Entity", "Value"}}
	for _, res := range r {
		if len(res.Entities) == 0 {
			t.Rows = append(t.Rows, []string{res.Path, yesNo(res.Matched), "", ""})
			continue
		}
		for _, name := range sortedKeys(res.Entities) {
			t.Rows = append(t.Rows, []string{res.Path, yesNo(res.Matched), name, layout.FormatValue(res.Entities[name])})
		}
	}
	return t
}

// GenerateResultDTO is a generated path.
type GenerateResultDTO struct {
	Path     string          `json:"path"`
	Entities layout.Entities `json:"entities"`
}

// Table renders the path.
func (g GenerateResultDTO) Table() Table {
	return Table{Headers: []string{"Path"}, Rows: [][]string{{g.Path}}}
}

// EntitiesDTO holds entities common to several paths. Values that differ
// between paths are lists.
type EntitiesDTO layout.Entities

// Table renders one row per entity.
func (e EntitiesDTO) Table() Table {
	t := Table{Headers: []string{"Entity", "Value"}}
	for _, name := range sortedKeys(layout.Entities(e)) {
		t.Rows = append(t.Rows, []string{name, formatAny(e[name])})
	}
	return t
}

// EntityDefDTO describes a registered entity.
type EntityDefDTO struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Dtype   string `json:"dtype"`
}

// EntityDefs lists registered entities.
type EntityDefs []EntityDefDTO

// FromRegistry converts the registry's entities in declaration order.
func FromRegistry(reg *layout.Registry) EntityDefs {
	out := make(EntityDefs, 0, reg.Len())
	for _, e := range reg.List() {
		out = append(out, EntityDefDTO{Name: e.Name(), Pattern: e.Pattern(), Dtype: e.Dtype().String()})
	}
	return out
}

// Table renders one row per entity.
func (d EntityDefs) Table() Table {
	t := Table{Headers: []string{"Name", "Dtype", "Pattern"}}
	for _, e := range d {
		t.Rows = append(t.Rows, []string{e.Name, e.Dtype, e.Pattern})
	}
	return t
}

// QueryDTO is a named query with its constraints rendered as text.
type QueryDTO struct {
	Namespace   string            `json:"namespace"`
	Name        string            `json:"name"`
	Constraints map[string]string `json:"constraints"`
}

// Queries lists catalog queries.
type Queries []QueryDTO

// FromCatalog converts the queries of the given namespaces, or of all
// namespaces when none are given.
func FromCatalog(cat *layout.Catalog, namespaces ...string) Queries {
	if len(namespaces) == 0 {
		namespaces = cat.Namespaces()
	}
	out := Queries{}
	for _, ns := range namespaces {
		for _, q := range cat.Queries(ns) {
			out = append(out, FromQuery(q))
		}
	}
	return out
}

// FromQuery converts one query.
func FromQuery(q layout.Query) QueryDTO {
	dto := QueryDTO{Namespace: q.Namespace(), Name: q.Name(), Constraints: map[string]string{}}
	for _, field := range q.Fields() {
		c, _ := q.Constraint(field)
		dto.Constraints[field] = c.String()
	}
	return dto
}

// Table renders one row per query and field.
func (qs Queries) Table() Table {
	t := Table{Headers: []string{"Namespace", "Query", "Field", "Constraint"}}
	for _, q := range qs {
		fields := make([]string, 0, len(q.Constraints))
		for f := range q.Constraints {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			t.Rows = append(t.Rows, []string{q.Namespace, q.Name, f, q.Constraints[f]})
		}
	}
	return t
}

// MatchDTO reports whether entities satisfy a query.
type MatchDTO struct {
	Query    QueryDTO        `json:"query"`
	Entities layout.Entities `json:"entities"`
	Matches  bool            `json:"matches"`
}

// Table renders the verdict.
func (m MatchDTO) Table() Table {
	return Table{
		Headers: []string{"Namespace", "Query", "Matches"},
		Rows:    [][]string{{m.Query.Namespace, m.Query.Name, yesNo(m.Matches)}},
	}
}

// IndexResultDTO summarizes an index run.
type IndexResultDTO struct {
	RunID       string   `json:"run_id"`
	Dataset     string   `json:"dataset"`
	DatasetType string   `json:"dataset_type"`
	Files       int      `json:"files"`
	Unmatched   []string `json:"unmatched"`
	DurationMS  int64    `json:"duration_ms"`
	CacheHits   int64    `json:"cache_hits"`
	CacheMisses int64    `json:"cache_misses"`
}

// FromIndexResult converts an index result.
func FromIndexResult(r *derivatives.IndexResult) IndexResultDTO {
	unmatched := r.Unmatched
	if unmatched == nil {
		unmatched = []string{}
	}
	return IndexResultDTO{
		RunID:       r.Run.ID,
		Dataset:     r.Run.Dataset,
		DatasetType: r.Run.DatasetType,
		Files:       r.Run.FileCount,
		Unmatched:   unmatched,
		DurationMS:  r.Run.Duration().Milliseconds(),
		CacheHits:   r.Cache.Hits,
		CacheMisses: r.Cache.Misses,
	}
}

// Table renders the summary as key/value rows.
func (r IndexResultDTO) Table() Table {
	return keyValues(
		"Run", r.RunID,
		"Dataset", r.Dataset,
		"Type", r.DatasetType,
		"Files", itoa(int64(r.Files)),
		"Unmatched", itoa(int64(len(r.Unmatched))),
		"Duration (ms)", itoa(r.DurationMS),
		"Cache hits", itoa(r.CacheHits),
		"Cache misses", itoa(r.CacheMisses),
	)
}

// CollectionDTO wraps a derivative collection, optionally with BIDS-URIs.
type CollectionDTO struct {
	*derivatives.Collection
	URIs map[string][]string `json:"bids_uris,omitempty"`
}

// Table renders one row per query and file.
func (c CollectionDTO) Table() Table {
	t := Table{Headers: []string{"Query", "File"}}
	for _, key := range c.Keys() {
		paths := c.Files[key]
		if len(paths) == 0 {
			t.Rows = append(t.Rows, []string{key, "-"})
			continue
		}
		for i, p := range paths {
			if uris := c.URIs[key]; i < len(uris) {
				p = uris[i]
			}
			t.Rows = append(t.Rows, []string{key, p})
		}
	}
	for i, p := range c.AnatToSpaces {
		t.Rows = append(t.Rows, []string{"anat2outputspaces_xfm[" + itoa(int64(i)) + "]", p})
	}
	return t
}

// AtlasResultDTO wraps an atlas collection.
type AtlasResultDTO struct {
	*atlas.Result
}

// Table renders one row per atlas.
func (a AtlasResultDTO) Table() Table {
	t := Table{Headers: []string{"Atlas", "Dataset", "Space", "Format", "Image", "Labels"}}
	names := make([]string, 0, len(a.Atlases))
	for name := range a.Atlases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		info := a.Atlases[name]
		t.Rows = append(t.Rows, []string{name, info.Dataset, info.Space, info.Format, info.Image, info.Labels})
	}
	for _, name := range a.Missing {
		t.Rows = append(t.Rows, []string{name, "-", "-", "-", "not found", "-"})
	}
	return t
}

// DescribeResultDTO reports the dataset description and ignore file written.
type DescribeResultDTO struct {
	Path            string `json:"path"`
	Written         bool   `json:"written"`
	PreviousVersion string `json:"previous_version,omitempty"`
	BIDSIgnore      string `json:"bidsignore"`
}

// FromWriteResult converts a description write result.
func FromWriteResult(r *dataset.WriteResult, bidsIgnore string) DescribeResultDTO {
	return DescribeResultDTO{
		Path:            r.Path,
		Written:         r.Written,
		PreviousVersion: r.PreviousVersion,
		BIDSIgnore:      bidsIgnore,
	}
}

// Table renders the result as key/value rows.
func (d DescribeResultDTO) Table() Table {
	return keyValues(
		"Description", d.Path,
		"Written", yesNo(d.Written),
		"Previous version", d.PreviousVersion,
		".bidsignore", d.BIDSIgnore,
	)
}
