package presentation

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/smripost/internal/atlas"
	"github.com/zjrosen/smripost/internal/cachemanager"
	"github.com/zjrosen/smripost/internal/derivatives"
	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
)

func TestFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(&buf, "").Format(ParseResults{{
		Path:     "sub-01/anat/sub-01_T1w.nii.gz",
		Matched:  true,
		Entities: layout.Entities{"subject": "01", "run": 2},
	}})
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, true, got[0]["matched"])
	require.Equal(t, map[string]any{"subject": "01", "run": float64(2)}, got[0]["entities"])
}

func TestFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(&buf, FormatTable).Format(ParseResults{
		{Path: "a.nii.gz", Matched: true, Entities: layout.Entities{"suffix": "T1w", "subject": "01"}},
		{Path: "README", Entities: layout.Entities{}},
	})
	require.NoError(t, err)

	out := buf.String()
	for _, want := range []string{"Path", "Entity", "a.nii.gz", "subject", "01", "T1w", "README", "no"} {
		require.Contains(t, out, want)
	}
}

func TestFormatter_UnknownFormat(t *testing.T) {
	err := NewFormatter(&bytes.Buffer{}, "xml").Format(EntitiesDTO{})
	require.Error(t, err)
}

func TestParseResults_Table(t *testing.T) {
	tbl := ParseResults{
		{Path: "p", Matched: true, Entities: layout.Entities{"suffix": "T1w", "run": 1}},
	}.Table()

	require.Equal(t, [][]string{
		{"p", "yes", "run", "1"},
		{"p", "yes", "suffix", "T1w"},
	}, tbl.Rows)
}

func TestEntitiesDTO_Table(t *testing.T) {
	tbl := EntitiesDTO{"run": []any{1, 2}, "subject": "01"}.Table()
	require.Equal(t, [][]string{{"run", "[1, 2]"}, {"subject", "01"}}, tbl.Rows)
}

func TestFromCatalog(t *testing.T) {
	cat := layout.NewCatalog()
	require.NoError(t, cat.Add(layout.NewQuery(layout.NamespaceDerivatives, "t1w", map[string]layout.Constraint{
		"desc": layout.MustBeAbsent(),
		"part": layout.OneOfValues([]any{"mag"}, true),
	})))
	require.NoError(t, cat.Add(layout.NewQuery(layout.NamespaceTransforms, "xfm", map[string]layout.Constraint{
		"suffix": layout.EqualTo("xfm"),
	})))

	all := FromCatalog(cat)
	require.Len(t, all, 2)
	require.Equal(t, map[string]string{"desc": "null", "part": "[mag, null]"}, all[0].Constraints)

	only := FromCatalog(cat, layout.NamespaceTransforms)
	require.Len(t, only, 1)
	require.Equal(t, "xfm", only[0].Name)
	require.Equal(t, [][]string{{"transforms", "xfm", "suffix", "xfm"}}, only.Table().Rows)
}

func TestFromIndexResult(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	dto := FromIndexResult(&derivatives.IndexResult{
		Run: domain.Run{
			ID: "run-1", Dataset: "/data/deriv", DatasetType: "derivative",
			StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond), FileCount: 3,
		},
		Cache: cachemanager.Stats{Hits: 2, Misses: 1},
	})

	require.Equal(t, int64(1500), dto.DurationMS)
	require.Equal(t, []string{}, dto.Unmatched)
	require.Contains(t, dto.Table().Rows, []string{"Cache hits", "2"})
}

func TestCollectionDTO_Table(t *testing.T) {
	dto := CollectionDTO{
		Collection: &derivatives.Collection{
			Dataset: "/d",
			Files: map[string][]string{
				"t1w_preproc": {"/d/sub-01/anat/sub-01_desc-preproc_T1w.nii.gz"},
				"t2w_preproc": nil,
			},
		},
		URIs: map[string][]string{"t1w_preproc": {"bids:smriprep:sub-01/anat/sub-01_desc-preproc_T1w.nii.gz"}},
	}

	require.Equal(t, [][]string{
		{"t1w_preproc", "bids:smriprep:sub-01/anat/sub-01_desc-preproc_T1w.nii.gz"},
		{"t2w_preproc", "-"},
	}, dto.Table().Rows)

	data, err := json.Marshal(dto)
	require.NoError(t, err)
	require.Contains(t, string(data), `"files":`)
	require.Contains(t, string(data), `"t2w_preproc":null`)
	require.Contains(t, string(data), `"bids_uris":`)
}

func TestAtlasResultDTO_Table(t *testing.T) {
	dto := AtlasResultDTO{Result: &atlas.Result{
		Atlases: map[string]atlas.Info{
			"Gordon": {Dataset: "atlases", Space: "fsLR", Format: atlas.FormatCIFTI, Image: "/a/g.dlabel.nii", Labels: "/a/g.tsv"},
		},
		Missing: []string{"Glasser"},
	}}

	require.Equal(t, [][]string{
		{"Gordon", "atlases", "fsLR", "cifti", "/a/g.dlabel.nii", "/a/g.tsv"},
		{"Glasser", "-", "-", "-", "not found", "-"},
	}, dto.Table().Rows)
}
