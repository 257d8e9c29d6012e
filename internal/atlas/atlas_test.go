package atlas

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
	"github.com/zjrosen/smripost/internal/infrastructure/memory"
	"github.com/zjrosen/smripost/internal/iospec"
	"github.com/zjrosen/smripost/internal/testutil"
)

func newCollector(t *testing.T, opts ...Option) *Collector {
	t.Helper()
	spec, err := iospec.Atlas()
	require.NoError(t, err)
	return NewCollector(spec, memory.NewRepository(), opts...)
}

func TestCollect(t *testing.T) {
	atlases := testutil.NewBuilder(t).
		WithAtlas("Gordon", "fsLR", "MNI152NLin6Asym").
		WithAtlas("Schaefer100", "fsaverage").
		WithFile("atlas-Gordon/atlas-Gordon_space-MNI152NLin6Asym_dseg.json", `{"Name": "Gordon 333"}`).
		Build()
	deriv := testutil.NewBuilder(t).WithSMRIPrepOutputs("01").Build()

	result, err := newCollector(t).Collect(context.Background(),
		[]Dataset{{Name: "smriprep", Path: deriv}, {Name: "atlases", Path: atlases}},
		[]string{"Gordon", "Schaefer100", "Glasser"}, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"Glasser"}, result.Missing)
	require.Len(t, result.Atlases, 2)

	gordon := result.Atlases["Gordon"]
	require.Equal(t, "atlases", gordon.Dataset)
	require.Equal(t, filepath.Join(atlases, "atlas-Gordon", "atlas-Gordon_space-MNI152NLin6Asym_dseg.nii.gz"), gordon.Image,
		"several images: the first by path is used")
	require.Equal(t, filepath.Join(atlases, "atlas-Gordon", "atlas-Gordon_dseg.tsv"), gordon.Labels)
	require.Equal(t, "MNI152NLin6Asym", gordon.Space)
	require.Equal(t, FormatNIfTI, gordon.Format)
	require.Equal(t, map[string]any{"Name": "Gordon 333"}, gordon.Metadata)

	schaefer := result.Atlases["Schaefer100"]
	require.Equal(t, "fsaverage", schaefer.Space)
	require.Nil(t, schaefer.Metadata, "metadata is optional")
}

func TestCollect_Spaces(t *testing.T) {
	root := testutil.NewBuilder(t).
		WithAtlas("Gordon", "fsLR", "MNI152NLin6Asym", "MNI152NLin2009cAsym").
		Build()

	result, err := newCollector(t, WithSpaces("fsLR")).Collect(context.Background(),
		[]Dataset{{Name: "atlases", Path: root}}, []string{"Gordon"}, nil)
	require.NoError(t, err)
	require.Equal(t, "fsLR", result.Atlases["Gordon"].Space)

	result, err = newCollector(t, WithSpaces("MNI152NLin2009cAsym")).Collect(context.Background(),
		[]Dataset{{Name: "atlases", Path: root}}, []string{"Gordon"}, nil)
	require.NoError(t, err)
	require.Equal(t, "MNI152NLin2009cAsym", result.Atlases["Gordon"].Space)
}

func TestCollect_Filter(t *testing.T) {
	root := testutil.NewBuilder(t).
		WithAtlas("Gordon").
		WithFiles(
			"atlas-Gordon/atlas-Gordon_space-MNI152NLin6Asym_res-1_dseg.nii.gz",
			"atlas-Gordon/atlas-Gordon_space-MNI152NLin6Asym_res-2_dseg.nii.gz",
		).
		Build()

	result, err := newCollector(t).Collect(context.Background(),
		[]Dataset{{Name: "atlases", Path: root}}, []string{"Gordon"}, layout.Entities{"res": "2"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "atlas-Gordon", "atlas-Gordon_space-MNI152NLin6Asym_res-2_dseg.nii.gz"),
		result.Atlases["Gordon"].Image)
}

func TestCollect_DuplicateAtlas(t *testing.T) {
	a := testutil.NewBuilder(t).WithAtlas("Gordon", "fsLR").Build()
	b := testutil.NewBuilder(t).WithAtlas("Gordon", "fsLR").Build()

	_, err := newCollector(t).Collect(context.Background(),
		[]Dataset{{Name: "a", Path: a}, {Name: "b", Path: b}}, []string{"Gordon"}, nil)
	require.ErrorIs(t, err, ErrDuplicateAtlas)
}

func TestCollect_LabelErrors(t *testing.T) {
	tests := []struct {
		name   string
		build  func(b *testutil.Builder) *testutil.Builder
		target error
	}{
		{
			name: "no labels file",
			build: func(b *testutil.Builder) *testutil.Builder {
				return b.WithDescription(testutil.DatasetType("atlas")).
					WithFiles("atlas-Gordon/atlas-Gordon_space-fsLR_dseg.nii.gz")
			},
			target: ErrNoLabels,
		},
		{
			name: "missing index column",
			build: func(b *testutil.Builder) *testutil.Builder {
				return b.WithDescription(testutil.DatasetType("atlas")).
					WithFiles("atlas-Gordon/atlas-Gordon_space-fsLR_dseg.nii.gz").
					WithFile("atlas-Gordon/atlas-Gordon_dseg.tsv", "label\tnetwork\nregion1\tvis\n")
			},
			target: ErrLabelColumns,
		},
		{
			name: "unknown format",
			build: func(b *testutil.Builder) *testutil.Builder {
				return b.WithDescription(testutil.DatasetType("atlas")).
					WithFiles("atlas-Gordon/atlas-Gordon_space-fsaverage_dseg.annot").
					WithFile("atlas-Gordon/atlas-Gordon_dseg.tsv", "index\tlabel\n1\tregion1\n")
			},
			target: ErrUnknownFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := tt.build(testutil.NewBuilder(t)).Build()
			_, err := newCollector(t).Collect(context.Background(),
				[]Dataset{{Name: "atlases", Path: root}}, []string{"Gordon"}, nil)
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestFormat(t *testing.T) {
	for ext, want := range map[string]string{
		".nii":        FormatNIfTI,
		".nii.gz":     FormatNIfTI,
		".label.gii":  FormatGIfTI,
		".dlabel.nii": FormatCIFTI,
	} {
		got, err := Format(ext)
		require.NoError(t, err)
		require.Equal(t, want, got, ext)
	}

	_, err := Format(".mgz")
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func file(path string, ents layout.Entities) domain.File {
	return domain.File{Path: path, Entities: ents}
}

func TestNearest(t *testing.T) {
	image := file("atlas-A/atlas-A_space-fsLR_dseg.dlabel.nii",
		layout.Entities{"atlas": "A", "space": "fsLR", "suffix": "dseg", "extension": ".dlabel.nii"})

	files := []domain.File{
		image,
		file("atlas-A_dseg.tsv", layout.Entities{"atlas": "A", "suffix": "dseg", "extension": ".tsv"}),
		file("atlas-A/atlas-B_dseg.tsv", layout.Entities{"atlas": "B", "suffix": "dseg", "extension": ".tsv"}),
		file("atlas-A/atlas-A_dseg.json", layout.Entities{"atlas": "A", "suffix": "dseg", "extension": ".json"}),
	}

	got, ok := Nearest(files, image, ".tsv", false)
	require.True(t, ok)
	require.Equal(t, "atlas-A_dseg.tsv", got, "conflicting candidates are skipped and parents searched")

	_, ok = Nearest(files, image, ".json", true)
	require.False(t, ok, "strict search needs every image entity")

	got, ok = Nearest(files, image, ".json", false)
	require.True(t, ok)
	require.Equal(t, "atlas-A/atlas-A_dseg.json", got)
}

func TestNearest_PrefersMoreSharedEntities(t *testing.T) {
	image := file("atlas-A/atlas-A_space-fsLR_dseg.dlabel.nii",
		layout.Entities{"atlas": "A", "space": "fsLR", "suffix": "dseg", "extension": ".dlabel.nii"})
	files := []domain.File{
		file("atlas-A/atlas-A_dseg.tsv", layout.Entities{"atlas": "A", "suffix": "dseg", "extension": ".tsv"}),
		file("atlas-A/atlas-A_space-fsLR_dseg.tsv", layout.Entities{"atlas": "A", "space": "fsLR", "suffix": "dseg", "extension": ".tsv"}),
	}

	got, ok := Nearest(files, image, ".tsv", false)
	require.True(t, ok)
	require.Equal(t, "atlas-A/atlas-A_space-fsLR_dseg.tsv", got)
}
