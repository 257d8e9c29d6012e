package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	root := NewBuilder(t).
		WithDescription(DatasetType("derivative"), GeneratedBy("sMRIPrep", "0.15.0")).
		WithFiles("sub-01/anat/sub-01_T1w.nii.gz").
		WithFile("README", "hello").
		Build()

	data, err := os.ReadFile(filepath.Join(root, "dataset_description.json"))
	require.NoError(t, err)
	var desc map[string]any
	require.NoError(t, json.Unmarshal(data, &desc))
	require.Equal(t, "derivative", desc["DatasetType"])
	require.Len(t, desc["GeneratedBy"], 1)

	require.FileExists(t, filepath.Join(root, "sub-01", "anat", "sub-01_T1w.nii.gz"))
	readme, err := os.ReadFile(filepath.Join(root, "README"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(readme))
}

func TestBuilder_WithoutDescription(t *testing.T) {
	root := NewBuilder(t).WithFiles("a.txt").Build()
	require.NoFileExists(t, filepath.Join(root, "dataset_description.json"))
}

func TestBuilder_WithAtlas(t *testing.T) {
	root := NewBuilder(t).WithAtlas("Gordon", "fsLR", "MNI152NLin6Asym").Build()

	require.FileExists(t, filepath.Join(root, "atlas-Gordon", "atlas-Gordon_dseg.tsv"))
	require.FileExists(t, filepath.Join(root, "atlas-Gordon", "atlas-Gordon_space-fsLR_dseg.nii.gz"))
	require.FileExists(t, filepath.Join(root, "atlas-Gordon", "atlas-Gordon_space-MNI152NLin6Asym_dseg.nii.gz"))
}

func TestNewTestDB(t *testing.T) {
	db := NewTestDB(t)
	require.NotNil(t, db.FileRepository())
}
