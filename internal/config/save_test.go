package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func readConfig(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, yaml.Unmarshal(data, &out))
	return out
}

func TestSaveSpecFile_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := SaveSpecFile(path, "/data/io_spec.json")
	require.NoError(t, err)

	cfg := readConfig(t, path)
	require.Equal(t, "/data/io_spec.json", cfg["spec_file"])
}

func TestSaveSpecFile_PreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, SaveSpecFile(path, "custom.json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Derivative index")
	require.Contains(t, string(data), "spec_file: custom.json")
}

func TestSaveAtlasSpaces_ReplacesNestedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, SaveAtlasSpaces(path, []string{"MNI152NLin2009cAsym"}))

	cfg := readConfig(t, path)
	atlases := cfg["atlases"].(map[string]any)
	require.Equal(t, []any{"MNI152NLin2009cAsym"}, atlases["spaces"])
	// Sibling sections are untouched.
	require.Contains(t, cfg, "cache")
}

func TestSaveIgnore_CreatesParentMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: table\n"), 0o600))

	require.NoError(t, SaveIgnore(path, []string{"**/*.svg"}))

	cfg := readConfig(t, path)
	index := cfg["index"].(map[string]any)
	require.Equal(t, []any{"**/*.svg"}, index["ignore"])
	require.Equal(t, map[string]any{"format": "table"}, cfg["output"])
}

func TestSaveIgnore_RejectsBadGlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := SaveIgnore(path, []string{"[broken"})

	require.Error(t, err)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "nothing written on validation failure")
}

func TestSaveDatasetLinks_SortedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SaveDatasetLinks(path, map[string]string{"raw": "/data", "deriv-0": "/data/derivatives/smriprep"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "dataset_links:\n  deriv-0: /data/derivatives/smriprep\n  raw: /data\n", string(data))
}

func TestSaveKey_RejectsNonMappingRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o600))

	err := SaveSpecFile(path, "x.json")

	require.Error(t, err)
	require.Contains(t, err.Error(), "top level must be a mapping")
}
