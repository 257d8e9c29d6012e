package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Empty(t, cfg.SpecFile, "embedded spec is used by default")
	require.True(t, cfg.Cache.Enabled)
	require.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	require.Equal(t, 300*time.Millisecond, cfg.Index.WatchDebounce)
	require.Equal(t, []string{"fsaverage", "fsLR", "MNI152NLin6Asym"}, cfg.Atlases.Spaces)
	require.False(t, cfg.Collect.AllowMultiple)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "file", cfg.Tracing.Exporter)
	require.Equal(t, 1.0, cfg.Tracing.SampleRate)
	require.Equal(t, "json", cfg.Output.Format)
	require.NoError(t, cfg.Validate())
}

func TestDefaults_SpacesAreCopied(t *testing.T) {
	cfg := Defaults()
	cfg.Atlases.Spaces[0] = "changed"

	require.Equal(t, "fsaverage", DefaultSpaces[0])
}

func TestValidateIndex(t *testing.T) {
	tests := []struct {
		name    string
		idx     IndexConfig
		wantErr string
	}{
		{"valid", IndexConfig{Ignore: []string{"**/*.html", "sub-*/figures/**"}}, ""},
		{"bad glob", IndexConfig{Ignore: []string{"ok/**", "[unclosed"}}, "index.ignore[1]"},
		{"negative debounce", IndexConfig{WatchDebounce: -time.Second}, "index.watch_debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIndex(tt.idx)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCache(t *testing.T) {
	require.NoError(t, ValidateCache(CacheConfig{Enabled: true, TTL: time.Minute}))
	require.NoError(t, ValidateCache(CacheConfig{Enabled: false, TTL: -1}))

	err := ValidateCache(CacheConfig{Enabled: true, TTL: -1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "cache.ttl")
}

func TestValidateAtlases(t *testing.T) {
	require.NoError(t, ValidateAtlases(AtlasConfig{Spaces: []string{"fsLR"}}))

	err := ValidateAtlases(AtlasConfig{Spaces: []string{"fsLR", " "}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "atlases.spaces[1]")
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		tracing TracingConfig
		wantErr string
	}{
		{"defaults", Defaults().Tracing, ""},
		{"sample rate too high", TracingConfig{SampleRate: 1.5}, "tracing.sample_rate"},
		{"sample rate negative", TracingConfig{SampleRate: -0.1}, "tracing.sample_rate"},
		{"unknown exporter", TracingConfig{Exporter: "zipkin", SampleRate: 1}, "tracing.exporter"},
		{"otlp without endpoint", TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1}, "tracing.otlp_endpoint"},
		{"otlp disabled without endpoint", TracingConfig{Enabled: false, Exporter: "otlp", SampleRate: 1}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(tt.tracing)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateOutput(t *testing.T) {
	for _, format := range []string{"", "json", "table"} {
		require.NoError(t, ValidateOutput(OutputConfig{Format: format}))
	}

	err := ValidateOutput(OutputConfig{Format: "xml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "output.format")
}

func TestResolvedTracesFilePath(t *testing.T) {
	require.Equal(t, "/tmp/t.jsonl", TracingConfig{FilePath: "/tmp/t.jsonl"}.ResolvedTracesFilePath())
	require.Equal(t, DefaultTracesFilePath(), TracingConfig{}.ResolvedTracesFilePath())
}

func TestDefaultConfigTemplate_IsValidYAML(t *testing.T) {
	var parsed map[string]any
	err := yaml.Unmarshal([]byte(DefaultConfigTemplate()), &parsed)
	require.NoError(t, err)

	require.Contains(t, parsed, "index")
	require.Contains(t, parsed, "cache")
	require.Contains(t, parsed, "atlases")
	require.Contains(t, parsed, "output")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	err := WriteDefaultConfig(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
