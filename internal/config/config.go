// Package config provides configuration types and defaults for smripost.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/zjrosen/smripost/internal/log"
)

// Config holds all configuration options for smripost.
type Config struct {
	// SpecFile overrides the embedded io_spec.json. Empty uses the embedded one.
	SpecFile     string            `mapstructure:"spec_file"`
	Index        IndexConfig       `mapstructure:"index"`
	Cache        CacheConfig       `mapstructure:"cache"`
	Collect      CollectConfig     `mapstructure:"collect"`
	Atlases      AtlasConfig       `mapstructure:"atlases"`
	Tracing      TracingConfig     `mapstructure:"tracing"`
	Output       OutputConfig      `mapstructure:"output"`
	DatasetLinks map[string]string `mapstructure:"dataset_links"`
}

// IndexConfig holds derivative index options.
type IndexConfig struct {
	DBPath        string        `mapstructure:"db_path"`        // SQLite file; default ~/.config/smripost/index.db
	Ignore        []string      `mapstructure:"ignore"`         // doublestar globs relative to the dataset root
	WatchDebounce time.Duration `mapstructure:"watch_debounce"` // quiet period before re-indexing
}

// CacheConfig controls the parse cache used while indexing.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// CollectConfig holds derivative collection options.
type CollectConfig struct {
	// AllowMultiple returns every match instead of failing when a
	// non-anatomical query matches more than one file.
	AllowMultiple bool `mapstructure:"allow_multiple"`
}

// AtlasConfig holds atlas collection options.
type AtlasConfig struct {
	Spaces []string `mapstructure:"spaces"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/smripost/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// OutputConfig controls command output.
type OutputConfig struct {
	Format string `mapstructure:"format"` // "json" (default) or "table"
}

// DefaultSpaces are the atlas spaces searched when none are configured.
var DefaultSpaces = []string{"fsaverage", "fsLR", "MNI152NLin6Asym"}

// Dir returns ~/.config/smripost or empty string if home dir unavailable.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "smripost")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// DefaultDBPath returns the default derivative index location.
func DefaultDBPath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "index.db")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Index: IndexConfig{
			DBPath:        DefaultDBPath(),
			Ignore:        []string{"**/.git/**", "**/.smripost/**", "**/*.html", "logs/**", "figures/**"},
			WatchDebounce: 300 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Atlases: AtlasConfig{
			Spaces: append([]string(nil), DefaultSpaces...),
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Output: OutputConfig{
			Format: "json",
		},
	}
}

// Validate runs every section validator.
func (c Config) Validate() error {
	if err := ValidateIndex(c.Index); err != nil {
		return err
	}
	if err := ValidateCache(c.Cache); err != nil {
		return err
	}
	if err := ValidateAtlases(c.Atlases); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return ValidateOutput(c.Output)
}

// ValidateIndex checks ignore globs and the debounce.
func ValidateIndex(idx IndexConfig) error {
	for i, pattern := range idx.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("index.ignore[%d]: invalid glob %q", i, pattern)
		}
	}
	if idx.WatchDebounce < 0 {
		return fmt.Errorf("index.watch_debounce must not be negative, got %s", idx.WatchDebounce)
	}
	return nil
}

// ValidateCache checks the cache TTL.
func ValidateCache(c CacheConfig) error {
	if c.Enabled && c.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.TTL)
	}
	return nil
}

// ValidateAtlases checks the atlas space list.
func ValidateAtlases(a AtlasConfig) error {
	for i, space := range a.Spaces {
		if strings.TrimSpace(space) == "" {
			return fmt.Errorf("atlases.spaces[%d]: space is empty", i)
		}
	}
	return nil
}

// ValidateTracing validates tracing configuration.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// ValidateOutput checks the output format.
func ValidateOutput(o OutputConfig) error {
	switch o.Format {
	case "", "json", "table":
		return nil
	default:
		return fmt.Errorf("output.format must be \"json\" or \"table\", got %q", o.Format)
	}
}

// ResolvedTracesFilePath returns FilePath or the default location.
func (t TracingConfig) ResolvedTracesFilePath() string {
	if t.FilePath != "" {
		return t.FilePath
	}
	return DefaultTracesFilePath()
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# smripost configuration

# Specification document (entities, queries, path patterns).
# Leave unset to use the built-in io_spec.json.
# spec_file: /path/to/io_spec.json

# Derivative index
index:
  # db_path: ~/.config/smripost/index.db
  ignore:                  # doublestar globs relative to the dataset root
    - "**/.git/**"
    - "**/.smripost/**"
    - "**/*.html"
    - "logs/**"
    - "figures/**"
  watch_debounce: 300ms    # quiet period before 'index --watch' re-indexes

# Parse cache used while indexing
cache:
  enabled: true
  ttl: 10m

# Derivative collection
collect:
  allow_multiple: false    # return every match instead of failing on duplicates

# Atlas collection
atlases:
  spaces:
    - fsaverage
    - fsLR
    - MNI152NLin6Asym

# Output format for commands: json (default) or table
output:
  format: json

# Dataset links written to dataset_description.json and used for BIDS URIs
# dataset_links:
#   raw: /data/bids
#   deriv-0: /data/derivatives/fmriprep

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/smripost/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	// Create parent directory if needed
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
