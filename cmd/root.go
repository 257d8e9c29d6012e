// Package cmd implements the smripost command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/smripost/internal/config"
	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
	"github.com/zjrosen/smripost/internal/infrastructure/sqlite"
	"github.com/zjrosen/smripost/internal/iospec"
	"github.com/zjrosen/smripost/internal/log"
	"github.com/zjrosen/smripost/internal/presentation"
	"github.com/zjrosen/smripost/internal/tracing"
)

// Environment variables read at startup.
const (
	EnvDebug    = "SMRIPOST_DEBUG"
	EnvLogPath  = "SMRIPOST_LOG"
	EnvLogLevel = "SMRIPOST_LOG_LEVEL"
)

const localConfigPath = ".smripost/config.yaml"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds the state shared by every subcommand of one root command.
type app struct {
	v        *viper.Viper
	cfgFile  string
	debug    bool
	cfg      config.Config
	spec     *iospec.Spec
	provider *tracing.Provider
	closeLog func()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "smripost",
		Short: "Resolve, parse and collect BIDS derivative paths",
		Long: `smripost maps BIDS entities to file paths and back.

It parses derivative file names into entities, generates paths from
entities, answers the named queries of its specification and collects the
anatomical derivatives, transforms and atlases a postprocessing run needs.`,
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: ~/.config/smripost/config.yaml)")
	root.PersistentFlags().String("spec", "", "specification document (default: built-in io_spec.json)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "write debug log (also "+EnvDebug+")")
	root.PersistentFlags().StringP("format", "f", "", "output format: json or table")
	_ = a.v.BindPFlag("spec_file", root.PersistentFlags().Lookup("spec"))
	_ = a.v.BindPFlag("output.format", root.PersistentFlags().Lookup("format"))

	root.AddCommand(
		a.newParseCmd(),
		a.newGenerateCmd(),
		a.newEntitiesCmd(),
		a.newQueryCmd(),
		a.newIndexCmd(),
		a.newCollectCmd(),
		a.newAtlasesCmd(),
		a.newDescribeCmd(),
		a.newConfigCmd(),
	)
	return root
}

func (a *app) initConfig() error {
	defaults := config.Defaults()
	v := a.v
	v.SetDefault("index.db_path", defaults.Index.DBPath)
	v.SetDefault("index.ignore", defaults.Index.Ignore)
	v.SetDefault("index.watch_debounce", defaults.Index.WatchDebounce)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)
	v.SetDefault("collect.allow_multiple", defaults.Collect.AllowMultiple)
	v.SetDefault("atlases.spaces", defaults.Atlases.Spaces)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("output.format", defaults.Output.Format)

	v.SetEnvPrefix("SMRIPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		// Config lookup order:
		// 1. .smripost/config.yaml (current directory)
		// 2. ~/.config/smripost/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
		} else {
			v.AddConfigPath(config.Dir())
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// No config file found anywhere - create default in the user config dir
			if dir := config.Dir(); dir != "" {
				defaultPath := filepath.Join(dir, "config.yaml")
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					v.SetConfigFile(defaultPath)
					_ = v.ReadInConfig()
				}
			}
		case errors.Is(err, os.ErrNotExist):
			// Explicit --config that does not exist yet: run on defaults.
		default:
			return fmt.Errorf("reading config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	a.cfg = config.Config{}
	if err := v.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	if a.cfg.Index.DBPath == "" {
		a.cfg.Index.DBPath = localConfigDir("index.db")
	}
	return nil
}

func localConfigDir(name string) string {
	return filepath.Join(filepath.Dir(localConfigPath), name)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.debug || os.Getenv(EnvDebug) != "" {
		logPath := os.Getenv(EnvLogPath)
		if logPath == "" {
			logPath = "smripost-debug.log"
		}
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("opening debug log: %w", err)
		}
		a.closeLog = cleanup
		if level := os.Getenv(EnvLogLevel); level != "" {
			log.SetMinLevel(log.ParseLevel(level))
		}
		log.Info(log.CatConfig, "smripost starting", "version", version, "command", cmd.CommandPath())
	}

	if err := a.initConfig(); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.Debug(log.CatConfig, "Loaded config", "file", a.v.ConfigFileUsed())

	spec, err := iospec.Load(a.cfg.SpecFile)
	if err != nil {
		return fmt.Errorf("loading specification: %w", err)
	}
	a.spec = spec

	if a.cfg.Tracing.Enabled && a.cfg.Tracing.FilePath == "" {
		a.cfg.Tracing.FilePath = a.cfg.Tracing.ResolvedTracesFilePath()
	}
	provider, err := tracing.NewProvider(a.cfg.Tracing)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	a.provider = provider
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	var err error
	if a.provider != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		err = a.provider.Shutdown(ctx)
	}
	if a.closeLog != nil {
		a.closeLog()
	}
	return err
}

func (a *app) tracer() trace.Tracer {
	if a.provider == nil {
		return nil
	}
	return a.provider.Tracer()
}

func (a *app) formatter(cmd *cobra.Command) *presentation.Formatter {
	return presentation.NewFormatter(cmd.OutOrStdout(), a.cfg.Output.Format)
}

// openIndex opens the derivative index database.
func (a *app) openIndex() (domain.Repository, func(), error) {
	db, err := sqlite.NewDB(a.cfg.Index.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening index %s: %w", a.cfg.Index.DBPath, err)
	}
	return db.FileRepository(), func() { _ = db.Close() }, nil
}

// parseEntities converts k=v pairs to entities, coercing values with the
// registry. Names the registry does not know stay strings.
func parseEntities(reg *layout.Registry, pairs []string) (layout.Entities, error) {
	out := layout.Entities{}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid entity %q: want name=value", pair)
		}
		v, err := reg.Coerce(name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// parsePairs converts name=value pairs to a map.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid pair %q: want name=value", pair)
		}
		out[name] = value
	}
	return out, nil
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersion sets the build information (called from main with ldflags)
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
}
