package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/detective"
	"github.com/jward/detective/internal/config"
	"github.com/jward/detective/internal/lint"
	"github.com/jward/detective/internal/runtime"
	"github.com/jward/detective/internal/store"
	"github.com/jward/detective/modules"
)

var (
	flagDB                 string
	flagFormat             string
	flagModulesDirs        []string
	flagProductsDir        string
	flagLogLevel           string
	flagWorkers            int
	flagIgnoreNonAppliance bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// cfg is loaded by the root command before any subcommand runs.
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tkldet",
	Short:         "Classify and lint TurnKey appliance sources",
	Long:          "tkldet locates the files and plan packages of an appliance, tags them with classifiers and runs the linters selected by those tags.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		if err := setupLogging(flagLogLevel); err != nil {
			return err
		}
		loaded, err := config.NewLoader(slog.Default()).Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		applyFlags(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
		cfg = loaded
		return nil
	},
	// No Run, prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path for saved runs (default: store.path from config)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringSliceVar(&flagModulesDirs, "modules-dir", nil, "candidate module directories, first existing one wins (default: embedded modules if none exist)")
	rootCmd.PersistentFlags().StringVar(&flagProductsDir, "products-dir", "", "directory holding appliances")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "items classified concurrently (0 or 1 = serial)")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreNonAppliance, "ignore-non-appliance", false, "accept inputs which are not appliances")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(modulesCmd)
}

// setupLogging installs a text handler on stderr at the given level.
func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// applyFlags overrides c with the persistent flags the user set.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		c.Store.Path = flagDB
	}
	if flags.Changed("modules-dir") {
		c.Modules.Dirs = flagModulesDirs
	}
	if flags.Changed("products-dir") {
		c.Locator.ProductsDir = flagProductsDir
	}
	if flags.Changed("workers") {
		c.Workers = flagWorkers
	}
	if flags.Changed("ignore-non-appliance") {
		c.Locator.IgnoreNonAppliance = flagIgnoreNonAppliance
	}
}

// embeddedSource names the embedded modules in output.
const embeddedSource = "embedded"

// modulesSource returns the first existing modules directory of c, or
// embeddedSource when none exists and the directories were not given on the
// command line.
func modulesSource(cmd *cobra.Command, c *config.Config) (string, error) {
	dir, err := runtime.FindModulesDir(c.Modules.Dirs)
	if err == nil {
		return dir, nil
	}
	if cmd.Flags().Changed("modules-dir") {
		return "", err
	}
	slog.Debug("no modules directory, using embedded modules", "tried", c.Modules.Dirs)
	return embeddedSource, nil
}

// engineOptions builds the Engine options for c, loading modules from
// source.
func engineOptions(c *config.Config, source string) []detective.Option {
	linters := lint.NewRegistry()
	lint.RegisterDefaults(linters)
	minLevel := c.MinLevel()

	opts := []detective.Option{
		detective.WithLogger(slog.Default()),
		detective.WithProductsDir(c.Locator.ProductsDir),
		detective.WithCommonPlans(c.Locator.IncludePaths...),
		detective.WithParallel(c.Workers),
		detective.WithIgnoreNonAppliance(c.Locator.IgnoreNonAppliance),
		detective.WithLinters(linters, c.Lint.Disabled...),
		detective.WithFilters(func() lint.Filter { return &lint.MinLevelFilter{Min: minLevel} }),
	}
	if source == embeddedSource {
		return append(opts, detective.WithModulesFS(modules.FS))
	}
	return append(opts, detective.WithModulesDirs(source))
}

// session is an Engine ready to run, with the modules it loaded.
type session struct {
	engine  *detective.Engine
	source  string
	modules []string
	close   func()
}

// newSession creates an Engine from the loaded config with its modules
// loaded. When a store path is configured the store is opened and migrated;
// session.close closes it.
func newSession(cmd *cobra.Command) (*session, error) {
	source, err := modulesSource(cmd, cfg)
	if err != nil {
		return nil, err
	}
	opts := engineOptions(cfg, source)

	closeFn := func() {}
	if cfg.Store.Path != "" {
		s, err := openStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, detective.WithStore(s))
		closeFn = func() { s.Close() }
	}

	engine := detective.New(opts...)
	loaded, err := engine.LoadModules(cmd.Context())
	if err != nil {
		closeFn()
		return nil, err
	}
	return &session{engine: engine, source: source, modules: loaded, close: closeFn}, nil
}

// openStore opens and migrates the store at path.
func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	s, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return s, nil
}
