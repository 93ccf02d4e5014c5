package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "tkldet.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/tkldet"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// EnvFile is read for TKLDET_* variables not set in the environment
	EnvFile = ".env"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "TKLDET_"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger

	// Overridable for tests; zero values use the real environment.
	HomeDir string
	WorkDir string
	Getenv  func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/tkldet/config.yaml)
// 3. Project config (tkldet.yaml in current or parent directories)
// 4. TKLDET_* environment variables, falling back to a .env file
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if userConfig, err := LoadFromFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		projectConfig, err := LoadFromFile(projectConfigPath)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		config.Merge(projectConfig)
	} else {
		l.logger.Debug("No project config found")
	}

	if err := l.applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// applyEnv overrides config from TKLDET_* variables.
func (l *Loader) applyEnv(config *Config) error {
	dotenv, err := godotenv.Read(filepath.Join(l.workDir(), EnvFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Failed to read env file", slog.String("error", err.Error()))
	}

	lookup := func(name string) string {
		key := EnvPrefix + name
		if v := l.getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	if v := lookup("MODULES_DIR"); v != "" {
		config.Modules.Dirs = filepath.SplitList(v)
	}
	if v := lookup("PRODUCTS_DIR"); v != "" {
		config.Locator.ProductsDir = v
	}
	if v := lookup("INCLUDE_PATH"); v != "" {
		config.Locator.IncludePaths = filepath.SplitList(v)
	}
	if v := lookup("DB"); v != "" {
		config.Store.Path = v
	}
	if v := lookup("MIN_LEVEL"); v != "" {
		config.Lint.MinLevel = v
	}
	if v := lookup("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", EnvPrefix, err)
		}
		config.Workers = n
	}
	if v := lookup("IGNORE_NON_APPLIANCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sIGNORE_NON_APPLIANCE: %w", EnvPrefix, err)
		}
		config.Locator.IgnoreNonAppliance = b
	}
	return nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return errors.New("no home directory")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return nil
	}

	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

func (l *Loader) getenv(key string) string {
	if l.Getenv != nil {
		return l.Getenv(key)
	}
	return os.Getenv(key)
}

func (l *Loader) workDir() string {
	if l.WorkDir != "" {
		return l.WorkDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home := l.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for tkldet.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	dir := l.workDir()
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
