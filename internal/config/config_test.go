package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/detective/internal/lint"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestDefaultConfig_Valid(t *testing.T) {
	t.Parallel()
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, lint.Info, c.MinLevel())
	assert.Empty(t, c.Store.Path)
	assert.False(t, c.Lint.HideFixes)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no modules dirs", func(c *Config) { c.Modules.Dirs = nil }, "modules.dirs"},
		{"bad level", func(c *Config) { c.Lint.MinLevel = "loud" }, "lint.min_level"},
		{"no products dir", func(c *Config) { c.Locator.ProductsDir = "" }, "locator.products_dir"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "tkldet.yaml")
	writeFile(t, p, `
lint:
  min_level: warn
  disabled: [SyntaxLinter]
store:
  path: /tmp/d.db
workers: 4
`)
	c, err := LoadFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, lint.Warn, c.MinLevel())
	assert.Equal(t, []string{"SyntaxLinter"}, c.Lint.Disabled)
	assert.Equal(t, "/tmp/d.db", c.Store.Path)
	assert.Equal(t, 4, c.Workers)
	// Settings absent from the file stay zero so Merge leaves them alone.
	assert.Empty(t, c.Modules.Dirs)
	assert.Empty(t, c.Locator.ProductsDir)

	merged := DefaultConfig()
	merged.Merge(c)
	assert.Equal(t, DefaultConfig().Modules.Dirs, merged.Modules.Dirs)
	assert.Equal(t, "/tmp/d.db", merged.Store.Path)
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Parallel()
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, p, "lint: [unclosed\n")
	_, err = LoadFromFile(p)
	assert.Error(t, err)
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c := DefaultConfig()
	c.Workers = 3
	c.Locator.IgnoreNonAppliance = true
	require.NoError(t, c.SaveToFile(p))

	got, err := LoadFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestMerge(t *testing.T) {
	t.Parallel()
	c := DefaultConfig()
	c.Merge(nil)
	assert.Equal(t, DefaultConfig(), c)

	c.Merge(&Config{
		Modules: ModulesConfig{Dirs: []string{"/m"}},
		Lint:    LintConfig{HideFixes: true},
		Locator: LocatorConfig{IgnoreNonAppliance: true},
	})
	assert.Equal(t, []string{"/m"}, c.Modules.Dirs)
	assert.True(t, c.Lint.HideFixes)
	assert.True(t, c.Locator.IgnoreNonAppliance)
	// Zero values leave the current settings alone.
	assert.Equal(t, "info", c.Lint.MinLevel)
	assert.Equal(t, DefaultConfig().Locator.ProductsDir, c.Locator.ProductsDir)
}

func newTestLoader(t *testing.T, env map[string]string) (*Loader, string, string) {
	t.Helper()
	home, work := t.TempDir(), t.TempDir()
	l := NewLoader(nil)
	l.HomeDir = home
	l.WorkDir = work
	l.Getenv = func(k string) string { return env[k] }
	return l, home, work
}

func TestLoader_Layers(t *testing.T) {
	t.Parallel()
	l, home, work := newTestLoader(t, map[string]string{
		"TKLDET_WORKERS": "8",
	})
	writeFile(t, filepath.Join(home, UserConfigDir, UserConfigFile), "lint:\n  min_level: warn\nstore:\n  path: /user.db\n")
	writeFile(t, filepath.Join(work, ProjectConfigFile), "store:\n  path: /project.db\nworkers: 2\n")
	writeFile(t, filepath.Join(work, EnvFile), "TKLDET_PRODUCTS_DIR=/srv/products\nTKLDET_WORKERS=99\n")

	c, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, lint.Warn, c.MinLevel(), "user layer")
	assert.Equal(t, "/project.db", c.Store.Path, "project beats user")
	assert.Equal(t, "/srv/products", c.Locator.ProductsDir, ".env fills unset vars")
	assert.Equal(t, 8, c.Workers, "environment beats .env")
}

func TestLoader_ProjectKeepsUserSettings(t *testing.T) {
	t.Parallel()
	l, home, work := newTestLoader(t, nil)
	writeFile(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
modules:
  dirs: [/opt/mods]
lint:
  min_level: warn
locator:
  products_dir: /srv/products
`)
	writeFile(t, filepath.Join(work, ProjectConfigFile), "store:\n  path: /project.db\n")

	c, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "/project.db", c.Store.Path)
	assert.Equal(t, lint.Warn, c.MinLevel())
	assert.Equal(t, []string{"/opt/mods"}, c.Modules.Dirs)
	assert.Equal(t, "/srv/products", c.Locator.ProductsDir)
	assert.Equal(t, DefaultConfig().Locator.IncludePaths, c.Locator.IncludePaths)
}

func TestLoader_ProjectConfigInParent(t *testing.T) {
	t.Parallel()
	l, _, work := newTestLoader(t, nil)
	writeFile(t, filepath.Join(work, ProjectConfigFile), "workers: 5\n")
	l.WorkDir = filepath.Join(work, "a", "b")
	require.NoError(t, os.MkdirAll(l.WorkDir, 0o755))

	c, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, c.Workers)
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	l, _, work := newTestLoader(t, map[string]string{"TKLDET_WORKERS": "many"})
	_, err := l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TKLDET_WORKERS")

	l, _, _ = newTestLoader(t, map[string]string{"TKLDET_MIN_LEVEL": "loud"})
	_, err = l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	l, _, work = newTestLoader(t, nil)
	writeFile(t, filepath.Join(work, ProjectConfigFile), "workers: [\n")
	_, err = l.Load()
	assert.Error(t, err)
}

func TestLoader_EnvLists(t *testing.T) {
	t.Parallel()
	l, _, _ := newTestLoader(t, map[string]string{
		"TKLDET_MODULES_DIR":          "/a" + string(filepath.ListSeparator) + "/b",
		"TKLDET_IGNORE_NON_APPLIANCE": "true",
	})
	c, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, c.Modules.Dirs)
	assert.True(t, c.Locator.IgnoreNonAppliance)
}

func TestEnsureUserConfig(t *testing.T) {
	t.Parallel()
	l, home, _ := newTestLoader(t, nil)
	require.NoError(t, l.EnsureUserConfig())

	p := filepath.Join(home, UserConfigDir, UserConfigFile)
	c, err := LoadFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)

	// A second call leaves the file alone.
	writeFile(t, p, "workers: 7\n")
	require.NoError(t, l.EnsureUserConfig())
	c, err = LoadFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Workers)
}
