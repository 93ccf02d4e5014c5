package detective

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/detective/internal/classify"
	"github.com/jward/detective/internal/lint"
	"github.com/jward/detective/internal/runtime"
	"github.com/jward/detective/internal/store"
)

func write(t *testing.T, p, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), mode))
	require.NoError(t, os.Chmod(p, mode))
}

// newTestEngine lays out the appliance "app" below a temporary products
// dir and returns an Engine pointed at it.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	products := filepath.Join(dir, "products")
	common := filepath.Join(dir, "common")
	app := filepath.Join(products, "app")

	write(t, filepath.Join(app, "Makefile"), "include $(FAB_PATH)/common/mk/turnkey.mk\n", 0o644)
	write(t, filepath.Join(app, "changelog"), "app (1.0) turnkey\n", 0o644)
	write(t, filepath.Join(app, "conf.d", "main"), "#!/bin/sh -ex\n", 0o644)
	write(t, filepath.Join(app, "plan", "main"), "#include <turnkey/base>\nvim\n", 0o644)
	write(t, filepath.Join(app, "overlay", "usr", "lib", "inithooks", "bin", "setup.py"),
		"#!/usr/bin/python3\nprint('hi')\n", 0o755)
	write(t, filepath.Join(app, "overlay", "etc", "app", "conf.json"), "{\"a\": ", 0o644)
	write(t, filepath.Join(app, "overlay", "etc", "app", "__pycache__", "x.py"), "def (:\n", 0o644)
	write(t, filepath.Join(common, "turnkey", "base"), "bash\n", 0o644)

	opts = append([]Option{WithProductsDir(products), WithCommonPlans(common)}, opts...)
	return New(opts...), app
}

func findFile(t *testing.T, items []classify.Item, rel string) *classify.FileItem {
	t.Helper()
	for _, it := range items {
		if f, ok := it.(*classify.FileItem); ok && f.RelPath() == rel {
			return f
		}
	}
	t.Fatalf("no file item %s", rel)
	return nil
}

func findPackage(t *testing.T, items []classify.Item, name string) *classify.PackageItem {
	t.Helper()
	for _, it := range items {
		if p, ok := it.(*classify.PackageItem); ok && p.Value() == name {
			return p
		}
	}
	t.Fatalf("no package item %s", name)
	return nil
}

func sources(reports []lint.Report) map[string]bool {
	out := make(map[string]bool)
	for _, r := range reports {
		out[r.Source] = true
	}
	return out
}

func TestRun_Appliance(t *testing.T) {
	t.Parallel()
	e, app := newTestEngine(t)

	res, err := e.Run(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, app, res.Root)

	makefile := findFile(t, res.Items, "Makefile")
	assert.Equal(t, []string{"appliance-makefile"}, makefile.TagsByClassifier()["ApplianceMakefileClassifier"])

	confd := findFile(t, res.Items, "conf.d/main")
	assert.True(t, confd.HasTag("appliance-conf.d"))
	assert.True(t, confd.HasTag("shebang:/bin/sh"))

	setup := findFile(t, res.Items, "overlay/usr/lib/inithooks/bin/setup.py")
	assert.True(t, setup.HasTag("appliance-overlay"))
	assert.True(t, setup.HasTag("appliance-inithook-bin"))
	assert.True(t, setup.HasTag("ext:py"))
	assert.Equal(t, []string{"shebang:/usr/bin/python3"}, setup.TagsWithType("shebang"))

	cached := findFile(t, res.Items, "overlay/etc/app/__pycache__/x.py")
	assert.True(t, cached.HasTag("ignore:__pycache__"))

	assert.True(t, findPackage(t, res.Items, "bash").HasTag("plan:common"))
	assert.True(t, findPackage(t, res.Items, "vim").HasTag("plan:appliance"))

	// conf.d/main is not executable, conf.json is truncated; the broken
	// python below __pycache__ is not linted.
	got := sources(res.Reports)
	assert.True(t, got["confd linter"])
	assert.True(t, got["json_check"])
	assert.False(t, got["tree-sitter"])
}

func TestClassify_ParallelMatchesSerial(t *testing.T) {
	t.Parallel()
	serial, _ := newTestEngine(t)
	parallel, _ := newTestEngine(t, WithParallel(4))

	a, err := serial.Run(context.Background(), "app")
	require.NoError(t, err)
	b, err := parallel.Run(context.Background(), "app")
	require.NoError(t, err)

	require.Len(t, b.Items, len(a.Items))
	for i := range a.Items {
		assert.Equal(t, a.Items[i].Kind(), b.Items[i].Kind())
		assert.Equal(t, a.Items[i].TagsByClassifier(), b.Items[i].TagsByClassifier(), a.Items[i].Value())
	}
}

type failing struct{ classify.Base }

func (failing) Classify(item classify.Item) error {
	if item.Value() == "bad" {
		return errors.New("boom")
	}
	return nil
}

func TestClassify_ErrorPropagates(t *testing.T) {
	t.Parallel()
	for _, workers := range []int{0, 3} {
		reg := classify.NewRegistry()
		reg.Register(func() classify.Classifier { return failing{classify.NewBase("Failing", "", 0)} })
		e := New(WithRegistry(reg), WithParallel(workers))

		items := []classify.Item{
			classify.NewPackageItem("a", nil),
			classify.NewPackageItem("bad", nil),
			classify.NewPackageItem("c", nil),
		}
		err := e.Classify(context.Background(), items)
		require.Error(t, err, "workers=%d", workers)
		assert.Contains(t, err.Error(), "boom")
		assert.Contains(t, err.Error(), "Failing")
	}
}

func TestClassify_EmptyRegistry(t *testing.T) {
	t.Parallel()
	e := New(WithRegistry(classify.NewRegistry()))
	err := e.Classify(context.Background(), []classify.Item{classify.NewPackageItem("a", nil)})
	assert.ErrorIs(t, err, classify.ErrNoClassifiers)
}

func TestClassify_Cancelled(t *testing.T) {
	t.Parallel()
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Classify(ctx, []classify.Item{classify.NewPackageItem("a", nil)})
	assert.ErrorIs(t, err, context.Canceled)
}

const customModule = `
exact_path("CustomMakefile", "Makefile", ["custom-makefile"], 200)
glob("AppJSON", "overlay/etc/app/*.json", "app-config")
`

func TestLoadModules_FS(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, WithModulesFS(fstest.MapFS{
		"custom.risor": &fstest.MapFile{Data: []byte(customModule)},
	}))

	loaded, err := e.LoadModules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"custom"}, loaded)

	res, err := e.Run(context.Background(), "app")
	require.NoError(t, err)
	assert.True(t, findFile(t, res.Items, "Makefile").HasTag("custom-makefile"))
	assert.True(t, findFile(t, res.Items, "overlay/etc/app/conf.json").HasTag("app-config"))

	// Classification froze the registry.
	_, err = e.LoadModules(context.Background())
	assert.ErrorIs(t, err, runtime.ErrRegistryFrozen)
}

func TestLoadModules_Dirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	write(t, filepath.Join(dir, "custom.risor"), customModule, 0o644)

	e, _ := newTestEngine(t, WithModulesDirs(filepath.Join(dir, "missing"), dir))
	loaded, err := e.LoadModules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"custom"}, loaded)
}

func TestLoadModules_NotFound(t *testing.T) {
	t.Parallel()
	e := New(WithModulesDirs(filepath.Join(t.TempDir(), "missing")))
	_, err := e.LoadModules(context.Background())
	assert.ErrorIs(t, err, runtime.ErrModulesNotFound)

	loaded, err := New().LoadModules(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLint_DisabledAndFilters(t *testing.T) {
	t.Parallel()
	reg := lint.NewRegistry()
	lint.RegisterDefaults(reg)
	e, _ := newTestEngine(t, WithLinters(reg, "ConfDLinter"))

	res, err := e.Run(context.Background(), "app")
	require.NoError(t, err)
	got := sources(res.Reports)
	assert.False(t, got["confd linter"])
	assert.True(t, got["json_check"])

	e, _ = newTestEngine(t, WithFilters(func() lint.Filter { return &lint.MinLevelFilter{Min: lint.Security} }))
	res, err = e.Run(context.Background(), "app")
	require.NoError(t, err)
	assert.Empty(t, res.Reports)
}

func TestLocate(t *testing.T) {
	t.Parallel()
	e, app := newTestEngine(t)

	located, err := e.Locate(context.Background(), filepath.Join(app, "conf.d", "main"))
	require.NoError(t, err)
	assert.Equal(t, app, located.Root)
	assert.NotEmpty(t, located.Files)
	assert.Len(t, located.Packages, 2)
	assert.Len(t, located.Items(), len(located.Files)+len(located.Packages))

	_, err = e.Locate(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestLocate_NonAppliance(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, WithIgnoreNonAppliance(true))
	dir := t.TempDir()
	write(t, filepath.Join(dir, "tool.sh"), "#!/bin/bash\necho hi\n", 0o755)

	res, err := e.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, res.Root)
	require.Len(t, res.Items, 1)
	tool := findFile(t, res.Items, "tool.sh")
	assert.True(t, tool.HasTag("ext:sh"))
	assert.True(t, tool.HasTag("shebang:/bin/bash"))
}

func TestSave(t *testing.T) {
	t.Parallel()
	e, app := newTestEngine(t)
	res, err := e.Run(context.Background(), "app")
	require.NoError(t, err)

	_, err = e.Save(res)
	require.ErrorIs(t, err, ErrNoStore)

	s, err := store.NewStore(filepath.Join(t.TempDir(), "d.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())

	e, app = newTestEngine(t, WithStore(s))
	res, err = e.Run(context.Background(), "app")
	require.NoError(t, err)
	run, err := e.Save(res)
	require.NoError(t, err)
	assert.Equal(t, app, run.Root)

	latest, err := s.LatestRun(app)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)

	tags, err := s.TagsForValue(run.ID, "vim")
	require.NoError(t, err)
	assert.Equal(t, []string{"plan:appliance"}, tags["PlanPackageClassifier"])
}
