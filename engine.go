package detective

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/jward/detective/internal/classifiers"
	"github.com/jward/detective/internal/classify"
	"github.com/jward/detective/internal/lint"
	"github.com/jward/detective/internal/locator"
	"github.com/jward/detective/internal/plan"
	"github.com/jward/detective/internal/runtime"
	"github.com/jward/detective/internal/store"
)

// ErrNoStore is returned by Save when the Engine has no Store.
var ErrNoStore = errors.New("detective: no store configured")

// Engine orchestrates the detective pipeline: locating an appliance's files
// and packages, classifying them with the registered classifiers, linting
// them by tag, and optionally persisting the results.
type Engine struct {
	registry    *classify.Registry
	linters     *lint.Registry
	filters     []func() lint.Filter
	disabled    map[string]bool
	modulesDirs []string
	modulesFS   fs.FS
	workers     int
	logger      *slog.Logger
	store       *store.Store
	locator     *locator.Locator

	ignoreNonAppliance bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry uses reg instead of a registry holding the built-in
// classifiers. Modules still register into it.
func WithRegistry(reg *classify.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithModulesDirs sets the candidate modules directories. The first one
// which exists is loaded by LoadModules.
func WithModulesDirs(dirs ...string) Option {
	return func(e *Engine) {
		e.modulesDirs = dirs
	}
}

// WithModulesFS loads modules from fsys instead of from disk. When set,
// the modules directories are ignored.
func WithModulesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.modulesFS = fsys
	}
}

// WithParallel classifies up to workers items concurrently. Values below 2
// classify serially, which is the default.
func WithParallel(workers int) Option {
	return func(e *Engine) {
		e.workers = workers
	}
}

// WithLogger sets the logger used by the Engine, its locator and modules.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore persists results through s on Save. The caller owns s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLinters uses reg instead of a registry holding the built-in linters.
// Linters named in disabled never run.
func WithLinters(reg *lint.Registry, disabled ...string) Option {
	return func(e *Engine) {
		e.linters = reg
		for _, name := range disabled {
			e.disabled[name] = true
		}
	}
}

// WithFilters adds report filters on top of the lint registry's own.
func WithFilters(filters ...func() lint.Filter) Option {
	return func(e *Engine) {
		e.filters = append(e.filters, filters...)
	}
}

// WithCommonPlans sets the directories searched for included plans.
func WithCommonPlans(paths ...string) Option {
	return func(e *Engine) {
		e.locator.IncludePaths = paths
	}
}

// WithProductsDir sets the directory holding appliances.
func WithProductsDir(dir string) Option {
	return func(e *Engine) {
		e.locator.ProductsDir = dir
	}
}

// WithIgnoreNonAppliance lets Locate accept inputs which are not
// appliances, classifying every path below them.
func WithIgnoreNonAppliance(ignore bool) Option {
	return func(e *Engine) {
		e.ignoreNonAppliance = ignore
	}
}

// New creates an Engine. Without WithRegistry or WithLinters the built-in
// classifiers and linters are registered.
func New(opts ...Option) *Engine {
	e := &Engine{
		disabled: make(map[string]bool),
		logger:   slog.Default(),
		locator: &locator.Locator{
			ProductsDir:  locator.DefaultProductsDir,
			IncludePaths: []string{plan.DefaultIncludePath},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.locator.Logger = e.logger

	if e.registry == nil {
		e.registry = classify.NewRegistry()
		classifiers.RegisterDefaults(e.registry)
	}
	if e.linters == nil {
		e.linters = lint.NewRegistry()
		lint.RegisterDefaults(e.linters)
	}
	return e
}

// Registry returns the classifier registry.
func (e *Engine) Registry() *classify.Registry {
	return e.registry
}

// Store returns the configured Store, or nil.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Locator returns the locator used to resolve inputs.
func (e *Engine) Locator() *locator.Locator {
	return e.locator
}

// newRuntime builds the module runtime from the configured FS or the first
// existing modules directory.
func (e *Engine) newRuntime() (*runtime.Runtime, error) {
	rtOpts := []runtime.RuntimeOption{runtime.WithLogger(e.logger)}
	if e.modulesFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.modulesFS))
		return runtime.NewRuntime("", rtOpts...), nil
	}
	dir, err := runtime.FindModulesDir(e.modulesDirs)
	if err != nil {
		return nil, err
	}
	return runtime.NewRuntime(dir, rtOpts...), nil
}

// LoadModules runs every classifier module, registering what they declare.
// It must be called before the first Classify. With neither modules
// directories nor a modules FS configured it does nothing.
func (e *Engine) LoadModules(ctx context.Context) ([]string, error) {
	if e.modulesFS == nil && len(e.modulesDirs) == 0 {
		return nil, nil
	}
	rt, err := e.newRuntime()
	if err != nil {
		return nil, fmt.Errorf("detective: load modules: %w", err)
	}
	loaded, err := rt.LoadModules(ctx, e.registry)
	if err != nil {
		return loaded, fmt.Errorf("detective: load modules: %w", err)
	}
	e.logger.Info("modules loaded", "dir", rt.ModulesDir(), "modules", len(loaded), "classifiers", e.registry.Len())
	return loaded, nil
}

// Located is what Locate found for an input.
type Located struct {
	// Root is the appliance root, or the input directory when non-appliance
	// inputs are accepted.
	Root  string
	Files []*classify.FileItem
	// Packages is empty for non-appliance inputs.
	Packages []*classify.PackageItem
}

// Items returns the files followed by the packages.
func (l *Located) Items() []classify.Item {
	items := make([]classify.Item, 0, len(l.Files)+len(l.Packages))
	for _, f := range l.Files {
		items = append(items, f)
	}
	for _, p := range l.Packages {
		items = append(items, p)
	}
	return items
}

// Locate resolves input to an appliance and builds its items.
func (e *Engine) Locate(ctx context.Context, input string) (*Located, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, paths, err := e.locator.Locate(input, e.ignoreNonAppliance)
	if err != nil {
		return nil, fmt.Errorf("detective: locate %s: %w", input, err)
	}
	files, err := locator.FileItems(root, paths)
	if err != nil {
		return nil, fmt.Errorf("detective: locate %s: %w", input, err)
	}

	out := &Located{Root: root, Files: files}
	if e.locator.IsAppliancePath(root) {
		out.Packages, err = e.locator.PackageItems(root)
		if err != nil {
			return nil, fmt.Errorf("detective: locate %s: %w", input, err)
		}
	}
	e.logger.Debug("located", "root", root, "files", len(out.Files), "packages", len(out.Packages))
	return out, nil
}

// Classify runs every registered classifier over items in (Weight, Name)
// order. The registry is frozen by the first call. Each item is classified
// by one goroutine at a time; distinct items may run in parallel when
// WithParallel is set. The first failing item's error is returned.
func (e *Engine) Classify(ctx context.Context, items []classify.Item) error {
	cs, err := e.registry.Weighted()
	if err != nil {
		return fmt.Errorf("detective: classify: %w", err)
	}
	if e.workers > 1 && len(items) > 1 {
		return e.classifyParallel(ctx, items, cs)
	}
	for _, item := range items {
		if err := classify.Run(ctx, item, cs); err != nil {
			return err
		}
	}
	return nil
}

// Lint runs the enabled linters over items and passes the reports through
// the registry's filters followed by those given to WithFilters.
func (e *Engine) Lint(ctx context.Context, items []classify.Item) ([]lint.Report, error) {
	linters := slices.DeleteFunc(e.linters.Linters(), func(l lint.Linter) bool {
		return e.disabled[l.Name()]
	})

	filters := e.linters.Filters()
	for _, f := range e.filters {
		filters = append(filters, f())
	}
	classify.SortWeighted(filters)

	return lint.Run(ctx, items, linters, filters)
}

// Result is the outcome of Run.
type Result struct {
	Root    string
	Items   []classify.Item
	Reports []lint.Report
}

// Run locates input, classifies the items found and lints them. Modules
// must have been loaded beforehand if they are wanted.
func (e *Engine) Run(ctx context.Context, input string) (*Result, error) {
	located, err := e.Locate(ctx, input)
	if err != nil {
		return nil, err
	}
	items := located.Items()
	if err := e.Classify(ctx, items); err != nil {
		return nil, err
	}
	reports, err := e.Lint(ctx, items)
	if err != nil {
		return nil, err
	}
	return &Result{Root: located.Root, Items: items, Reports: reports}, nil
}

// Save persists the classified items of res as a new run.
func (e *Engine) Save(res *Result) (*store.Run, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	run, err := e.store.SaveRun(res.Root, res.Items)
	if err != nil {
		return nil, fmt.Errorf("detective: save: %w", err)
	}
	e.logger.Info("run saved", "run", run.ID, "root", run.Root, "items", len(res.Items))
	return run, nil
}
