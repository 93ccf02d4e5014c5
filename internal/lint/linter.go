package lint

import (
	"context"
	"fmt"
	"sync"

	"github.com/jward/detective/internal/classify"
)

// Linter checks items and produces reports.
type Linter interface {
	Name() string
	Weight() int
	// Accepts reports whether item is of a variant this linter handles.
	Accepts(item classify.Item) bool
	EnableTags() []string
	DisableTags() []string
	Check(ctx context.Context, item classify.Item) ([]Report, error)
}

// Base provides everything but Check for linters embedding it.
type Base struct {
	classify.Base
	enable  []string
	disable []string
}

// NewBase returns a Base for a linter of the given item kind ("" for any).
func NewBase(name string, kind classify.Kind, weight int, enable, disable []string) Base {
	return Base{
		Base:    classify.NewBase(name, kind, weight),
		enable:  enable,
		disable: disable,
	}
}

func (b Base) EnableTags() []string  { return b.enable }
func (b Base) DisableTags() []string { return b.disable }

// ShouldCheck applies the tag rules: with no enable tags, every item without
// a disable tag is checked; otherwise the item needs at least one enable tag
// and no disable tag.
func ShouldCheck(l Linter, item classify.Item) bool {
	for _, tag := range l.DisableTags() {
		if item.HasTag(tag) {
			return false
		}
	}
	enable := l.EnableTags()
	if len(enable) == 0 {
		return true
	}
	for _, tag := range enable {
		if item.HasTag(tag) {
			return true
		}
	}
	return false
}

// Do checks item with l when l accepts it and ShouldCheck agrees.
func Do(ctx context.Context, l Linter, item classify.Item) ([]Report, error) {
	if !l.Accepts(item) || !ShouldCheck(l, item) {
		return nil, nil
	}
	reports, err := l.Check(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("lint %s: %s: %w", item.Value(), l.Name(), err)
	}
	return reports, nil
}

// Filter rewrites reports before they are shown. A filter may drop a
// report, pass it on, change it, or split it into several.
type Filter interface {
	Name() string
	Weight() int
	Filter(r Report) []Report
}

// ApplyFilters feeds every report through filters in order. The reports a
// filter returns are what the next filter sees.
func ApplyFilters(reports []Report, filters []Filter) []Report {
	current := reports
	for _, f := range filters {
		next := make([]Report, 0, len(current))
		for _, r := range current {
			next = append(next, f.Filter(r)...)
		}
		current = next
	}
	return current
}

// Registry collects linter and filter factories.
type Registry struct {
	mu      sync.Mutex
	linters []func() Linter
	filters []func() Filter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterLinter adds a linter factory.
func (r *Registry) RegisterLinter(f func() Linter) {
	r.mu.Lock()
	r.linters = append(r.linters, f)
	r.mu.Unlock()
}

// RegisterFilter adds a filter factory.
func (r *Registry) RegisterFilter(f func() Filter) {
	r.mu.Lock()
	r.filters = append(r.filters, f)
	r.mu.Unlock()
}

// Linters returns new linter instances ordered by (Weight, Name).
func (r *Registry) Linters() []Linter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Linter, 0, len(r.linters))
	for _, f := range r.linters {
		out = append(out, f())
	}
	classify.SortWeighted(out)
	return out
}

// Filters returns new filter instances ordered by (Weight, Name).
func (r *Registry) Filters() []Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Filter, 0, len(r.filters))
	for _, f := range r.filters {
		out = append(out, f())
	}
	classify.SortWeighted(out)
	return out
}

// Run lints every item with every linter, in linter order per item, then
// filters the reports. The first linter error stops the run.
func Run(ctx context.Context, items []classify.Item, linters []Linter, filters []Filter) ([]Report, error) {
	var reports []Report
	for _, item := range items {
		for _, l := range linters {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			found, err := Do(ctx, l, item)
			if err != nil {
				return nil, err
			}
			reports = append(reports, found...)
		}
	}
	return ApplyFilters(reports, filters), nil
}
