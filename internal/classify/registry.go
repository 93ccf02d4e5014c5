package classify

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoClassifiers is returned by Registry.Weighted when nothing registered.
var ErrNoClassifiers = errors.New("classify: no classifiers registered")

// Factory builds a fresh Classifier. The registry stores factories, not
// instances, and builds one instance per classification run.
type Factory func() Classifier

// Registry collects classifier factories during module loading. Once
// classification begins it is frozen and read-only for the rest of the
// process.
type Registry struct {
	mu        sync.Mutex
	factories []Factory
	frozen    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends f and returns it unchanged. Registering into a frozen
// registry is a programming error and panics.
func (r *Registry) Register(f Factory) Factory {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("classify: register on frozen registry")
	}
	r.factories = append(r.factories, f)
	return f
}

// Len returns the number of registered factories.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.factories)
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Weighted freezes the registry and returns one new instance of every
// registered classifier ordered by (Weight, Name) ascending. The order does
// not depend on registration order.
func (r *Registry) Weighted() ([]Classifier, error) {
	r.mu.Lock()
	r.frozen = true
	factories := make([]Factory, len(r.factories))
	copy(factories, r.factories)
	r.mu.Unlock()

	if len(factories) == 0 {
		return nil, ErrNoClassifiers
	}

	classifiers := make([]Classifier, 0, len(factories))
	for _, f := range factories {
		classifiers = append(classifiers, f())
	}
	SortWeighted(classifiers)
	return classifiers, nil
}

// Weighted is anything ordered by weight then name: classifiers, linters and
// report filters all share this ordering.
type Weighted interface {
	Name() string
	Weight() int
}

// SortWeighted sorts s in place by (Weight, Name) ascending.
func SortWeighted[T Weighted](s []T) {
	sort.SliceStable(s, func(i, j int) bool {
		return Less(s[i], s[j])
	})
}

// Less orders a before b by weight, then name.
func Less(a, b Weighted) bool {
	if a.Weight() != b.Weight() {
		return a.Weight() < b.Weight()
	}
	return a.Name() < b.Name()
}
