package classify

import (
	"context"
	"fmt"
)

// DefaultWeight is the weight of a classifier that does not declare one.
// Classifiers meant to run after the defaults use a larger weight, those
// meant to run before use a smaller one.
const DefaultWeight = 100

// Classifier is a stateless rule which inspects an Item and may attach tags
// to it. Classifiers run in ascending (Weight, Name) order, so a classifier
// can read the tags put in place by lighter ones.
type Classifier interface {
	// Name identifies the classifier. It is the provenance key under which
	// the classifier's tags are stored on an item.
	Name() string
	Weight() int
	// Accepts reports whether item is of a variant this classifier handles.
	Accepts(item Item) bool
	// Classify inspects the item and calls item.AddTags. It is only called
	// for accepted items.
	Classify(item Item) error
}

// ContextClassifier is a Classifier whose work can block, such as one
// running a script. Run hands it the pass's context so cancellation reaches
// it.
type ContextClassifier interface {
	Classifier
	ClassifyContext(ctx context.Context, item Item) error
}

// Base provides Name, Weight and Accepts for classifiers embedding it.
type Base struct {
	name   string
	kind   Kind
	weight int
}

// NewBase returns a Base for a classifier called name accepting items of
// kind. An empty kind accepts every item; a zero weight means DefaultWeight.
func NewBase(name string, kind Kind, weight int) Base {
	return Base{name: name, kind: kind, weight: weight}
}

func (b Base) Name() string { return b.name }

func (b Base) Weight() int {
	if b.weight == 0 {
		return DefaultWeight
	}
	return b.weight
}

// WithWeight returns a copy of b using weight w.
func (b Base) WithWeight(w int) Base {
	b.weight = w
	return b
}

// ItemKind returns the accepted kind, "" meaning any.
func (b Base) ItemKind() Kind { return b.kind }

func (b Base) Accepts(item Item) bool {
	return b.kind == "" || item.Kind() == b.kind
}

// Do runs c against item if c accepts it. A rejected item is not an error.
// Errors returned by Classify are passed through; deciding whether a failing
// classifier aborts the run belongs to the caller.
func Do(c Classifier, item Item) error {
	if !c.Accepts(item) {
		return nil
	}
	return c.Classify(item)
}

// DoContext is Do passing ctx to classifiers implementing ContextClassifier.
func DoContext(ctx context.Context, c Classifier, item Item) error {
	if !c.Accepts(item) {
		return nil
	}
	if cc, ok := c.(ContextClassifier); ok {
		return cc.ClassifyContext(ctx, item)
	}
	return c.Classify(item)
}

// Run applies every classifier, in the given order, to item. The first
// classifier error stops the pass.
func Run(ctx context.Context, item Item, classifiers []Classifier) error {
	for _, c := range classifiers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := DoContext(ctx, c, item); err != nil {
			return fmt.Errorf("classify %s: %s: %w", item.Value(), c.Name(), err)
		}
	}
	return nil
}
