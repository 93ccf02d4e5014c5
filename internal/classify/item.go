package classify

import (
	"fmt"
	"io"
	"iter"
	"sort"
	"strings"
)

// Kind names the concrete Item variant. Classifiers use it to declare which
// items they accept and the store persists it alongside each item.
type Kind string

const (
	KindFile    Kind = "file"
	KindPackage Kind = "package"
)

// Item is some "thing" which can be classified: a file path or a package
// installed via plan. Identity fields are fixed at construction; the only
// mutable state is the provenance-tracked tag set, grown through AddTags.
//
// An Item is not safe for concurrent AddTags calls. Distinct items share no
// state and may be classified in parallel.
type Item interface {
	Kind() Kind
	// Value is context dependent: the raw path found by the locator for a
	// file, the package name for a package.
	Value() string

	AddTags(c Classifier, tags ...string)
	Tags() iter.Seq[string]
	TagsByClassifier() map[string][]string
	HasTag(tag string) bool
	HasTagType(tagType string) bool
	TagsWithType(tagType string) []string
	Dump(w io.Writer)
}

// item holds the state shared by every Item variant.
type item struct {
	value string

	// tags maps classifier names to the tags each one asserted, so it can
	// always be determined exactly how an item got classified.
	tags map[string]map[string]struct{}
}

// Value returns the item's context dependent payload.
func (it *item) Value() string {
	return it.value
}

// AddTags merges tags into the set owned by c. Calling it again with the same
// tags has no further effect. An empty tags list still records that c
// classified the item.
func (it *item) AddTags(c Classifier, tags ...string) {
	name := c.Name()
	if it.tags == nil {
		it.tags = make(map[string]map[string]struct{})
	}
	set, ok := it.tags[name]
	if !ok {
		set = make(map[string]struct{}, len(tags))
		it.tags[name] = set
	}
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
}

// Tags yields every tag of every classifier. A tag asserted by two
// classifiers is yielded twice. Classifiers are visited by name and each
// classifier's tags in sorted order, so the sequence is reproducible.
func (it *item) Tags() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range it.classifierNames() {
			for _, tag := range sortedSet(it.tags[name]) {
				if !yield(tag) {
					return
				}
			}
		}
	}
}

// TagsByClassifier returns a copy of the provenance map with sorted tags.
func (it *item) TagsByClassifier() map[string][]string {
	out := make(map[string][]string, len(it.tags))
	for name, set := range it.tags {
		out[name] = sortedSet(set)
	}
	return out
}

// HasTag reports whether any classifier asserted tag.
func (it *item) HasTag(tag string) bool {
	for _, set := range it.tags {
		if _, ok := set[tag]; ok {
			return true
		}
	}
	return false
}

// HasTagType reports whether the item carries a variant tag of the given
// type, i.e. any tag of the form "<tagType>:<variant>".
func (it *item) HasTagType(tagType string) bool {
	prefix := tagType + ":"
	for tag := range it.Tags() {
		if strings.HasPrefix(tag, prefix) {
			return true
		}
	}
	return false
}

// TagsWithType returns all variant tags of the given type, duplicates
// included.
func (it *item) TagsWithType(tagType string) []string {
	prefix := tagType + ":"
	var out []string
	for tag := range it.Tags() {
		if strings.HasPrefix(tag, prefix) {
			out = append(out, tag)
		}
	}
	return out
}

// Dump writes the item value followed by one line per classifier listing the
// tags it contributed. Debugging output, not a stable format.
func (it *item) Dump(w io.Writer) {
	fmt.Fprintln(w, it.value)
	for _, name := range it.classifierNames() {
		fmt.Fprintf(w, "\t%s [%s]\n", name, strings.Join(sortedSet(it.tags[name]), " "))
	}
}

func (it *item) classifierNames() []string {
	names := make([]string, 0, len(it.tags))
	for name := range it.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// FileItem is a file which can be classified. Value is the raw path found by
// the locator.
type FileItem struct {
	item
	relpath string
	abspath string
}

// NewFileItem creates a FileItem. relpath is relative to the appliance root
// and is what path classifiers match against; abspath is used to read the
// file itself.
func NewFileItem(value, relpath, abspath string) *FileItem {
	return &FileItem{
		item:    item{value: value},
		relpath: relpath,
		abspath: abspath,
	}
}

func (f *FileItem) Kind() Kind { return KindFile }

// RelPath returns the path relative to the appliance root.
func (f *FileItem) RelPath() string { return f.relpath }

// AbsPath returns the filesystem path of the file.
func (f *FileItem) AbsPath() string { return f.abspath }

// PackageItem is a package installed via plan. Value is the package name.
type PackageItem struct {
	item
	planStack []string
}

// NewPackageItem creates a PackageItem. planStack runs from the base
// (appliance) plan down to the plan that introduced the package; it holds a
// single entry when the package came straight from the appliance plan. The
// stack is copied.
func NewPackageItem(name string, planStack []string) *PackageItem {
	stack := make([]string, len(planStack))
	copy(stack, planStack)
	return &PackageItem{
		item:      item{value: name},
		planStack: stack,
	}
}

func (p *PackageItem) Kind() Kind { return KindPackage }

// PlanStack returns a copy of the include chain.
func (p *PackageItem) PlanStack() []string {
	stack := make([]string, len(p.planStack))
	copy(stack, p.planStack)
	return stack
}

// PlanPath returns the plan file which lists this package, or "" for an
// empty stack.
func (p *PackageItem) PlanPath() string {
	if len(p.planStack) == 0 {
		return ""
	}
	return p.planStack[len(p.planStack)-1]
}

// Compile-time checks.
var (
	_ Item = (*FileItem)(nil)
	_ Item = (*PackageItem)(nil)
)
