package classify

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// copyTags gives every matched item its own tag slice.
func copyTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

// ExactPath tags file items whose relative path equals Path. The comparison
// is plain string equality with no normalization.
type ExactPath struct {
	Base
	Path string
	Tags []string
}

// NewExactPath returns an ExactPath classifier with the default weight.
func NewExactPath(name, p string, tags ...string) *ExactPath {
	return &ExactPath{
		Base: NewBase(name, KindFile, 0),
		Path: p,
		Tags: tags,
	}
}

func (c *ExactPath) Classify(item Item) error {
	f, ok := item.(*FileItem)
	if !ok {
		return nil
	}
	if f.RelPath() == c.Path {
		f.AddTags(c, copyTags(c.Tags)...)
	}
	return nil
}

// Subdir tags file items inside the directory Path. When Recursive is false
// only direct children match; otherwise any descendant does. Paths are
// compared as strings, so "." or ".." segments are not resolved.
type Subdir struct {
	Base
	Path      string
	Recursive bool
	Tags      []string
}

// NewSubdir returns a Subdir classifier with the default weight.
func NewSubdir(name, dir string, recursive bool, tags ...string) *Subdir {
	return &Subdir{
		Base:      NewBase(name, KindFile, 0),
		Path:      dir,
		Recursive: recursive,
		Tags:      tags,
	}
}

func (c *Subdir) Classify(item Item) error {
	f, ok := item.(*FileItem)
	if !ok {
		return nil
	}
	if c.matches(f.RelPath()) {
		f.AddTags(c, copyTags(c.Tags)...)
	}
	return nil
}

func (c *Subdir) matches(rel string) bool {
	if !c.Recursive {
		return parentDir(rel) == c.Path
	}
	dir := strings.TrimSuffix(c.Path, "/")
	if dir == "" {
		return true
	}
	// "etc/init.dx/foo" must not match "etc/init.d".
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}

// parentDir returns rel up to its last slash, or "" for a top-level path.
// Unlike path.Dir the result is not cleaned.
func parentDir(rel string) string {
	i := strings.LastIndexByte(rel, '/')
	if i < 0 {
		return ""
	}
	return rel[:i]
}

// Glob tags file items whose relative path matches a doublestar pattern,
// e.g. "overlay/etc/**/*.conf".
type Glob struct {
	Base
	Pattern string
	Tags    []string
}

// NewGlob returns a Glob classifier with the default weight. The pattern is
// validated up front.
func NewGlob(name, pattern string, tags ...string) (*Glob, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}
	return &Glob{
		Base:    NewBase(name, KindFile, 0),
		Pattern: pattern,
		Tags:    tags,
	}, nil
}

func (c *Glob) Classify(item Item) error {
	f, ok := item.(*FileItem)
	if !ok {
		return nil
	}
	matched, err := doublestar.Match(c.Pattern, f.RelPath())
	if err != nil {
		return err
	}
	if matched {
		f.AddTags(c, copyTags(c.Tags)...)
	}
	return nil
}
