// Package locator finds the appliance an input refers to and the files and
// packages inside it which are worth classifying.
package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jward/detective/internal/classify"
	"github.com/jward/detective/internal/plan"
)

// DefaultProductsDir is where appliances live on a build host.
const DefaultProductsDir = "/turnkey/fab/products"

// ErrApplianceNotFound is returned when the input is neither an appliance
// name, an appliance path, nor a path inside an appliance.
var ErrApplianceNotFound = errors.New("locator: input does not appear to be an appliance name, " +
	"path to an appliance or path to a file inside of an appliance")

// topLevelFiles are always yielded for an appliance, whether they exist or not.
var topLevelFiles = []string{"Makefile", "changelog", "README.rst", "removelist"}

// Locator resolves inputs against a products directory.
type Locator struct {
	ProductsDir string
	// IncludePaths are searched for plans named by #include.
	IncludePaths []string
	Logger       *slog.Logger
}

// New returns a Locator using the build host defaults.
func New() *Locator {
	return &Locator{
		ProductsDir:  DefaultProductsDir,
		IncludePaths: []string{plan.DefaultIncludePath},
		Logger:       slog.Default(),
	}
}

func (l *Locator) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// IsApplianceName reports whether name is the name of an appliance in the
// products directory.
func (l *Locator) IsApplianceName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return false
	}
	info, err := os.Stat(filepath.Join(l.ProductsDir, name))
	return err == nil && info.IsDir()
}

// IsAppliancePath reports whether p is an appliance directory directly
// inside the products directory.
func (l *Locator) IsAppliancePath(p string) bool {
	p = filepath.Clean(p)
	if p != filepath.Join(l.ProductsDir, filepath.Base(p)) {
		return false
	}
	return isFile(filepath.Join(p, "Makefile"))
}

// IsInsideAppliance reports whether p points somewhere below the products
// directory.
func (l *Locator) IsInsideAppliance(p string) bool {
	rel, ok := l.relToProducts(p)
	return ok && rel != ""
}

func (l *Locator) relToProducts(p string) (string, bool) {
	p = filepath.Clean(p)
	prefix := filepath.Clean(l.ProductsDir) + string(filepath.Separator)
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	return strings.TrimPrefix(p, prefix), true
}

// ApplianceRoot returns the appliance root for an appliance name, an
// appliance path or a path inside an appliance. The root must hold a
// Makefile.
func (l *Locator) ApplianceRoot(input string) (string, error) {
	var root string
	switch {
	case l.IsApplianceName(input):
		root = filepath.Join(l.ProductsDir, input)
	case l.IsAppliancePath(input):
		root = filepath.Clean(input)
	case l.IsInsideAppliance(input):
		rel, _ := l.relToProducts(input)
		name, _, _ := strings.Cut(rel, string(filepath.Separator))
		root = filepath.Join(l.ProductsDir, name)
	}

	if root == "" || !isFile(filepath.Join(root, "Makefile")) {
		l.logger().Info("lint root is not an appliance", "input", input)
		return "", ErrApplianceNotFound
	}
	return root, nil
}

// Files returns every file of an appliance worth classifying: the top level
// files, conf.d/*, plan/* and everything below overlay/. Hidden files and
// anything below a hidden directory are skipped.
func (l *Locator) Files(root string) ([]string, error) {
	out := make([]string, 0, len(topLevelFiles))
	for _, name := range topLevelFiles {
		out = append(out, filepath.Join(root, name))
	}
	for _, pattern := range []string{"conf.d/*", "plan/*", "overlay/**"} {
		matches, err := glob(root, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !hidden(root, m) {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// Everything returns root itself when it is a file, and otherwise every
// path below it, hidden files included.
func (l *Locator) Everything(root string) ([]string, error) {
	if isFile(root) {
		return []string{root}, nil
	}
	return glob(root, "**")
}

// Locate resolves input and returns the root and the file paths to classify.
// When input is not an appliance and ignoreNonAppliance is set, every path
// below input is returned with input as the root.
func (l *Locator) Locate(input string, ignoreNonAppliance bool) (string, []string, error) {
	root, err := l.ApplianceRoot(input)
	if err == nil {
		files, err := l.Files(root)
		return root, files, err
	}
	if !errors.Is(err, ErrApplianceNotFound) || !ignoreNonAppliance {
		return "", nil, err
	}

	l.logger().Debug("input is not an appliance, locating everything", "input", input)
	root = filepath.Clean(input)
	files, err := l.Everything(root)
	if err != nil {
		return "", nil, err
	}
	if isFile(root) {
		root = filepath.Dir(root)
	}
	return root, files, nil
}

// FileItems builds classify items for paths found under root.
func FileItems(root string, paths []string) ([]*classify.FileItem, error) {
	items := make([]*classify.FileItem, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("locator: %s: %w", p, err)
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, fmt.Errorf("locator: %s: %w", p, err)
		}
		items = append(items, classify.NewFileItem(p, filepath.ToSlash(rel), abs))
	}
	return items, nil
}

// PackageItems parses every plan in root/plan and returns one item per
// package entry, in plan file order.
func (l *Locator) PackageItems(root string) ([]*classify.PackageItem, error) {
	plans, err := glob(root, "plan/*")
	if err != nil {
		return nil, err
	}

	var items []*classify.PackageItem
	for _, p := range plans {
		if !isFile(p) {
			continue
		}
		entries, err := plan.Parse(p, l.IncludePaths)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			items = append(items, classify.NewPackageItem(e.Package, e.IncludeStack))
		}
	}
	return items, nil
}

// glob matches pattern below root and returns the matches joined to root,
// sorted. A missing root yields nothing.
func glob(root, pattern string) ([]string, error) {
	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("locator: glob %s in %s: %w", pattern, root, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if m == "." {
			continue
		}
		out = append(out, filepath.Join(root, filepath.FromSlash(m)))
	}
	sort.Strings(out)
	return out, nil
}

// hidden reports whether any element of p below root starts with a dot.
func hidden(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(elem, ".") && elem != "." && elem != ".." {
			return true
		}
	}
	return false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
