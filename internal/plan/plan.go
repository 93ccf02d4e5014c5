// Package plan resolves TurnKey build plans into the packages they install.
//
// Plans are run through cpp by the build system, but only a small subset of
// it is ever used: comments, #include of other plans and #ifdef/#ifndef
// blocks tested against a fixed set of defines. Parse understands exactly
// that subset.
package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultIncludePath is where the common plans live on a build host.
const DefaultIncludePath = "/turnkey/fab/common/plans"

var (
	// ErrPlanNotFound is returned when an #include names no file on any
	// include path.
	ErrPlanNotFound = errors.New("plan: not found")
	// ErrUnknownDirective is returned for a cpp directive Parse does not
	// handle.
	ErrUnknownDirective = errors.New("plan: unknown directive")
	// ErrInvalidPlan is returned for unbalanced #if*/#else/#endif and for
	// plans which include themselves.
	ErrInvalidPlan = errors.New("plan: invalid plan")
)

// staticDefines are the names considered defined by #ifdef and #ifndef.
var staticDefines = map[string]bool{
	"KERNEL": true,
	"DEBIAN": true,
	"AMD64":  true,
}

// Entry is a single package listed in a plan.
type Entry struct {
	Package string
	// IncludeStack holds every plan in the include chain that led to
	// Package. IncludeStack[0] is the plan Parse was called with,
	// IncludeStack[len-1] the plan the package is listed in.
	IncludeStack []string
}

// PlanPath returns the plan that lists the package.
func (e Entry) PlanPath() string {
	return e.IncludeStack[len(e.IncludeStack)-1]
}

// Parse resolves the plan at path. Each #include is looked up in
// includePaths in order; the first match wins.
func Parse(path string, includePaths []string) ([]Entry, error) {
	return parse(path, includePaths, nil)
}

// IncludedPlans returns the set of every plan file reached while resolving
// entries.
func IncludedPlans(entries []Entry) map[string]bool {
	out := make(map[string]bool)
	for _, e := range entries {
		for _, p := range e.IncludeStack {
			out[p] = true
		}
	}
	return out
}

// cond is one level of #ifdef nesting.
type cond struct {
	parent bool // enclosing block is active
	value  bool // this branch is taken
	inElse bool
}

func (c cond) active() bool { return c.parent && c.value }

func parse(path string, includePaths, stack []string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}

	stack = append(stack[:len(stack):len(stack)], path)

	var (
		entries []Entry
		conds   []cond
	)
	active := func() bool {
		return len(conds) == 0 || conds[len(conds)-1].active()
	}

	for n, line := range strings.Split(stripBlockComments(string(raw)), "\n") {
		line = stripLineComments(line)
		if line == "" {
			continue
		}

		directive, arg, isDirective := splitDirective(line)
		if !isDirective {
			if active() {
				entries = append(entries, Entry{Package: line, IncludeStack: copyStack(stack)})
			}
			continue
		}

		switch directive {
		case "ifdef", "ifndef":
			value := staticDefines[arg]
			if directive == "ifndef" {
				value = !value
			}
			conds = append(conds, cond{parent: active(), value: value})
		case "else":
			if len(conds) == 0 || conds[len(conds)-1].inElse {
				return nil, fmt.Errorf("%w: %s:%d: unexpected #else", ErrInvalidPlan, path, n+1)
			}
			top := &conds[len(conds)-1]
			top.value = !top.value
			top.inElse = true
		case "endif":
			if len(conds) == 0 {
				return nil, fmt.Errorf("%w: %s:%d: unbalanced #endif", ErrInvalidPlan, path, n+1)
			}
			conds = conds[:len(conds)-1]
		case "include":
			if !active() {
				continue
			}
			included, err := include(strings.Trim(arg, "<>\""), includePaths, stack)
			if err != nil {
				return nil, err
			}
			entries = append(entries, included...)
		default:
			if active() {
				return nil, fmt.Errorf("%w: %s:%d: %s", ErrUnknownDirective, path, n+1, line)
			}
		}
	}

	if len(conds) != 0 {
		return nil, fmt.Errorf("%w: %s: unterminated #if", ErrInvalidPlan, path)
	}
	return entries, nil
}

func include(name string, includePaths, stack []string) ([]Entry, error) {
	for _, dir := range includePaths {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			if inStack(candidate, stack) {
				return nil, fmt.Errorf("%w: include cycle: %s (included from %s)", ErrInvalidPlan, candidate, stack[len(stack)-1])
			}
			return parse(candidate, includePaths, stack)
		}
	}
	return nil, fmt.Errorf("%w: %s (included from %s)", ErrPlanNotFound, name, stack[len(stack)-1])
}

// inStack reports whether p is already being parsed further up the chain.
func inStack(p string, stack []string) bool {
	p = filepath.Clean(p)
	for _, s := range stack {
		if filepath.Clean(s) == p {
			return true
		}
	}
	return false
}

// splitDirective splits "#include <foo>" into ("include", "<foo>", true).
func splitDirective(line string) (string, string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", "", false
	}
	rest := strings.TrimSpace(line[1:])
	name, arg, _ := strings.Cut(rest, " ")
	return name, strings.TrimSpace(arg), true
}

// stripLineComments drops "//" comments, and "#" comments on lines which are
// not directives, then trims the result.
func stripLineComments(line string) string {
	line, _, _ = strings.Cut(line, "//")
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#") {
		line, _, _ = strings.Cut(line, "#")
	}
	return strings.TrimSpace(line)
}

// stripBlockComments removes /* */ comments. Unlike C they nest.
func stripBlockComments(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	depth := 0
	for i := 0; i < len(raw); i++ {
		switch {
		case i+1 < len(raw) && raw[i] == '/' && raw[i+1] == '*':
			depth++
			i++
		case depth > 0 && i+1 < len(raw) && raw[i] == '*' && raw[i+1] == '/':
			depth--
			i++
		case depth > 0:
			// Keep line structure so reported line numbers stay right.
			if raw[i] == '\n' {
				b.WriteByte('\n')
			}
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

func copyStack(stack []string) []string {
	out := make([]string, len(stack))
	copy(out, stack)
	return out
}
