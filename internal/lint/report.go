// Package lint runs linters over classified items and passes the resulting
// reports through filters.
//
// Linters choose items by tag: a linter with enable tags only sees items
// carrying at least one of them, and never sees items carrying any of its
// disable tags.
package lint

import (
	"fmt"
	"strings"

	"github.com/jward/detective/internal/classify"
)

// Level is the severity of a report, from informational up to security.
type Level int

const (
	Info Level = iota + 1
	Convention
	Refactor
	Warn
	Error
	Security
)

var levelNames = map[Level]string{
	Info:       "INFO",
	Convention: "CONVENTION",
	Refactor:   "REFACTOR",
	Warn:       "WARN",
	Error:      "ERROR",
	Security:   "SECURITY",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Color returns the ANSI color escape used when printing l.
func (l Level) Color() string {
	switch l {
	case Info, Convention:
		return colorCyan
	case Refactor, Warn:
		return colorYellow
	case Error, Security:
		return colorRed
	}
	return ""
}

// ParseLevel accepts the level names and the aliases used by common linters
// ("w", "warning", "fatal", ...), case insensitively.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(raw) {
	case "i", "info", "note", "message":
		return Info, nil
	case "c", "convention":
		return Convention, nil
	case "r", "refactor":
		return Refactor, nil
	case "w", "warn", "warning":
		return Warn, nil
	case "e", "err", "error", "fatal", "critical":
		return Error, nil
	case "s", "security":
		return Security, nil
	}
	return 0, fmt.Errorf("lint: unknown report level %q", raw)
}

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
)

// Report is an issue found by a linter on an item.
type Report struct {
	Item classify.Item
	// Location is optional free-form context, e.g. a function name.
	Location string
	Message  string
	Fix      string
	// Source names what produced the report.
	Source string
	Level  Level
	// Line is 1-based, Column 0-based. Zero Line means the whole item.
	Line   int
	Column int
	// Raw holds source specific data. Not guaranteed to be set.
	Raw map[string]any
}

// Path returns the item's path relative to the appliance root for files,
// and the package name for packages.
func (r Report) Path() string {
	if f, ok := r.Item.(*classify.FileItem); ok {
		return f.RelPath()
	}
	return r.Item.Value()
}

// Format renders the report for a terminal. When color is false no ANSI
// escapes are written.
func (r Report) Format(suggestedFix, color bool) string {
	paint := func(code, s string) string {
		if !color || code == "" {
			return s
		}
		return code + s + colorReset
	}

	var b strings.Builder
	fmt.Fprintf(&b, "|  %s %s\n", paint(r.Level.Color(), r.Level.String()), paint(r.Level.Color(), r.Message))
	switch {
	case r.Line > 0:
		fmt.Fprintf(&b, "@%s +%d", r.Path(), r.Line)
		if r.Column > 0 {
			fmt.Fprintf(&b, ":%d", r.Column)
		}
		b.WriteByte('\n')
	default:
		fmt.Fprintf(&b, "@%s\n", r.Path())
	}
	if r.Location != "" {
		fmt.Fprintf(&b, "in %s\n", r.Location)
	}
	if suggestedFix && r.Fix != "" {
		fmt.Fprintf(&b, "%s\n", paint(colorCyan, "suggested fix: "+r.Fix))
	}
	return strings.TrimRight(b.String(), "\n")
}
