package lint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jward/detective/internal/classify"
	"github.com/jward/detective/internal/grammar"
)

// RegisterDefaults registers the built-in linters and no filters.
func RegisterDefaults(r *Registry) {
	r.RegisterLinter(NewJSONLinter)
	r.RegisterLinter(NewYAMLLinter)
	r.RegisterLinter(NewConfDLinter)
	r.RegisterLinter(NewSyntaxLinter)
}

func fileItem(item classify.Item) (*classify.FileItem, error) {
	f, ok := item.(*classify.FileItem)
	if !ok {
		return nil, fmt.Errorf("expected file item, got %s", item.Kind())
	}
	return f, nil
}

// JSONLinter reports files tagged ext:json which do not parse.
type JSONLinter struct {
	Base
}

func NewJSONLinter() Linter {
	return &JSONLinter{Base: NewBase("JSONLinter", classify.KindFile, 0, []string{"ext:json"}, nil)}
}

func (l *JSONLinter) Check(ctx context.Context, item classify.Item) ([]Report, error) {
	f, err := fileItem(item)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.AbsPath())
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	err = dec.Decode(&v)
	if err == nil {
		// Trailing data after the first value.
		if _, terr := dec.Token(); !errors.Is(terr, io.EOF) {
			line, col := position(data, int(dec.InputOffset()))
			return []Report{{
				Item:    item,
				Message: "unexpected data after top-level value",
				Source:  "json_check",
				Level:   Error,
				Line:    line,
				Column:  col,
			}}, nil
		}
		return nil, nil
	}

	r := Report{Item: item, Message: err.Error(), Source: "json_check", Level: Error}
	var syntax *json.SyntaxError
	switch {
	case errors.As(err, &syntax):
		r.Line, r.Column = position(data, int(syntax.Offset))
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		r.Message = "unexpected end of JSON input"
		r.Line, r.Column = position(data, len(data))
	}
	return []Report{r}, nil
}

// position converts a byte offset into a 1-based line and 0-based column.
func position(data []byte, offset int) (int, int) {
	offset = min(max(offset, 0), len(data))
	head := data[:offset]
	line := bytes.Count(head, []byte("\n")) + 1
	col := offset - (bytes.LastIndexByte(head, '\n') + 1)
	return line, col
}

// YAMLLinter reports files tagged ext:yaml or ext:yml which do not parse.
// Only syntax is checked; custom tags are accepted.
type YAMLLinter struct {
	Base
}

func NewYAMLLinter() Linter {
	return &YAMLLinter{Base: NewBase("YAMLLinter", classify.KindFile, 0, []string{"ext:yaml", "ext:yml"}, nil)}
}

// yamlLineRe pulls the line out of yaml.v3 messages such as
// "yaml: line 3: mapping values are not allowed in this context".
var yamlLineRe = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)

func (l *YAMLLinter) Check(ctx context.Context, item classify.Item) ([]Report, error) {
	f, err := fileItem(item)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(f.AbsPath())
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	dec := yaml.NewDecoder(fh)
	var reports []Report
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return reports, nil
		}
		if err == nil {
			continue
		}
		r := Report{Item: item, Message: err.Error(), Source: "yaml_check", Level: Error}
		if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
			r.Line, _ = strconv.Atoi(m[1])
			r.Message = m[2]
		}
		// The decoder cannot resume after a syntax error.
		return append(reports, r), nil
	}
}

// ConfDLinter reports conf.d scripts which are not executable.
type ConfDLinter struct {
	Base
}

func NewConfDLinter() Linter {
	return &ConfDLinter{Base: NewBase("ConfDLinter", classify.KindFile, 0, []string{"appliance-conf.d"}, nil)}
}

func (l *ConfDLinter) Check(ctx context.Context, item classify.Item) ([]Report, error) {
	f, err := fileItem(item)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(f.AbsPath())
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm()&0o111 != 0 {
		return nil, nil
	}
	return []Report{{
		Item:    item,
		Message: "conf.d script isn't executable",
		Fix:     fmt.Sprintf("`chmod +x %s`", f.AbsPath()),
		Source:  "confd linter",
		Level:   Error,
	}}, nil
}

// SyntaxLinter parses python and shell files with tree-sitter and reports
// syntax errors. Files under ignored directories are skipped.
type SyntaxLinter struct {
	Base
}

func NewSyntaxLinter() Linter {
	return &SyntaxLinter{Base: NewBase("SyntaxLinter", classify.KindFile, 0, nil,
		[]string{"ignore:__pycache__", "ignore:.git", "not-utf8"})}
}

// maxSyntaxReports bounds the reports for a single file; one real mistake
// can cascade into many error nodes.
const maxSyntaxReports = 5

func (l *SyntaxLinter) Check(ctx context.Context, item classify.Item) ([]Report, error) {
	lang, ok := grammar.LanguageForItem(item)
	if !ok {
		return nil, nil
	}
	f, err := fileItem(item)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(f.AbsPath())
	if err != nil {
		return nil, err
	}
	tree, err := grammar.Parse(ctx, lang, src)
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, p := range grammar.Problems(tree) {
		if len(reports) == maxSyntaxReports {
			break
		}
		msg := fmt.Sprintf("%s syntax error", lang)
		if p.Missing {
			msg = fmt.Sprintf("%s syntax error: missing %s", lang, p.Node)
		}
		reports = append(reports, Report{
			Item:    item,
			Message: msg,
			Source:  "tree-sitter",
			Level:   Error,
			Line:    p.Line,
			Column:  p.Column,
			Raw:     map[string]any{"language": lang, "node": p.Node},
		})
	}
	return reports, nil
}

// MinLevelFilter drops reports below Min.
type MinLevelFilter struct {
	Min Level
}

func (f *MinLevelFilter) Name() string { return "MinLevelFilter" }

// Weight puts the level cut after every default weight filter.
func (f *MinLevelFilter) Weight() int { return 1000 }

func (f *MinLevelFilter) Filter(r Report) []Report {
	if r.Level < f.Min {
		return nil
	}
	return []Report{r}
}
