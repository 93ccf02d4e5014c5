// Package grammar maps classified items to tree-sitter grammars and parses
// their contents.
package grammar

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jward/detective/internal/classify"
)

// extToLanguage maps "ext:" variant tags to language names.
var extToLanguage = map[string]string{
	"ext:py":   "python",
	"ext:sh":   "bash",
	"ext:bash": "bash",
}

// Lazily initialized on first call via sync.Once.
var (
	langToGrammar map[string]*sitter.Language
	grammarsOnce  sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		langToGrammar = map[string]*sitter.Language{
			"python": python.GetLanguage(),
			"bash":   bash.GetLanguage(),
		}
	})
}

// LanguageForItem picks a language from an item's ext: and shebang: tags.
// Extension wins over shebang. Returns ("", false) when neither gives a
// supported language.
func LanguageForItem(item classify.Item) (string, bool) {
	for _, tag := range item.TagsWithType("ext") {
		if lang, ok := extToLanguage[tag]; ok {
			return lang, true
		}
	}
	for _, tag := range item.TagsWithType("shebang") {
		if lang, ok := languageForInterpreter(strings.TrimPrefix(tag, "shebang:")); ok {
			return lang, true
		}
	}
	return "", false
}

// languageForInterpreter handles both "/bin/sh" and "/usr/bin/env python3".
func languageForInterpreter(interp string) (string, bool) {
	fields := strings.Fields(interp)
	if len(fields) == 0 {
		return "", false
	}
	prog := fields[len(fields)-1]
	if i := strings.LastIndexByte(prog, '/'); i >= 0 {
		prog = prog[i+1:]
	}
	switch {
	case strings.HasPrefix(prog, "python"):
		return "python", true
	case prog == "sh" || prog == "bash" || prog == "dash":
		return "bash", true
	}
	return "", false
}

// ForLanguage returns the tree-sitter Language for a language name.
func ForLanguage(lang string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := langToGrammar[lang]
	return l, ok
}

// Parse parses src with the grammar for lang.
func Parse(ctx context.Context, lang string, src []byte) (*sitter.Tree, error) {
	language, ok := ForLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("grammar: unsupported language %q", lang)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(language)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("grammar: parse %s: %w", lang, err)
	}
	return tree, nil
}

// Problem is a syntax error found in a parse tree.
type Problem struct {
	Line    int // 1-based
	Column  int // 0-based
	Missing bool
	Node    string
}

// Problems walks tree and returns every ERROR and MISSING node in source
// order. Children of an ERROR node are not reported separately.
func Problems(tree *sitter.Tree) []Problem {
	var out []Problem
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		isError := n.Type() == "ERROR"
		if isError || n.IsMissing() {
			p := n.StartPoint()
			out = append(out, Problem{
				Line:    int(p.Row) + 1,
				Column:  int(p.Column),
				Missing: n.IsMissing(),
				Node:    n.Type(),
			})
			if isError {
				return
			}
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return out
}
