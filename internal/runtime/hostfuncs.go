package runtime

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/detective/internal/grammar"
)

// maxReadText caps how much of a file read_text returns.
const maxReadText = 1 << 20

// makeReadTextFn creates the "read_text" host function.
//
// read_text(path) → string
func makeReadTextFn() *object.Builtin {
	return object.NewBuiltin("read_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("read_text", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("read_text: path %v", err)
		}

		fh, err := os.Open(path)
		if err != nil {
			return object.Errorf("read_text: %v", err)
		}
		defer fh.Close()

		data, err := io.ReadAll(io.LimitReader(fh, maxReadText))
		if err != nil {
			return object.Errorf("read_text: reading %s: %v", path, err)
		}
		return object.NewString(string(data))
	})
}

// makeQuerySrcFn creates the "query_src" host function, which runs a
// tree-sitter query over source text.
//
// query_src(source, language, pattern) → [{capture: {text, line, column}}]
//
// Lines are 1-based, columns 0-based.
func makeQuerySrcFn() *object.Builtin {
	return object.NewBuiltin("query_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("query_src", 3, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("query_src: source %v", err)
		}
		langName, err := toString(args[1])
		if err != nil {
			return object.Errorf("query_src: language %v", err)
		}
		pattern, err := toString(args[2])
		if err != nil {
			return object.Errorf("query_src: pattern %v", err)
		}

		lang, ok := grammar.ForLanguage(langName)
		if !ok {
			return object.Errorf("query_src: unsupported language %q", langName)
		}
		tree, err := grammar.Parse(ctx, langName, []byte(src))
		if err != nil {
			return object.Errorf("query_src: %v", err)
		}

		q, err := sitter.NewQuery([]byte(pattern), lang)
		if err != nil {
			return object.Errorf("query_src: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, tree.RootNode())

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, []byte(src))

			captures := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				start := c.Node.StartPoint()
				captures[q.CaptureNameForId(c.Index)] = object.NewMap(map[string]object.Object{
					"text":   object.NewString(c.Node.Content([]byte(src))),
					"line":   object.NewInt(int64(start.Row) + 1),
					"column": object.NewInt(int64(start.Column)),
				})
			}
			if len(captures) > 0 {
				results = append(results, object.NewMap(captures))
			}
		}
		return object.NewList(results)
	})
}

// logObject provides log.Debug/Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Debug(msg string) {
	l.logger.Debug(msg)
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
