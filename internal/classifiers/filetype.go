// Package classifiers holds the built-in classifiers: file extension,
// shebang, ignored directories, the appliance layout and plan provenance.
package classifiers

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jward/detective/internal/classify"
)

// Filetype tags regular files by extension: "ext:<extension>".
type Filetype struct {
	classify.Base
}

// NewFiletype returns the extension classifier.
func NewFiletype() classify.Classifier {
	return &Filetype{Base: classify.NewBase("FiletypeClassifier", classify.KindFile, 10)}
}

func (c *Filetype) Classify(item classify.Item) error {
	f, ok := item.(*classify.FileItem)
	if !ok {
		return nil
	}
	base := filepath.Base(f.Value())
	if !isRegular(f.AbsPath()) || !strings.Contains(base, ".") {
		return nil
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	f.AddTags(c, "ext:"+ext)
	return nil
}

// shebangHeadSize bounds how much of a file is read to find its shebang.
const shebangHeadSize = 512

// Shebang tags regular files by interpreter line: "shebang:/bin/sh", or
// "shebang:/usr/bin/env python3" for env style lines. Files whose first line
// is not valid UTF-8 get "not-utf8".
type Shebang struct {
	classify.Base
}

// NewShebang returns the shebang classifier.
func NewShebang() classify.Classifier {
	return &Shebang{Base: classify.NewBase("ShebangClassifier", classify.KindFile, 10)}
}

func (c *Shebang) Classify(item classify.Item) error {
	f, ok := item.(*classify.FileItem)
	if !ok || !isRegular(f.AbsPath()) {
		return nil
	}

	head, err := readHead(f.AbsPath(), shebangHeadSize)
	if err != nil {
		return err
	}

	// Only a complete first line counts.
	nl := bytes.IndexByte(head, '\n')
	if nl < 0 {
		return nil
	}
	line := bytes.TrimSpace(head[:nl])
	if !utf8.Valid(line) {
		item.AddTags(c, "not-utf8")
		return nil
	}

	parts := strings.Fields(string(line))
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "#!") {
		return nil
	}
	interp := strings.TrimPrefix(parts[0], "#!")
	if interp == "/usr/bin/env" && len(parts) > 1 {
		item.AddTags(c, "shebang:"+interp+" "+parts[1])
		return nil
	}
	item.AddTags(c, "shebang:"+interp)
	return nil
}

func readHead(path string, n int) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(bufio.NewReader(fh), buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
