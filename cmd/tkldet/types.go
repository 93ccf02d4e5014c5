package main

import (
	"time"

	"github.com/jward/detective/internal/classify"
	"github.com/jward/detective/internal/lint"
	"github.com/jward/detective/internal/store"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIItem is a JSON-friendly classified item.
type CLIItem struct {
	Kind      string              `json:"kind"`
	Value     string              `json:"value"`
	RelPath   string              `json:"relpath,omitempty"`
	AbsPath   string              `json:"abspath,omitempty"`
	PlanStack []string            `json:"plan_stack,omitempty"`
	Tags      map[string][]string `json:"tags"`
}

// CLIClassifyResult is the result of the classify command.
type CLIClassifyResult struct {
	Root  string    `json:"root"`
	RunID string    `json:"run_id,omitempty"`
	Items []CLIItem `json:"items"`
}

// CLIReport is a JSON-friendly lint report.
type CLIReport struct {
	Path     string `json:"path"`
	Level    string `json:"level"`
	Message  string `json:"message"`
	Source   string `json:"source"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Location string `json:"location,omitempty"`
	Fix      string `json:"fix,omitempty"`
}

// CLILintResult is the result of the lint command.
type CLILintResult struct {
	Root    string      `json:"root"`
	RunID   string      `json:"run_id,omitempty"`
	Reports []CLIReport `json:"reports"`
}

// CLIClassifier describes a registered classifier.
type CLIClassifier struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// CLIModules is the result of the modules command.
type CLIModules struct {
	Source      string          `json:"source"`
	Modules     []string        `json:"modules"`
	Classifiers []CLIClassifier `json:"classifiers"`
}

// CLITags is the result of query tags.
type CLITags struct {
	RunID string              `json:"run_id"`
	Value string              `json:"value"`
	Tags  map[string][]string `json:"tags"`
}

// CLIStoredItems is the result of query items.
type CLIStoredItems struct {
	RunID string    `json:"run_id"`
	Tag   string    `json:"tag"`
	Items []CLIItem `json:"items"`
}

// CLIRun is a JSON-friendly stored run.
type CLIRun struct {
	ID        string `json:"id"`
	Root      string `json:"root"`
	StartedAt string `json:"started_at"`
}

// --- Conversion helpers ---

func toCLIItem(it classify.Item) CLIItem {
	out := CLIItem{
		Kind:  string(it.Kind()),
		Value: it.Value(),
		Tags:  it.TagsByClassifier(),
	}
	switch v := it.(type) {
	case *classify.FileItem:
		out.RelPath = v.RelPath()
		out.AbsPath = v.AbsPath()
	case *classify.PackageItem:
		out.PlanStack = v.PlanStack()
	}
	return out
}

func toCLIItems(items []classify.Item) []CLIItem {
	out := make([]CLIItem, len(items))
	for i, it := range items {
		out[i] = toCLIItem(it)
	}
	return out
}

func storedToCLIItems(items []*store.Item) []CLIItem {
	out := make([]CLIItem, len(items))
	for i, it := range items {
		tags := it.Tags
		if tags == nil {
			tags = map[string][]string{}
		}
		out[i] = CLIItem{
			Kind:      it.Kind,
			Value:     it.Value,
			RelPath:   it.RelPath,
			AbsPath:   it.AbsPath,
			PlanStack: it.PlanStack,
			Tags:      tags,
		}
	}
	return out
}

func toCLIReports(reports []lint.Report) []CLIReport {
	out := make([]CLIReport, len(reports))
	for i, r := range reports {
		out[i] = CLIReport{
			Path:     r.Path(),
			Level:    r.Level.String(),
			Message:  r.Message,
			Source:   r.Source,
			Line:     r.Line,
			Column:   r.Column,
			Location: r.Location,
			Fix:      r.Fix,
		}
	}
	return out
}

func toCLIRuns(runs []*store.Run) []CLIRun {
	out := make([]CLIRun, len(runs))
	for i, r := range runs {
		out[i] = CLIRun{ID: r.ID, Root: r.Root, StartedAt: r.StartedAt.UTC().Format(time.RFC3339)}
	}
	return out
}
