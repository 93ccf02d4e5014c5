package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jward/detective/internal/classify"
	"github.com/jward/detective/internal/lint"
)

// formatDumpText writes every item's Dump, separated by blank lines.
func formatDumpText(w io.Writer, items []classify.Item) {
	for i, it := range items {
		if i > 0 {
			fmt.Fprintln(w)
		}
		it.Dump(w)
	}
}

// formatReportsText writes each report as printed on a terminal, separated
// by blank lines.
func formatReportsText(w io.Writer, reports []lint.Report, fixes, color bool) {
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, r.Format(fixes, color))
	}
}

// formatItemsText formats stored items as aligned columns, one row per tag.
func formatItemsText(w io.Writer, items []CLIItem) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tVALUE\tCLASSIFIER\tTAG")
	for _, it := range items {
		for _, name := range sortedKeys(it.Tags) {
			for _, tag := range it.Tags[name] {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Kind, it.Value, name, tag)
			}
		}
	}
	tw.Flush()
}

// formatTagsText formats a tag mapping the way Dump does.
func formatTagsText(w io.Writer, tags CLITags) {
	fmt.Fprintln(w, tags.Value)
	for _, name := range sortedKeys(tags.Tags) {
		fmt.Fprintf(w, "\t%s [%s]\n", name, strings.Join(tags.Tags[name], " "))
	}
}

// formatModulesText formats CLIModules as readable text.
func formatModulesText(w io.Writer, m CLIModules) {
	fmt.Fprintf(w, "Source: %s\n", m.Source)
	fmt.Fprintf(w, "Modules: %s\n", strings.Join(m.Modules, ", "))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WEIGHT\tCLASSIFIER")
	for _, c := range m.Classifiers {
		fmt.Fprintf(tw, "%d\t%s\n", c.Weight, c.Name)
	}
	tw.Flush()
}

// formatRunsText formats CLIRun results as aligned columns.
func formatRunsText(w io.Writer, runs []CLIRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tROOT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.StartedAt, r.Root)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	return writeResultText(os.Stdout, result)
}

func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIStoredItems:
		formatItemsText(w, v.Items)
	case CLITags:
		formatTagsText(w, v)
	case CLIModules:
		formatModulesText(w, v)
	case []CLIRun:
		formatRunsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
