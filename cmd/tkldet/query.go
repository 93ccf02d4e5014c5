package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/detective/internal/locator"
	"github.com/jward/detective/internal/store"
)

var (
	flagRun  string
	flagRoot string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query saved runs",
	Long:  "Query the classification runs saved with --save. Without --run the latest run is used, optionally restricted to --root.",
}

var queryRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runQueryRuns,
}

var queryTagsCmd = &cobra.Command{
	Use:   "tags <value>",
	Short: "Show the tags of the items with a value, by classifier",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueryTags,
}

var queryItemsCmd = &cobra.Command{
	Use:   "items <tag>",
	Short: "List the items carrying a tag",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueryItems,
}

func init() {
	queryCmd.PersistentFlags().StringVar(&flagRun, "run", "", "run ID (default: latest run)")
	queryCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "pick the latest run of this appliance root")

	queryCmd.AddCommand(queryRunsCmd)
	queryCmd.AddCommand(queryTagsCmd)
	queryCmd.AddCommand(queryItemsCmd)
}

// --- Helpers ---

// openQueryStore opens the configured store, which must already exist.
func openQueryStore() (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, errors.New("no database: set --db or store.path")
	}
	if _, err := os.Stat(cfg.Store.Path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'tkldet classify --save' first)", cfg.Store.Path)
	}
	return openStore(cfg.Store.Path)
}

// resolveRun returns the run ID selected by --run and --root.
func resolveRun(s *store.Store) (string, error) {
	if flagRun != "" {
		return flagRun, nil
	}
	if flagRoot != "" {
		root, err := queryRoot(flagRoot)
		if err != nil {
			return "", fmt.Errorf("resolving root %q: %w", flagRoot, err)
		}
		run, err := s.LatestRun(root)
		if err != nil {
			return "", err
		}
		if run == nil {
			return "", fmt.Errorf("no saved runs for %s", root)
		}
		return run.ID, nil
	}
	runs, err := s.Runs()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no saved runs")
	}
	return runs[0].ID, nil
}

// queryRoot resolves input to the root a saved run of it carries. Appliance
// names and paths map to the appliance root as classify does; anything else
// is taken as given, with a file standing for its directory.
func queryRoot(input string) (string, error) {
	l := &locator.Locator{
		ProductsDir:  cfg.Locator.ProductsDir,
		IncludePaths: cfg.Locator.IncludePaths,
	}
	root, err := l.ApplianceRoot(input)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, locator.ErrApplianceNotFound) {
		return "", err
	}
	root = filepath.Clean(input)
	if info, err := os.Stat(root); err == nil && info.Mode().IsRegular() {
		root = filepath.Dir(root)
	}
	return root, nil
}

// outputResult writes a CLIResult in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// --- Commands ---

func runQueryRuns(cmd *cobra.Command, args []string) error {
	s, err := openQueryStore()
	if err != nil {
		return outputError("query runs", err)
	}
	defer s.Close()

	runs, err := s.Runs()
	if err != nil {
		return outputError("query runs", err)
	}
	return outputResult(CLIResult{Command: "query runs", Results: toCLIRuns(runs)})
}

func runQueryTags(cmd *cobra.Command, args []string) error {
	s, err := openQueryStore()
	if err != nil {
		return outputError("query tags", err)
	}
	defer s.Close()

	runID, err := resolveRun(s)
	if err != nil {
		return outputError("query tags", err)
	}
	tags, err := s.TagsForValue(runID, args[0])
	if err != nil {
		return outputError("query tags", err)
	}
	if tags == nil {
		return outputError("query tags", fmt.Errorf("no item %q in run %s", args[0], runID))
	}
	return outputResult(CLIResult{Command: "query tags", Results: CLITags{RunID: runID, Value: args[0], Tags: tags}})
}

func runQueryItems(cmd *cobra.Command, args []string) error {
	s, err := openQueryStore()
	if err != nil {
		return outputError("query items", err)
	}
	defer s.Close()

	runID, err := resolveRun(s)
	if err != nil {
		return outputError("query items", err)
	}
	items, err := s.ItemsWithTag(runID, args[0])
	if err != nil {
		return outputError("query items", err)
	}
	return outputResult(CLIResult{
		Command: "query items",
		Results: CLIStoredItems{RunID: runID, Tag: args[0], Items: storedToCLIItems(items)},
	})
}
