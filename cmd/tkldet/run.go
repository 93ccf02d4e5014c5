package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/detective"
)

var (
	flagMinLevel  string
	flagHideFixes bool
	flagNoColor   bool
	flagDisable   []string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <input>",
	Short: "Show the tags each classifier gave to an appliance's items",
	Long:  "Locates the appliance containing input, classifies its files and plan packages and prints every item with its tags grouped by classifier.",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

var lintCmd = &cobra.Command{
	Use:   "lint <input>",
	Short: "Lint an appliance",
	Long:  "Classifies the appliance containing input and runs the linters selected by the tags found.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLint,
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List loaded modules and registered classifiers",
	Args:  cobra.NoArgs,
	RunE:  runModules,
}

func init() {
	classifyCmd.Flags().Bool("save", false, "save the run to the database")

	lintCmd.Flags().Bool("save", false, "save the run to the database")
	lintCmd.Flags().StringVar(&flagMinLevel, "min-level", "", "drop reports below this level (default: lint.min_level from config)")
	lintCmd.Flags().BoolVar(&flagHideFixes, "hide-fixes", false, "leave suggested fixes out of text output")
	lintCmd.Flags().BoolVar(&flagNoColor, "no-color", false, "disable colored text output")
	lintCmd.Flags().StringSliceVar(&flagDisable, "disable", nil, "linters which never run")
}

// runPipeline runs the engine over input and saves the result when asked.
func runPipeline(cmd *cobra.Command, input string) (*detective.Result, string, error) {
	sess, err := newSession(cmd)
	if err != nil {
		return nil, "", err
	}
	defer sess.close()

	res, err := sess.engine.Run(cmd.Context(), input)
	if err != nil {
		return nil, "", err
	}
	if save, _ := cmd.Flags().GetBool("save"); !save {
		return res, "", nil
	}
	if sess.engine.Store() == nil {
		return nil, "", errors.New("--save needs a database: set --db or store.path")
	}
	run, err := sess.engine.Save(res)
	if err != nil {
		return nil, "", err
	}
	return res, run.ID, nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	res, runID, err := runPipeline(cmd, args[0])
	if err != nil {
		return outputError("classify", err)
	}

	if flagFormat == "text" {
		formatDumpText(os.Stdout, res.Items)
		return nil
	}
	return outputResult(CLIResult{
		Command: "classify",
		Results: CLIClassifyResult{Root: res.Root, RunID: runID, Items: toCLIItems(res.Items)},
	})
}

func runLint(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("min-level") {
		cfg.Lint.MinLevel = flagMinLevel
		if err := cfg.Validate(); err != nil {
			return outputError("lint", err)
		}
	}
	if flags.Changed("hide-fixes") {
		cfg.Lint.HideFixes = flagHideFixes
	}
	if flags.Changed("disable") {
		cfg.Lint.Disabled = append(cfg.Lint.Disabled, flagDisable...)
	}

	res, runID, err := runPipeline(cmd, args[0])
	if err != nil {
		return outputError("lint", err)
	}

	if flagFormat == "text" {
		formatReportsText(os.Stdout, res.Reports, !cfg.Lint.HideFixes, !flagNoColor)
		fmt.Fprintf(os.Stderr, "%d reports for %s\n", len(res.Reports), res.Root)
		return nil
	}
	return outputResult(CLIResult{
		Command: "lint",
		Results: CLILintResult{Root: res.Root, RunID: runID, Reports: toCLIReports(res.Reports)},
	})
}

func runModules(cmd *cobra.Command, args []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return outputError("modules", err)
	}
	defer sess.close()

	cs, err := sess.engine.Registry().Weighted()
	if err != nil {
		return outputError("modules", err)
	}
	out := CLIModules{Source: sess.source, Modules: sess.modules, Classifiers: make([]CLIClassifier, len(cs))}
	if out.Modules == nil {
		out.Modules = []string{}
	}
	for i, c := range cs {
		out.Classifiers[i] = CLIClassifier{Name: c.Name(), Weight: c.Weight()}
	}
	return outputResult(CLIResult{Command: "modules", Results: out})
}
