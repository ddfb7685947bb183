package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/refbind/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // glob over scenario file names, without extension
}

// Golden comparison states reported per scenario.
const (
	GoldenMatched  = "matched"
	GoldenUpdated  = "updated"
	GoldenMismatch = "mismatch"
)

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // empty when the scenario has no golden file
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the outcome of a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run the YAML conformance scenarios found under a directory.

Each scenario attaches one binding point, seeds it, plays host and surface
messages against it, then checks step outcomes and final state assertions.
A scenario with a golden file in golden/ next to it must also reproduce
that trace byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, bad filter)

Examples:
  refbind test ./scenarios
  refbind test ./scenarios --filter "replace_*"
  refbind test ./scenarios --update
  refbind test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd)

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	if len(files) == 0 {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	for _, file := range files {
		formatter.VerboseLog("Running %s", file)
		sr := runScenarioFile(file, opts.Update)
		if !formatter.JSON() {
			printScenario(formatter.Writer, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	return reportTests(formatter, result)
}

// findScenarioFiles returns the .yaml and .yml files under dir in lexical
// order, skipping golden/ directories.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenarioFile loads, runs and golden-checks one scenario file.
func runScenarioFile(path string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return failedScenario(filepath.Base(path), "Load error: %v", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return failedScenario(scenario.Name, "Execution error: %v", err)
	}

	sr := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return failedScenario(scenario.Name, "Snapshot error: %v", err)
	}

	golden := goldenFilePath(path)
	if update {
		if err := writeGolden(golden, snapshot); err != nil {
			return failedScenario(scenario.Name, "Golden update error: %v", err)
		}
		sr.Golden = GoldenUpdated
		return sr
	}

	want, err := os.ReadFile(golden)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return failedScenario(scenario.Name, "Golden read error: %v", err)
	case bytes.Equal(want, snapshot):
		sr.Golden = GoldenMatched
	default:
		sr.Golden = GoldenMismatch
		sr.Pass = false
		sr.Errors = append(sr.Errors, "Golden file mismatch (run with --update to regenerate)")
	}
	return sr
}

func failedScenario(name, format string, args ...any) ScenarioResult {
	return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
}

// goldenFilePath maps scenarios/foo.yaml to scenarios/golden/foo.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func printScenario(w io.Writer, sr ScenarioResult) {
	mark := "✓"
	if !sr.Pass {
		mark = "✗"
	}
	suffix := ""
	if sr.Golden == GoldenUpdated {
		suffix = " (golden updated)"
	}
	fmt.Fprintf(w, "%s %s%s\n", mark, sr.Name, suffix)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func reportTests(formatter *OutputFormatter, result TestResult) error {
	var failed error
	if result.Failed > 0 {
		failed = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	if formatter.JSON() {
		if failed == nil {
			return formatter.Success(result)
		}
		if err := formatter.Failure(result, "E_TEST_FAILED", failed.Error()); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if failed != nil {
		return failed
	}
	fmt.Fprintln(formatter.Writer, "✓ All scenarios passed")
	return nil
}
