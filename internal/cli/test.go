package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/harness"
)

// NewTestCommand creates the test command, which runs scenario suites.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	var dialects []string

	cmd := &cobra.Command{
		Use:   "test <suite.yaml> [suite.yaml...]",
		Short: "Run scenario suites against one or more dialects",
		Long: `Load YAML scenario suites and run each scenario against the selected
dialects, checking expected values, row counts, and error codes, plus
cross-dialect parity of the value sequences.

Example:
  fhirpath-sql test suites/smoke.yaml
  fhirpath-sql test --dialects sqlite,duckdb suites/*.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(rootOpts, dialects, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&dialects, "dialects", []string{"sqlite"},
		"dialects to run scenarios against")
	return cmd
}

type suiteResult struct {
	Suite    string `json:"suite"`
	Scenario string `json:"scenario"`
	Dialect  string `json:"dialect"`
	Passed   bool   `json:"passed"`
	Failures string `json:"failures,omitempty"`
}

func runSuites(opts *RootOptions, dialects []string, paths []string, cmd *cobra.Command) error {
	runner, err := harness.NewRunner(dialects)
	if err != nil {
		return WrapExitError(ExitCommandError, "configure runner", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var results []suiteResult
	passed, failed := 0, 0
	for _, path := range paths {
		suite, err := harness.LoadSuite(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("load %s", path), err)
		}
		outcomes, err := runner.RunSuite(ctx, suite)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("run %s", path), err)
		}
		for _, o := range outcomes {
			r := suiteResult{
				Suite:    path,
				Scenario: o.Scenario,
				Dialect:  o.Dialect,
				Passed:   o.Passed(),
				Failures: strings.Join(o.Failures, "; "),
			}
			results = append(results, r)
			if r.Passed {
				passed++
			} else {
				failed++
			}
		}
	}

	if opts.Format == "json" {
		if err := out.Success(map[string]any{
			"results": results,
			"passed":  passed,
			"failed":  failed,
		}); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range results {
			status := "PASS"
			if !r.Passed {
				status = "FAIL"
			}
			fmt.Fprintf(w, "%s  %s/%s [%s]\n", status, r.Suite, r.Scenario, r.Dialect)
			if r.Failures != "" {
				fmt.Fprintf(w, "      %s\n", r.Failures)
			}
		}
		fmt.Fprintf(w, "%d passed, %d failed\n", passed, failed)
	}

	if failed > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d scenario(s) failed", failed)}
	}
	return nil
}
