package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/executor"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	AllDialects bool
}

// compileResult is the JSON payload for one compiled expression.
type compileResult struct {
	Expression string `json:"expression"`
	Dialect    string `json:"dialect"`
	Resource   string `json:"resource,omitempty"`
	Fragments  int    `json:"fragments"`
	Stages     int    `json:"stages"`
	SQL        string `json:"sql"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <expression>",
		Short: "Compile an expression to SQL without executing it",
		Long: `Compile a FHIRPath expression into a single SQL statement for the
selected dialect and print it.

Example:
  fhirpath-sql compile "Patient.name.where(use = 'official').family"
  fhirpath-sql compile --dialect postgres "Observation.value.ofType(Quantity)"
  fhirpath-sql compile --all "Patient.birthDate"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AllDialects, "all", false, "compile for every registered dialect")

	return cmd
}

func runCompile(opts *CompileOptions, expression string, cmd *cobra.Command) error {
	reg, err := schema.Default()
	if err != nil {
		return WrapExitError(ExitCommandError, "load schema registry", err)
	}

	targets := []string{opts.Dialect}
	if opts.AllDialects {
		targets = dialect.Names()
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	var results []compileResult
	for _, name := range targets {
		d, err := dialect.Get(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "select dialect", err)
		}
		c, err := executor.Compile(expression, d, reg, opts.Table)
		if err != nil {
			_ = out.Failure(err.Error())
			return WrapExitError(ExitFailure, fmt.Sprintf("compile for %s", name), err)
		}
		results = append(results, compileResult{
			Expression: c.Expression,
			Dialect:    c.Dialect,
			Resource:   c.Resource,
			Fragments:  c.Fragments,
			Stages:     c.Stages,
			SQL:        c.SQL,
		})
	}

	if opts.Format == "json" {
		if len(results) == 1 {
			return out.Success(results[0])
		}
		return out.Success(results)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		if len(results) > 1 {
			fmt.Fprintf(cmd.OutOrStdout(), "-- %s\n", r.Dialect)
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.SQL)
	}
	return nil
}
