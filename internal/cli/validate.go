package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/ast"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/cte"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/executor"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/parser"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/translator"
)

// validateResult is the JSON payload for one validated expression.
type validateResult struct {
	Expression string `json:"expression"`
	Valid      bool   `json:"valid"`
	Stage      string `json:"stage,omitempty"` // failing pipeline stage
	Error      string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <expression>...",
		Short: "Check expressions without executing them",
		Long: `Validate one or more FHIRPath expressions: parse them, resolve paths
against the schema registry, and translate for the selected dialect.
Nothing is executed. Exits non-zero when any expression is invalid.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, expressions []string, cmd *cobra.Command) error {
	reg, err := schema.Default()
	if err != nil {
		return WrapExitError(ExitCommandError, "load schema registry", err)
	}
	d, err := dialectFor(opts)
	if err != nil {
		return err
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	results := make([]validateResult, 0, len(expressions))
	failed := 0
	for _, expr := range expressions {
		r := validateResult{Expression: expr, Valid: true}
		if _, err := executor.Compile(expr, d, reg, opts.Table); err != nil {
			r.Valid = false
			r.Stage = failingStage(err)
			r.Error = err.Error()
			failed++
		}
		results = append(results, r)
	}

	if opts.Format == "json" {
		if err := out.Success(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s\n", r.Expression)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL\t%s\t[%s] %s\n", r.Expression, r.Stage, r.Error)
			}
		}
	}

	if failed > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d of %d expressions invalid", failed, len(expressions))}
	}
	return nil
}

// failingStage names the pipeline stage a compile error came from.
func failingStage(err error) string {
	var perr *parser.ParseError
	if errors.As(err, &perr) {
		return "parse"
	}
	if _, ok := ast.AsAdapterError(err); ok {
		return "adapt"
	}
	if _, ok := translator.AsTranslationError(err); ok {
		return "translate"
	}
	if _, ok := cte.AsAssemblyError(err); ok {
		return "assemble"
	}
	return "unknown"
}
