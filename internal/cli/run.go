package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/executor"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/store"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <expression>",
		Short: "Compile an expression and execute it against the database",
		Long: `Compile a FHIRPath expression and run the resulting statement against
the resource table, printing one row per result.

Example:
  fhirpath-sql run --dialect duckdb --db ./clinical.db "Patient.name.given"
  fhirpath-sql run --dialect sqlite --db ./data.db --format csv "Patient.birthDate"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runQuery(opts *RootOptions, expression string, cmd *cobra.Command) error {
	if opts.Database == "" {
		return &ExitError{Code: ExitCommandError, Message: "run requires --db"}
	}
	configureLogging(opts)

	d, err := dialectFor(opts)
	if err != nil {
		return err
	}
	reg, err := schema.Default()
	if err != nil {
		return WrapExitError(ExitCommandError, "load schema registry", err)
	}

	storeOpts := []store.Option{}
	if opts.Table != "" {
		storeOpts = append(storeOpts, store.WithTable(opts.Table))
	}
	st, err := store.Open(d, opts.Database, storeOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	exec := executor.New(st, reg)
	res, err := exec.Run(ctx, expression)
	if err != nil {
		_ = out.Failure(err.Error())
		return WrapExitError(ExitFailure, "run expression", err)
	}

	out.VerboseLog("-- trace %s, %d rows in %s", res.Trace, len(res.Rows), res.Duration)
	out.VerboseLog("%s", res.SQL)
	return out.WriteRows(res.Rows)
}

// configureLogging routes structured logs to stderr, at debug level when
// verbose.
func configureLogging(opts *RootOptions) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// commandContext derives a context cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
