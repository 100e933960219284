package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/store"
)

// loadResult is the JSON payload of the load command.
type loadResult struct {
	File   string `json:"file"`
	Loaded int    `json:"loaded"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <resources.ndjson>",
		Short: "Load newline-delimited JSON resources into the resource table",
		Long: `Create the resource table if needed and load resources from a
newline-delimited JSON file, one document per line.

Example:
  fhirpath-sql load --dialect duckdb --db ./clinical.db ./patients.ndjson`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runLoad(opts *RootOptions, path string, cmd *cobra.Command) error {
	if opts.Database == "" {
		return &ExitError{Code: ExitCommandError, Message: "load requires --db"}
	}
	configureLogging(opts)

	d, err := dialectFor(opts)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "open resource file", err)
	}
	defer f.Close()

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

	if err := st.EnsureSchema(ctx); err != nil {
		return WrapExitError(ExitCommandError, "prepare resource table", err)
	}
	n, err := st.LoadNDJSON(ctx, f)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("load failed after %d resources", n), err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return out.Success(loadResult{File: path, Loaded: n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d resources from %s\n", n, path)
	return nil
}
