package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "text" | "json" | "csv"
	Dialect  string
	Database string
	Table    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "csv"}

// NewRootCommand creates the root command for the fhirpath-sql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fhirpath-sql",
		Short: "Compile FHIRPath expressions to SQL and run them",
		Long: `fhirpath-sql compiles FHIRPath expressions into single SQL statements
and executes them against a resource table, one row per resource, the
document stored as JSON.

Supported engines: ` + joinNames() + `.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := dialect.Get(opts.Dialect); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|csv)")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", "duckdb", "target SQL dialect")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "database DSN (path for duckdb/sqlite, URL for postgres)")
	cmd.PersistentFlags().StringVar(&opts.Table, "table", "", "resource table name (default: resources)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func dialectFor(opts *RootOptions) (dialect.Dialect, error) {
	d, err := dialect.Get(opts.Dialect)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "select dialect", err)
	}
	return d, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func joinNames() string {
	out := ""
	for i, n := range dialect.Names() {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
