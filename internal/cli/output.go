package cli

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // expression invalid, scenario failed
	ExitCommandError = 2 // command error (bad flags, database unreachable)
)

// ExitError is an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text, JSON, or CSV.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// Response is the JSON envelope for command output.
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Failure outputs an error in the configured format.
func (f *OutputFormatter) Failure(message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: message})
	}
	fmt.Fprintf(f.Writer, "error: %s\n", message)
	return nil
}

// VerboseLog outputs a message only when verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.Writer, format+"\n", args...)
}

// jsonRow is the JSON shape of one result row.
type jsonRow struct {
	ID    *string `json:"id"`
	Value *string `json:"value"`
}

// WriteRows renders query result rows in the configured format.
func (f *OutputFormatter) WriteRows(rows []store.Row) error {
	switch f.Format {
	case "json":
		out := make([]jsonRow, len(rows))
		for i, r := range rows {
			out[i] = jsonRow{ID: r.ID, Value: r.Value}
		}
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: out})

	case "csv":
		w := csv.NewWriter(f.Writer)
		if err := w.Write([]string{"id", "value"}); err != nil {
			return err
		}
		for _, r := range rows {
			if err := w.Write([]string{deref(r.ID), deref(r.Value)}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()

	default:
		tw := tabwriter.NewWriter(f.Writer, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tVALUE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\n", orNull(r.ID), orNull(r.Value))
		}
		return tw.Flush()
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNull(s *string) string {
	if s == nil {
		return "<null>"
	}
	return *s
}
