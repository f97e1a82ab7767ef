package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/pgmerge/internal/core"
)

// Exit codes for CLI commands.
const (
	ExitSuccess = 0 // Successful execution
	ExitFailure = 1 // A table failed, or the run could not complete
	ExitUsage   = 2 // Bad arguments (missing or invalid directory, unknown flag value)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitUsage)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// writeReport prints one line per table, the totals and the summary lines:
//
//	country: skip: 1 insert: 1 update: 1
//	note: skipped (Table has no primary key or unique constraint)
//	city: failed (DB003: Referenced row does not exist)
//	    hint: Include the referenced tables (--include-dependent-tables)
//
//	Total results: skip: 1 insert: 1 update: 1
//	1 tables imported successfully
//	1 tables failed
func writeReport(w io.Writer, report *core.Report) {
	for _, tr := range report.Tables {
		switch tr.Status {
		case core.StatusMerged:
			fmt.Fprintf(w, "%s: skip: %d insert: %d update: %d\n",
				tr.Table, tr.Outcome.Skipped, tr.Outcome.Inserted, tr.Outcome.Updated)
		case core.StatusSkipped:
			fmt.Fprintf(w, "%s: skipped (%s)\n", tr.Table, core.MapError(tr.Err).Message)
		case core.StatusFailed:
			msg := core.MapError(tr.Err)
			fmt.Fprintf(w, "%s: failed (%s: %s)\n", tr.Table, msg.Code, msg.Message)
			fmt.Fprintf(w, "    hint: %s\n", msg.Action)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total results: skip: %d insert: %d update: %d\n",
		report.Total.Skipped, report.Total.Inserted, report.Total.Updated)
	fmt.Fprintf(w, "%d tables imported successfully\n", report.Count(core.StatusMerged))
	if n := report.Count(core.StatusFailed); n > 0 {
		fmt.Fprintf(w, "%d tables failed\n", n)
	}
}

func writeExport(w io.Writer, result core.ExportResult) {
	fmt.Fprintf(w, "Exported %d tables to %d files\n", result.Tables, len(result.Files))
}
