package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenarios failed, validation errors, configuration conflicts
	ExitCommandError = 2 // Bad paths, unloadable config, unknown field, journal unavailable
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ExitError carries the process exit code for a command error.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and message to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Errors that are not ExitErrors map to ExitFailure.
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

// CLIResponse is the JSON envelope of every --format json result.
type CLIResponse struct {
	Status string    `json:"status"`          // StatusOK or StatusError
	Data   any       `json:"data,omitempty"`  // command payload
	Error  *CLIError `json:"error,omitempty"` // set when Status is StatusError
}

// CLIError is the error part of a CLIResponse. It is also the payload of
// "error" lines written by the run command.
type CLIError struct {
	Code    string `json:"code"`              // "E001".."E008", E1xx, "E_TEST_FAILED"
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// writeResponse encodes resp as indented JSON.
func writeResponse(w io.Writer, resp CLIResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// OutputFormatter writes command results as text or as a CLIResponse.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer
	Verbose   bool
}

// newFormatter writes results to the command's stdout and diagnostics to
// its stderr, so verbose logs never corrupt a JSON response.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// JSON reports whether results are written as CLIResponse envelopes.
func (f *OutputFormatter) JSON() bool { return f.Format == "json" }

// Success writes data. In text mode data is printed with fmt.Println.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return writeResponse(f.Writer, CLIResponse{Status: StatusOK, Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Failure writes data together with an error summary. Used when a command
// ran to completion but found problems (failed scenarios, invalid config).
// In text mode callers print their own report; Failure writes nothing.
func (f *OutputFormatter) Failure(data any, code, message string) error {
	if !f.JSON() {
		return nil
	}
	return writeResponse(f.Writer, CLIResponse{
		Status: StatusError,
		Data:   data,
		Error:  &CLIError{Code: code, Message: message},
	})
}

// Error writes a command-level error.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return writeResponse(f.Writer, CLIResponse{
			Status: StatusError,
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on. Diagnostics
// go to ErrWriter so they never interleave with a JSON response.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.diag(), format+"\n", args...)
}

func (f *OutputFormatter) diag() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
