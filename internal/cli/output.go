package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Thox33/sync-tool/internal/config"
	"github.com/Thox33/sync-tool/internal/engine"
)

// Process exit codes.
//
// A sync that ran but left items FAILED, or was aborted by the engine,
// exits with ExitFailure just like an invalid configuration: the operator
// has to look at the output. ExitCommandError means nothing was attempted.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // invalid configuration, failed items, aborted run, failing scenario
	ExitCommandError = 2 // bad flags or arguments, missing config file, unknown sync or rule
)

// ErrCodeGeneric is reported for errors that are neither configuration
// errors (E2xx) nor engine runtime errors.
const ErrCodeGeneric = "E001"

// errorCode picks the most specific code for err.
func errorCode(err error) string {
	if code := config.Code(err); code != "" {
		return code
	}
	if code := engine.ErrorCode(err); code != "" {
		return string(code)
	}
	return ErrCodeGeneric
}

// ExitError carries the exit code a command wants the process to end with.
// Message is usually the error code already printed by the formatter.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit code. Errors that
// did not pass through ExitError count as failures.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}

// OutputFormatter writes command results as text or as a CLIResponse
// document. Diagnostics go to ErrWriter so JSON on Writer stays parseable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	// RunID matches the run_id attribute of the sync's log lines.
	RunID string `json:"run_id,omitempty"`
}

// CLIError describes a failure. Code is a configuration code such as E205,
// an engine code such as QUOTA_EXCEEDED, or ErrCodeGeneric.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

func (f *OutputFormatter) json() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func (f *OutputFormatter) Success(data any) error {
	return f.SuccessWithRun("", data)
}

// SuccessWithRun is Success for commands that executed a sync run.
func (f *OutputFormatter) SuccessWithRun(runID string, data any) error {
	if f.json() {
		return f.encode(CLIResponse{Status: "ok", Data: data, RunID: runID})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error reports a failure. In text mode details are only shown with
// --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.json() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "%s Error [%s]: %s\n", failMark, code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns ErrWriter, or Writer when none is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
