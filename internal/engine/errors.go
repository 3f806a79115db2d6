package engine

import (
	"errors"
	"fmt"
	"slices"
)

// RuntimeError is a run-level failure. Run-level failures abort the run;
// item-level failures never do.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when one was started.
	RunID string

	// Rule identifies the rule as "sync/rule".
	Rule string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeConfig indicates the rule refers to missing configuration.
	ErrCodeConfig RuntimeErrorCode = "CONFIG"

	// ErrCodeProviderInit indicates a provider could not be built or initialized.
	ErrCodeProviderInit RuntimeErrorCode = "PROVIDER_INIT"

	// ErrCodeSourceData indicates the source records could not be read.
	ErrCodeSourceData RuntimeErrorCode = "SOURCE_DATA"

	// ErrCodeValidation indicates source records failed mapping or validation.
	ErrCodeValidation RuntimeErrorCode = "VALIDATION"

	// ErrCodeQuotaExceeded indicates the run exceeded its step limit.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeCanceled indicates the run was cancelled before it finished.
	ErrCodeCanceled RuntimeErrorCode = "CANCELED"
)

// RuntimeErrorCodes lists every runtime error code.
var RuntimeErrorCodes = []RuntimeErrorCode{
	ErrCodeConfig, ErrCodeProviderInit, ErrCodeSourceData,
	ErrCodeValidation, ErrCodeQuotaExceeded, ErrCodeCanceled,
}

// Valid reports whether c is a known code.
func (c RuntimeErrorCode) Valid() bool { return slices.Contains(RuntimeErrorCodes, c) }

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Rule != "" {
		msg += fmt.Sprintf(" (rule=%s)", e.Rule)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsQuotaError returns true if err is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded {
		return true
	}
	return IsStepsExceededError(err)
}

// ErrorCode returns the RuntimeErrorCode of err, or "" if err is not a
// RuntimeError.
func ErrorCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// withRunID stamps runID on the RuntimeError in err's chain, if any.
func withRunID(err error, runID string) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		re.RunID = runID
	}
	return err
}

func newRuntimeError(code RuntimeErrorCode, rule, message string, err error) *RuntimeError {
	return &RuntimeError{Code: code, Rule: rule, Message: message, Err: err}
}

// StepError records which step failed for which item.
type StepError struct {
	Step string
	Item string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed for item %s: %v", e.Step, e.Item, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
