package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Error codes for categorizing errors
const (
	ErrConfig            = "CONFIG"
	ErrConfigNotFound    = "CONFIG_NOT_FOUND"
	ErrHostUnresolved    = "HOST_UNRESOLVED"
	ErrBuildStepFailed   = "BUILD_STEP_FAILED"
	ErrArtifactNotFound  = "ARTIFACT_NOT_FOUND"
	ErrArtifactAmbiguous = "ARTIFACT_AMBIGUOUS"
	ErrSSH               = "SSH"
	ErrTransferFailed    = "TRANSFER_FAILED"
	ErrInstallFailed     = "INSTALL_FAILED"
	ErrExec              = "EXEC"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// It renders as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrSSH code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrSSH,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
// Aggregated errors match when any member carries the code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			if IsCode(e, code) {
				return true
			}
		}
		return false
	}

	var dErr *Error
	if errors.As(err, &dErr) {
		if dErr.Code == code {
			return true
		}
		return IsCode(dErr.Cause, code)
	}
	return false
}

// CodeOf returns the code of the outermost structured Error in err, or "" if none.
func CodeOf(err error) string {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return ""
}
