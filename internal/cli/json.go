package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/rileyhilliard/debdeploy/internal/errors"
)

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output uses this envelope. A failed deploy carries both Data (the
// per-host results) and Error.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Cause      string `json:"cause,omitempty"`
}

// ErrCodeUnknown is reported for errors without a structured code.
const ErrCodeUnknown = "UNKNOWN"

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONResult writes data and, when err is non-nil, the error alongside it.
func WriteJSONResult(w io.Writer, data interface{}, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: err == nil,
		Data:    data,
		Error:   ErrorToJSON(err),
	})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: false, Error: ErrorToJSON(err)})
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError. Structured errors keep their
// code; anything else is UNKNOWN.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var dErr *errors.Error
	if stderrors.As(err, &dErr) {
		je := &JSONError{
			Code:       dErr.Code,
			Message:    dErr.Message,
			Suggestion: dErr.Suggestion,
		}
		if dErr.Cause != nil {
			je.Cause = dErr.Cause.Error()
		}
		return je
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}
