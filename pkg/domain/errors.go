package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Common domain errors
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrAnnotatorUnavailable = errors.New("entity annotator unavailable")
	ErrInvalidSessionState  = errors.New("invalid session state")
)

// Error codes carried by DomainError.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidSessionState = "INVALID_SESSION_STATE"
)

// DomainError wraps errors with additional context.
//
//nolint:revive // Name is intentionally verbose to distinguish domain-layer errors
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]any
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// InvalidInput builds an input-validation fault.
func InvalidInput(format string, args ...any) error {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("%s: %s", ErrInvalidInput, fmt.Sprintf(format, args...)),
	}
}

// ValidateText rejects values that are not well-formed text. It runs before any
// state is touched so a failing call never leaves partial mutations behind.
func ValidateText(text string) error {
	if !utf8.ValidString(text) {
		return InvalidInput("text is not valid UTF-8")
	}
	return nil
}

// ErrorResponse defines the JSON error model handed to the boundary layer.
// It intentionally avoids exposing sensitive details while providing a stable machine-readable code.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse maps an error onto the boundary error model.
func NewErrorResponse(err error, traceID string) ErrorResponse {
	var de *DomainError
	if errors.As(err, &de) {
		return ErrorResponse{Code: de.Code, Message: de.Error(), TraceID: traceID}
	}
	return ErrorResponse{Code: "INTERNAL", Message: "internal error", TraceID: traceID}
}
