// Package errors provides the error types used across the booking agent.
// It classifies failures into user-visible and absorbed categories and
// carries operation context for logging.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a machine-readable error code.
type Code string

const (
	// User input errors. Surfaced to the user as a re-prompt.
	CodeValidation Code = "VALIDATION_ERROR"

	// Outbound send failures. Retried once, then logged and dropped.
	CodeTransport Code = "TRANSPORT_ERROR"

	// Quote backend failures. Surfaced as a temporary-unavailability message.
	CodeBackendUnavailable Code = "BACKEND_UNAVAILABLE"
	CodeBackendValidation  Code = "BACKEND_VALIDATION_ERROR"

	// Reconciler rejections. Logged only, never user-visible.
	CodeStaleOrUnmatched Code = "STALE_OR_UNMATCHED_REQUEST"
	CodeUnknownRecipient Code = "UNKNOWN_RECIPIENT"
	CodeStateMismatch    Code = "STATE_MISMATCH"

	// Answer engine failures. Always replaced by a static fallback.
	CodeAnswerEngine Code = "ANSWER_ENGINE_FAILURE"

	// Infrastructure errors.
	CodeDatabase Code = "DATABASE_ERROR"
	CodeConfig   Code = "CONFIG_ERROR"
	CodeInternal Code = "INTERNAL_ERROR"
	CodeTimeout  Code = "TIMEOUT"
)

// Kind classifies an error for handling decisions.
type Kind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown Kind = iota
	// KindUser indicates a user-caused error (bad input).
	KindUser
	// KindSystem indicates an infrastructure failure.
	KindSystem
	// KindTransient indicates a temporary error that may succeed on retry.
	KindTransient
	// KindDiscard indicates a rejection that must be absorbed silently.
	KindDiscard
)

// Error is the application error type.
type Error struct {
	// Code is the machine-readable error code.
	Code Code
	// Message is the human-readable description.
	Message string
	// Kind classifies the error.
	Kind Kind
	// Op is the operation being performed (e.g. "reconcile.Apply").
	Op string
	// Fields lists offending fields for backend validation errors.
	Fields []string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " (fields: %s)", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsUserVisible reports whether the error may be shown to the customer.
// Only validation and backend-unavailability errors ever reach the user.
func (e *Error) IsUserVisible() bool {
	switch e.Code {
	case CodeValidation, CodeBackendUnavailable, CodeBackendValidation:
		return true
	}
	return false
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
	}
}

// Wrap wraps an existing error with operation context.
func Wrap(err error, op string, code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
		Op:      op,
		Err:     err,
	}
}

func kindForCode(code Code) Kind {
	switch code {
	case CodeValidation, CodeBackendValidation:
		return KindUser
	case CodeTransport, CodeBackendUnavailable, CodeTimeout, CodeAnswerEngine:
		return KindTransient
	case CodeStaleOrUnmatched, CodeUnknownRecipient, CodeStateMismatch:
		return KindDiscard
	default:
		return KindSystem
	}
}

// Sentinel errors for common cases.
var (
	// ErrNotFound indicates a record or state does not exist.
	ErrNotFound = &Error{Code: "NOT_FOUND", Message: "not found", Kind: KindUser}

	// ErrBackendUnavailable indicates the quote backend could not be reached.
	ErrBackendUnavailable = New(CodeBackendUnavailable, "booking backend unavailable")

	// ErrAnswerEngine indicates the answer engine failed or timed out.
	ErrAnswerEngine = New(CodeAnswerEngine, "answer engine unavailable")
)

// ValidationFailed creates a user-input validation error.
func ValidationFailed(message string) *Error {
	return New(CodeValidation, message)
}

// TransportError wraps an outbound send failure.
func TransportError(op string, err error) *Error {
	return Wrap(err, op, CodeTransport, "outbound send failed")
}

// BackendValidation creates a backend field-validation error.
func BackendValidation(fields []string) *Error {
	return &Error{
		Code:    CodeBackendValidation,
		Message: "booking rejected by backend",
		Kind:    KindUser,
		Fields:  fields,
	}
}

// StaleOrUnmatched creates a reconciler rejection for an unmatched request id.
func StaleOrUnmatched(requestID string) *Error {
	return &Error{
		Code:    CodeStaleOrUnmatched,
		Message: fmt.Sprintf("no unused ledger entry matches request id %s", requestID),
		Kind:    KindDiscard,
	}
}

// UnknownRecipient creates a reconciler rejection for an unresolvable phone.
func UnknownRecipient(phone string) *Error {
	return &Error{
		Code:    CodeUnknownRecipient,
		Message: fmt.Sprintf("no booking record for recipient %s", phone),
		Kind:    KindDiscard,
	}
}

// StateMismatch creates a reconciler rejection for a moved conversation state.
func StateMismatch(have string) *Error {
	return &Error{
		Code:    CodeStateMismatch,
		Message: fmt.Sprintf("conversation no longer awaiting quote (state %s)", have),
		Kind:    KindDiscard,
	}
}

// DatabaseError creates a database error with the underlying cause.
func DatabaseError(op string, err error) *Error {
	return Wrap(err, op, CodeDatabase, "database operation failed")
}

// InternalError creates a generic internal error.
func InternalError(message string, err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: message,
		Kind:    KindSystem,
		Err:     err,
	}
}

// GetCode extracts the error code, returning CodeInternal for foreign errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsDiscard reports whether the error is an absorb-silently rejection.
func IsDiscard(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindDiscard
	}
	return false
}

// IsNotFound reports whether the error is a not-found error.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrNotFound.Code
	}
	return false
}

// IsUserVisible reports whether the error may be surfaced to the customer.
func IsUserVisible(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsUserVisible()
	}
	return false
}
