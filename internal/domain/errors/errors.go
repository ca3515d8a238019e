// Package errors defines the CIL error taxonomy: tagged variants
// returned to callers rather than exceptions used for control flow.
package errors

import "fmt"

// Code identifies a class of error in the CIL error taxonomy.
type Code string

const (
	// CodeValidationFailure is returned when a strand or request is rejected
	// at the boundary; the producer must fix its input.
	CodeValidationFailure Code = "validation_failure"

	// CodeNotFound is returned when a referenced strand or slot does not exist.
	CodeNotFound Code = "not_found"

	// CodeImmutableField is returned when a caller attempts to mutate a field
	// outside the mutable subset.
	CodeImmutableField Code = "immutable_field"

	// CodeContextUnavailable is returned when the strand store cannot be
	// reached while retrieving historical context. Transient.
	CodeContextUnavailable Code = "context_unavailable"

	// CodeStoreUnavailable is returned when the strand store cannot be
	// reached for any other operation. Transient.
	CodeStoreUnavailable Code = "store_unavailable"

	// CodeLLMUnavailable is returned when the LLM port is unreachable.
	CodeLLMUnavailable Code = "llm_unavailable"

	// CodeLLMTimeout is returned when an LLM call exceeds its deadline.
	CodeLLMTimeout Code = "llm_timeout"

	// CodeLLMMalformed is returned when the LLM response fails schema or
	// content validation (disallowed narrative, numeric disagreement).
	CodeLLMMalformed Code = "llm_malformed"

	// CodeInvariantViolation is returned when a data invariant would
	// be broken. Never recovered locally; the caller quarantines the source.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeBoundExceeded is returned when a resonance update would exceed its
	// configured bound. The value is clamped and the event flagged.
	CodeBoundExceeded Code = "bound_exceeded"
)

// CILError is the concrete error type carried through the system.
type CILError struct {
	Code Code
	Message string
	Cause error
}

func (e *CILError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CILError) Unwrap() error {
	return e.Cause
}

// New builds a CILError with no cause.
func New(code Code, message string) *CILError {
	return &CILError{Code: code, Message: message}
}

// Newf builds a CILError with a formatted message.
func Newf(code Code, format string, args ...any) *CILError {
	return &CILError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a CILError around an existing cause.
func Wrap(code Code, message string, cause error) *CILError {
	return &CILError{Code: code, Message: message, Cause: cause}
}

// Is reports whether err carries the given code, unwrapping as needed.
func Is(err error, code Code) bool {
	ce, ok := asCILError(err)
	return ok && ce.Code == code
}

// Transient reports whether the error represents a condition classified as
// transient and locally recoverable (context/store/LLM unavailability).
func Transient(err error) bool {
	ce, ok := asCILError(err)
	if !ok {
		return false
	}
	switch ce.Code {
		case CodeContextUnavailable, CodeStoreUnavailable, CodeLLMUnavailable, CodeLLMTimeout:
			return true
		default:
			return false
	}
}

func asCILError(err error) (*CILError, bool) {
	for err != nil {
		if c, ok := err.(*CILError); ok {
			return c, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
