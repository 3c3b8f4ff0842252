package interfaces

import (
	"errors"
	"fmt"
)

// ErrorKind classifies registry failures. Kinds double as sentinel errors so
// callers can use errors.Is(err, interfaces.ErrNotOwner).
type ErrorKind string

const (
	KindAlreadyRegistered        ErrorKind = "AlreadyRegistered"
	KindNotFound                 ErrorKind = "NotFound"
	KindNotOwner                 ErrorKind = "NotOwner"
	KindDecodeFailure            ErrorKind = "DecodeFailure"
	KindHistorySourceUnavailable ErrorKind = "HistorySourceUnavailable"
	KindInvalidInput             ErrorKind = "InvalidInput"
	KindSubmissionFailed         ErrorKind = "SubmissionFailed"
	KindInternal                 ErrorKind = "Internal"
)

// Error implements the error interface.
func (k ErrorKind) Error() string {
	return string(k)
}

// Retryable reports whether repeating the same request can succeed without
// the caller changing anything.
func (k ErrorKind) Retryable() bool {
	return k == KindHistorySourceUnavailable || k == KindSubmissionFailed
}

var (
	ErrAlreadyRegistered        error = KindAlreadyRegistered
	ErrNotFound                 error = KindNotFound
	ErrNotOwner                 error = KindNotOwner
	ErrDecodeFailure            error = KindDecodeFailure
	ErrHistorySourceUnavailable error = KindHistorySourceUnavailable
	ErrInvalidInput             error = KindInvalidInput
	ErrSubmissionFailed         error = KindSubmissionFailed
)

// RegistryError is the structured failure of a registry operation or history
// query. It carries enough context to render a precise message without the
// caller inspecting internals.
type RegistryError struct {
	Kind         ErrorKind
	Op           OpKind
	Registration Registration
	Caller       Address
	Reason       string
	Err          error
}

// NewRegistryError creates a RegistryError with a formatted reason.
func NewRegistryError(kind ErrorKind, op OpKind, registration Registration, caller Address, format string, args ...any) *RegistryError {
	return &RegistryError{
		Kind:         kind,
		Op:           op,
		Registration: registration,
		Caller:       caller,
		Reason:       fmt.Sprintf(format, args...),
	}
}

// Error renders the failure as a human-readable string.
func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Error: %s: %v", e.Reason, e.Err)
	}
	return "Error: " + e.Reason
}

// Is matches ErrorKind sentinels.
func (e *RegistryError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind of err, returning KindInternal for errors that
// carry no kind.
func KindOf(err error) ErrorKind {
	var regErr *RegistryError
	if errors.As(err, &regErr) {
		return regErr.Kind
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind
	}
	return KindInternal
}
