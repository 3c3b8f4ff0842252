package interfaces

import "errors"

// ResultError is the failure half of the result envelope.
type ResultError struct {
	Kind         ErrorKind    `json:"kind"`
	Message      string       `json:"message"`
	Registration Registration `json:"registration,omitempty"`
	Operation    OpKind       `json:"operation,omitempty"`
}

// Result is the envelope every external surface reports through:
// {ok: true, data, message} or {ok: false, error}.
type Result struct {
	OK      bool         `json:"ok"`
	Data    any          `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   *ResultError `json:"error,omitempty"`
}

// OkResult wraps a successful payload.
func OkResult(data any, message string) Result {
	return Result{OK: true, Data: data, Message: message}
}

// ErrResult converts err into a failed result, preserving the structured
// context of a RegistryError when there is one.
func ErrResult(err error) Result {
	resErr := &ResultError{Kind: KindOf(err), Message: err.Error()}
	var regErr *RegistryError
	if errors.As(err, &regErr) {
		resErr.Registration = regErr.Registration
		resErr.Operation = regErr.Op
	}
	return Result{OK: false, Error: resErr}
}
