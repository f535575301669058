package transport

import (
	"errors"
	"fmt"
)

// Code is the status of an RPC reply
type Code uint8

const (
	CodeOK Code = iota
	CodeInvalidArgument
	CodeInternal
	CodeUnimplemented
	CodeUnavailable
	CodeDeadlineExceeded
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeInternal:
		return "Internal"
	case CodeUnimplemented:
		return "Unimplemented"
	case CodeUnavailable:
		return "Unavailable"
	case CodeDeadlineExceeded:
		return "DeadlineExceeded"
	default:
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
}

// StatusError is an error with an RPC status code. Handlers return it to
// choose the code the caller sees; clients return it for failed calls.
type StatusError struct {
	Code    Code
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Errorf builds a StatusError. A %w verb in format keeps the wrapped error
// reachable through errors.Is on the caller's side of the handler.
func Errorf(code Code, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &StatusError{Code: code, Message: err.Error(), Err: errors.Unwrap(err)}
}

// CodeOf returns the status code carried by err. Errors without one are
// Internal; nil is OK.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}
