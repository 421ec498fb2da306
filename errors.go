package pggw

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure. Every failure maps to exactly one RPC
// error at the call boundary; nothing here terminates the process.
type Kind string

const (
	KindUnknownTool        Kind = "unknown_tool"
	KindUnknownMethod      Kind = "unknown_method"
	KindWritesDisabled     Kind = "writes_disabled"
	KindInvalidIdentifier  Kind = "invalid_identifier"
	KindMissingFilter      Kind = "missing_filter"
	KindMissingTarget      Kind = "missing_target"
	KindStoreError         Kind = "store_error"
	KindAuthRejected       Kind = "auth_rejected"
	KindMalformedArguments Kind = "malformed_arguments"
)

// Error is the typed failure returned by the Executor and Dispatcher.
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying store error, carried verbatim
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errf builds a typed Error with a formatted message.
func Errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StoreErr wraps an underlying store error. The driver's message is never
// rewritten; callers see it verbatim.
func StoreErr(err error) *Error {
	return &Error{Kind: KindStoreError, Err: err}
}

// KindOf returns the Kind of err, or "" when err carries no gateway kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
