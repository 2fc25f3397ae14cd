// Package domain holds the types and contracts shared by every layer of
// the cache: metadata, query results, and the error taxonomy. It has no
// infrastructure dependency.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the six abstract kinds the core
// distinguishes between. Kind is a stable, machine-readable code.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidArgument Kind = "invalid_argument"
	KindOutOfCapacity   Kind = "out_of_capacity"
	KindEngineFailure   Kind = "engine_failure"
	KindCancelled       Kind = "cancelled"
	KindInternal        Kind = "internal"
)

// Error is the structured error type returned by every public operation
// in this core. It carries a stable Kind alongside a human-readable
// message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// NewError constructs an *Error with no wrapped cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// NotFound, InvalidArgument, OutOfCapacity, EngineFailure, Cancelled,
// and Internal are shorthand constructors for each Kind.
func NotFound(format string, args ...any) *Error {
	return NewError(KindNotFound, fmt.Sprintf(format, args...))
}

func InvalidArgument(format string, args ...any) *Error {
	return NewError(KindInvalidArgument, fmt.Sprintf(format, args...))
}

func OutOfCapacity(format string, args ...any) *Error {
	return NewError(KindOutOfCapacity, fmt.Sprintf(format, args...))
}

func EngineFailure(cause error, format string, args ...any) *Error {
	return Wrap(KindEngineFailure, fmt.Sprintf(format, args...), cause)
}

func Cancelled() *Error {
	return NewError(KindCancelled, "operation cancelled")
}

func Internal(format string, args ...any) *Error {
	return NewError(KindInternal, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind from err, if err is (or wraps) an *Error.
// Unrecognized errors report KindInternal, per the "Internal errors are
// not caught" propagation policy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func IsNotFound(err error) bool        { return IsKind(err, KindNotFound) }
func IsInvalidArgument(err error) bool { return IsKind(err, KindInvalidArgument) }
func IsOutOfCapacity(err error) bool   { return IsKind(err, KindOutOfCapacity) }
func IsEngineFailure(err error) bool   { return IsKind(err, KindEngineFailure) }
func IsCancelled(err error) bool       { return IsKind(err, KindCancelled) }
func IsInternal(err error) bool        { return IsKind(err, KindInternal) }
