// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBusy is returned when an operation is already running for the connection.
	ErrBusy = errors.New("another operation is already running for this connection")
	// ErrStale is returned to the caller of an operation that was cancelled or
	// superseded before it completed. Its payload has been discarded.
	ErrStale = errors.New("operation superseded")
	// ErrNotFound is returned for an unknown connection id.
	ErrNotFound = errors.New("connection not found")
	// ErrClosed is returned by a session that has been discarded.
	ErrClosed = errors.New("session closed")
)

// ValidationError reports malformed or missing input. It is detected before
// any backend call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConnectivityError wraps a failure to reach the target database
type ConnectivityError struct {
	Underlying error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connection failed: %v", e.Underlying)
}

func (e *ConnectivityError) Unwrap() error { return e.Underlying }

// ExecutionError wraps invalid SQL or a failed backend command
type ExecutionError struct {
	Underlying error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Underlying)
}

func (e *ExecutionError) Unwrap() error { return e.Underlying }

// Invalid creates a ValidationError
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// WrapConnectivity creates a ConnectivityError from underlying error
func WrapConnectivity(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return err
	}
	return &ConnectivityError{Underlying: err}
}

// WrapExecution creates an ExecutionError from underlying error unless the
// error is already classified.
func WrapExecution(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindExecution && KindOf(err) != KindUnknown {
		return err
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecutionError{Underlying: err}
}

// Kind is the stable wire name of an error class.
type Kind string

const (
	KindUnknown      Kind = ""
	KindValidation   Kind = "validation"
	KindConnectivity Kind = "connectivity"
	KindExecution    Kind = "execution"
	KindBusy         Kind = "busy"
	KindStale        Kind = "stale"
	KindNotFound     Kind = "not_found"
)

// KindOf classifies err.
func KindOf(err error) Kind {
	var (
		ve *ValidationError
		ce *ConnectivityError
		ee *ExecutionError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrStale):
		return KindStale
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &ce):
		return KindConnectivity
	case errors.As(err, &ee):
		return KindExecution
	}
	return KindUnknown
}

// FromKind rebuilds a typed error from its wire form.
func FromKind(kind Kind, msg string) error {
	switch kind {
	case KindValidation:
		return &ValidationError{Reason: msg}
	case KindConnectivity:
		return &ConnectivityError{Underlying: errors.New(msg)}
	case KindBusy:
		return withSentinel(ErrBusy, msg)
	case KindStale:
		return withSentinel(ErrStale, msg)
	case KindNotFound:
		return withSentinel(ErrNotFound, msg)
	default:
		return &ExecutionError{Underlying: errors.New(msg)}
	}
}

func withSentinel(sentinel error, msg string) error {
	if msg == "" || msg == sentinel.Error() {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, strings.TrimPrefix(msg, sentinel.Error()+": "))
}

// Message returns the user-facing text of err without the class prefix.
func Message(err error) string {
	var (
		ce *ConnectivityError
		ee *ExecutionError
	)
	switch {
	case errors.As(err, &ce):
		return ce.Underlying.Error()
	case errors.As(err, &ee):
		return ee.Underlying.Error()
	}
	return err.Error()
}
