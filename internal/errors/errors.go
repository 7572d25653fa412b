// Package errors defines the coded error taxonomy shared by the chat logging
// pipeline: fatal startup errors, per-record write errors and the gateway
// lifecycle sentinels.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown    = "UNKNOWN"
	CodeConfig     = "CONFIG"
	CodeDatabase   = "DATABASE"
	CodeWrite      = "WRITE"
	CodeValidation = "VALIDATION"
)

var (
	// ErrGatewayNotReady is reported when a write reaches a gateway that was never initialized.
	ErrGatewayNotReady = errors.New("persistence gateway not initialized")
	// ErrGatewayClosed is reported when the gateway has already been shut down.
	ErrGatewayClosed = errors.New("persistence gateway shut down")
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if there is none.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeUnknown
}

// FatalError aborts pipeline activation. It is only produced at startup.
type FatalError struct {
	base Error
}

func (e *FatalError) Error() string { return e.base.Error() }
func (e *FatalError) Code() string  { return e.base.Code() }
func (e *FatalError) Unwrap() error { return e.base.Unwrap() }

// NewFatalError builds a FatalError for a storage bring-up failure.
func NewFatalError(message string, cause error) error {
	return &FatalError{base: Error{code: CodeDatabase, message: message, err: cause}}
}

// NewConfigError builds a FatalError for malformed connection configuration.
func NewConfigError(message string, cause error) error {
	return &FatalError{base: Error{code: CodeConfig, message: message, err: cause}}
}

// WriteError reports a failure to persist a single record. It carries the
// group and user the record belonged to so the failure can be attributed.
type WriteError struct {
	base    Error
	GroupID string
	UserID  string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s (group %q, user %q)", e.base.Error(), e.GroupID, e.UserID)
}

func (e *WriteError) Code() string  { return e.base.Code() }
func (e *WriteError) Unwrap() error { return e.base.Unwrap() }

// NewWriteError builds a WriteError for a storage failure on one record.
func NewWriteError(groupID, userID, message string, cause error) error {
	return &WriteError{
		base:    Error{code: CodeWrite, message: message, err: cause},
		GroupID: groupID,
		UserID:  userID,
	}
}

// NewValidationError builds a WriteError for a record that violates the
// persisted-record invariant and was never sent to storage.
func NewValidationError(groupID, userID, message string) error {
	return &WriteError{
		base:    Error{code: CodeValidation, message: message},
		GroupID: groupID,
		UserID:  userID,
	}
}

// IsFatal reports whether err aborts startup.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
