// Package common provides shared constants, types, and utilities
// used across the VPN Core session manager.
package common

import "errors"

// Sentinel errors for session-manager operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Connection errors.
	ErrAlreadyConnected = errors.New("connection already active")
	ErrNotConnected     = errors.New("no active connection")
	ErrConnectionFailed = errors.New("connection failed")

	// ErrExtensionNotApproved indicates the privileged tunnel extension
	// has not been approved by the user. Callers present a different
	// remediation for this than for ordinary connection failures.
	ErrExtensionNotApproved = errors.New("tunnel extension not approved")

	// ErrNotImplemented indicates an operation on a protocol variant
	// that is recognized but has no working implementation. It is never
	// silently swallowed: offering a non-functional protocol as
	// selectable is a defect.
	ErrNotImplemented = errors.New("protocol not implemented")

	// Configuration errors.
	ErrConfigurationNotLoaded = errors.New("configuration not loaded")
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrParse                  = errors.New("template parse error")
	ErrConfigLoad             = errors.New("failed to load configuration")
	ErrConfigSave             = errors.New("failed to save configuration")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")

	// Registration errors.
	ErrNoRegistration = errors.New("no tunnel registration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
