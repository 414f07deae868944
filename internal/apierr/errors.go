// Package apierr is the error taxonomy shared by the session registry, the
// gateway and the HTTP layer.
//
// Typed errors wrap a sentinel, so callers can branch with errors.Is on the
// kind and errors.As on the type:
//
//	if errors.Is(err, apierr.ErrSessionExpired) { ... }
//	var re *apierr.RemoteError
//	if errors.As(err, &re) { log.Warn("remote failed", "op", re.Op) }
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Auth kinds.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrSessionExpired    = errors.New("session expired or unknown")
)

// Validation kinds.
var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrEmptyFilename    = errors.New("filename is empty after sanitization")
	ErrInvalidPath      = errors.New("invalid path")
)

var (
	ErrRemoteOperation  = errors.New("remote operation failed")
	ErrResourceTooLarge = errors.New("request entity too large")
)

// AuthError means the caller could not be tied to a live session.
type AuthError struct {
	Err error // one of the auth kinds
}

func (e *AuthError) Error() string { return e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// Auth wraps an auth kind.
func Auth(kind error) error { return &AuthError{Err: kind} }

// ValidationError means the request itself is unusable.
type ValidationError struct {
	Field string
	Err   error // one of the validation kinds
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validation wraps a validation kind for field.
func Validation(field string, kind error) error {
	return &ValidationError{Field: field, Err: kind}
}

// RemoteError is a failed provider call. It matches both ErrRemoteOperation
// and its cause under errors.Is.
type RemoteError struct {
	Op   string
	Path string
	Err  error
}

func (e *RemoteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteError) Unwrap() []error { return []error{ErrRemoteOperation, e.Err} }

// Remote wraps err as a failed op on path. Errors that already belong to the
// taxonomy pass through unchanged; nil stays nil.
func Remote(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var (
		re *RemoteError
		ae *AuthError
		ve *ValidationError
	)
	if errors.As(err, &re) || errors.As(err, &ae) || errors.As(err, &ve) {
		return err
	}
	return &RemoteError{Op: op, Path: path, Err: err}
}

// Classify maps err onto an HTTP status and a stable machine-readable code.
func Classify(err error) (status int, code string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ErrMissingCredential):
		return http.StatusUnauthorized, "missing_credential"
	case errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized, "invalid_credential"
	case errors.Is(err, ErrSessionExpired):
		return http.StatusUnauthorized, "session_expired"
	case errors.Is(err, ErrMissingParameter):
		return http.StatusBadRequest, "missing_parameter"
	case errors.Is(err, ErrInvalidParameter):
		return http.StatusBadRequest, "invalid_parameter"
	case errors.Is(err, ErrEmptyFilename):
		return http.StatusBadRequest, "empty_filename"
	case errors.Is(err, ErrInvalidPath):
		return http.StatusBadRequest, "invalid_path"
	case errors.Is(err, ErrResourceTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, ErrRemoteOperation):
		return http.StatusInternalServerError, "remote_operation_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
