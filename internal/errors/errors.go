package errors

import (
	"errors"
	"fmt"
)

// Common error types for the dashboard client
var (
	// Form validation errors
	ErrValidation       = errors.New("validation failed")
	ErrMissingFields    = errors.New("missing required fields")
	ErrPasswordMismatch = errors.New("passwords do not match")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotAuthenticated   = errors.New("not authenticated")

	// Refresh errors
	ErrNoRefreshCredential = errors.New("no refresh credential available")
	ErrRefreshFailed       = errors.New("token refresh failed")
	ErrSessionEnded        = errors.New("session ended")

	// Transport errors
	ErrRequestFailed  = errors.New("request failed")
	ErrUnexpectedBody = errors.New("unexpected response body")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join combines errs, dropping nils; it returns nil when every err is nil
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
