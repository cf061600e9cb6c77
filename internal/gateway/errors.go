package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when an operation needs a viewer and none
// is present. It is resolved by sending the user to the login view.
var ErrUnauthenticated = errors.New("not authenticated")

// ErrNotFound is returned when a row does not exist for the given owner.
var ErrNotFound = errors.New("not found")

// AuthError indicates that the backend rejected the session or credentials.
type AuthError struct {
	Op      string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Op, e.Message)
}

// Is lets errors.Is(err, ErrUnauthenticated) match any AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthenticated
}

// TransportError wraps a failed call to the backend. It is always
// recoverable: callers keep their last-known-good state and may retry.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) means the
// caller has no valid session.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) || errors.Is(err, ErrUnauthenticated)
}

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
