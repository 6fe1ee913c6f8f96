package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNegotiation is wrapped by every NegotiationError.
	ErrNegotiation = errors.New("session: negotiation failed")

	// ErrSessionBusy is returned by an exclusive registry while a session is open.
	ErrSessionBusy = errors.New("session: another session is active")

	// ErrInvalidState is returned when an operation does not fit the session state.
	ErrInvalidState = errors.New("session: invalid state")
)

// NegotiationError is returned when an offer cannot be answered.
// The session is closed and never becomes active.
type NegotiationError struct {
	SessionID string
	Err       error
}

// Error implements the error interface.
func (e *NegotiationError) Error() string {
	return fmt.Sprintf("session %s: negotiation failed: %v", e.SessionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// Is reports ErrNegotiation as a match.
func (e *NegotiationError) Is(target error) bool {
	return target == ErrNegotiation
}
