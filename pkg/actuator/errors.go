package actuator

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrHardwareUnavailable is returned when GPIO/PWM cannot be initialized:
	// not a Raspberry Pi, missing pins, or permission denied.
	ErrHardwareUnavailable = errors.New("actuator: hardware unavailable")

	// ErrActuationFailure is wrapped by every ActuationError.
	ErrActuationFailure = errors.New("actuator: actuation failed")

	// ErrUnknownAxis is returned for an Axis value that has no output.
	ErrUnknownAxis = errors.New("actuator: unknown axis")
)

// ActuationError is a single failed write to an output.
type ActuationError struct {
	// Op is the operation that failed: "start", "set", "stop" or "laser".
	Op string

	// Output names the pin or axis written.
	Output string

	Err error
}

// Error implements the error interface.
func (e *ActuationError) Error() string {
	return fmt.Sprintf("actuator: %s %s: %v", e.Op, e.Output, e.Err)
}

// Unwrap returns the underlying error.
func (e *ActuationError) Unwrap() error {
	return e.Err
}

// Is reports ErrActuationFailure as a match.
func (e *ActuationError) Is(target error) bool {
	return target == ErrActuationFailure
}
