package tracking

import "errors"

var (
	// ErrMalformedInput is returned when a detection payload cannot be turned
	// into a target: bad JSON, missing coordinates or a non-positive frame size.
	ErrMalformedInput = errors.New("tracking: malformed input")

	// ErrStopped is returned by Controller.Track once the controller has exited.
	ErrStopped = errors.New("tracking: controller stopped")
)
