package alert

import "errors"

var (
	// ErrNotConfigured means no SMTP server is configured, so alerts are disabled.
	ErrNotConfigured = errors.New("alert mail not configured")

	// ErrRateLimited means an alert was sent too recently.
	ErrRateLimited = errors.New("alert rate limited")

	// ErrInvalidRecipient means the recipient address is missing or malformed.
	ErrInvalidRecipient = errors.New("invalid recipient")
)
