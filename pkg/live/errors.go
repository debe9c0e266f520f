package live

import (
	"errors"
	"fmt"
)

// Sentinel errors for the live package.
var (
	// ErrMissingAPIKey indicates no API key was provided for the
	// hosted endpoint.
	ErrMissingAPIKey = errors.New("live: API key is required")

	// ErrNotConnected indicates the session is not connected.
	ErrNotConnected = errors.New("live: not connected")

	// ErrAlreadyConnected indicates the session is already
	// established; model and configuration are fixed once connected.
	ErrAlreadyConnected = errors.New("live: already connected")

	// ErrInvalidMessage indicates a malformed frame was received.
	ErrInvalidMessage = errors.New("live: invalid message")
)

// ConnectionError represents a WebSocket connection failure.
type ConnectionError struct {
	// Reason describes what failed.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates whether reconnecting may help.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("live: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("live: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if reconnection should be attempted.
func (e *ConnectionError) IsRetryable() bool {
	return e.Retryable
}

// IsNotConnected returns true if the error indicates no usable
// connection.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// IsRetryable returns true if the operation can be retried.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.IsRetryable()
	}
	return false
}
