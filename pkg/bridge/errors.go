package bridge

import "errors"

// Sentinel errors returned by the Bridge lifecycle.
var (
	// ErrAlreadyStarted is returned by Start when the bridge is
	// already running.
	ErrAlreadyStarted = errors.New("bridge: already started")

	// ErrStopped is returned by Start after Stop. A bridge is
	// single-use; create a new one for the next session.
	ErrStopped = errors.New("bridge: stopped")
)
