package live

import (
	"errors"
	"fmt"
	"testing"
)

func TestConnectionErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ConnectionError{Reason: "dial ws://example", Cause: cause, Retryable: true}

	want := "live: connection error: dial ws://example: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap() lost the cause")
	}

	bare := &ConnectionError{Reason: "read"}
	if bare.Error() != "live: connection error: read" {
		t.Errorf("Error() = %q for bare error", bare.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "retryable connection error", err: &ConnectionError{Reason: "read", Retryable: true}, want: true},
		{name: "non-retryable connection error", err: &ConnectionError{Reason: "bad handshake"}, want: false},
		{name: "wrapped connection error", err: fmt.Errorf("connect: %w", &ConnectionError{Reason: "dial", Retryable: true}), want: true},
		{name: "sentinel", err: ErrNotConnected, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsNotConnected(t *testing.T) {
	if !IsNotConnected(ErrNotConnected) {
		t.Error("IsNotConnected(ErrNotConnected) = false")
	}
	if !IsNotConnected(fmt.Errorf("send: %w", ErrNotConnected)) {
		t.Error("IsNotConnected() missed a wrapped sentinel")
	}
	if IsNotConnected(ErrAlreadyConnected) {
		t.Error("IsNotConnected(ErrAlreadyConnected) = true")
	}
}
