package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrEngineUnavailable", ErrEngineUnavailable, "enginectl: engine process unavailable"},
		{"ErrTimeout", ErrTimeout, "enginectl: exchange timed out"},
		{"ErrCancelled", ErrCancelled, "enginectl: exchange cancelled"},
		{"ErrMergeFailed", ErrMergeFailed, "enginectl: override merge rejected"},
		{"ErrValidationFailed", ErrValidationFailed, "enginectl: base document validation failed"},
		{"ErrStorageCorrupt", ErrStorageCorrupt, "enginectl: catalog storage corrupt"},
		{"ErrConfigRequired", ErrConfigRequired, "enginectl: config is required"},
		{"ErrLoggerRequired", ErrLoggerRequired, "enginectl: logger is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestTransient(t *testing.T) {
	if !Transient(ErrTimeout) {
		t.Error("ErrTimeout should be transient")
	}
	if !Transient(fmt.Errorf("%w: batch of 3", ErrMergeFailed)) {
		t.Error("wrapped ErrMergeFailed should be transient")
	}
	if Transient(ErrValidationFailed) {
		t.Error("ErrValidationFailed must not be transient")
	}
	if Transient(ErrEngineUnavailable) {
		t.Error("ErrEngineUnavailable must not be transient")
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("invalid port")
	err := ConfigValidationError{Err: inner}

	want := "enginectl: invalid configuration: invalid port"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if unwrapped := err.Unwrap(); unwrapped != inner {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, inner)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("errors.Is works with wrapped error", func(t *testing.T) {
		inner := errors.New("specific error")
		err := NewConfigValidationError(inner)

		if !errors.Is(err, inner) {
			t.Error("errors.Is should match wrapped error")
		}
	})
}
