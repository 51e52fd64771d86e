// Package errors defines the failure taxonomy shared by every enginectl
// component. Callers classify failures with errors.Is against these
// sentinels; wrapped detail is carried via fmt.Errorf("%w: ...").
package errors

import sterrors "errors"

// Operational taxonomy. Transient failures (ErrTimeout, ErrMergeFailed)
// are recovered locally wherever a safe fallback exists; structural
// failures (ErrValidationFailed, ErrEngineUnavailable) surface to the
// caller for user-visible reporting.
var (
	// ErrEngineUnavailable is returned synchronously from send when the
	// engine process is not reachable.
	ErrEngineUnavailable = sterrors.New("enginectl: engine process unavailable")

	// ErrTimeout is returned when no matching event arrives within an
	// exchange's deadline. Engine-side effects are not rolled back.
	ErrTimeout = sterrors.New("enginectl: exchange timed out")

	// ErrCancelled is returned when the caller abandons an exchange.
	// Cancellation is local-only; the engine is never notified.
	ErrCancelled = sterrors.New("enginectl: exchange cancelled")

	// ErrMergeFailed marks an override batch the engine rejected
	// semantically. The composition pipeline degrades to the best prior
	// document instead of propagating it.
	ErrMergeFailed = sterrors.New("enginectl: override merge rejected")

	// ErrValidationFailed marks a malformed base document. It blocks
	// persistence and is always reported to the caller.
	ErrValidationFailed = sterrors.New("enginectl: base document validation failed")

	// ErrStorageCorrupt marks an unreadable catalog file. Load recovers
	// from the rolling backup when possible.
	ErrStorageCorrupt = sterrors.New("enginectl: catalog storage corrupt")
)

// Construction guards.
var (
	ErrConfigRequired    = sterrors.New("enginectl: config is required")
	ErrLoggerRequired    = sterrors.New("enginectl: logger is required")
	ErrTransportRequired = sterrors.New("enginectl: transport is required")
	ErrPathsRequired     = sterrors.New("enginectl: path resolver is required")
	ErrTypeRequired      = sterrors.New("enginectl: message type is required")
)

// Transient reports whether err is an operational failure that a safe
// fallback may absorb.
func Transient(err error) bool {
	return sterrors.Is(err, ErrTimeout) || sterrors.Is(err, ErrMergeFailed)
}

// ConfigValidationError wraps the joined validation failures of a Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "enginectl: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err in a ConfigValidationError, or returns
// nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
