package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors.
var (
	// ErrEngineFailure matches every FitError. It marks failures confined to
	// a single event.
	ErrEngineFailure = errors.New("fit engine failure")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// FitError wraps a failure reported by the external fit engine. It is an
// infrastructure failure, distinct from a permutation that did not converge.
type FitError struct {
	// EventID identifies the event being fitted.
	EventID string

	// Jets is the number of jets handed to the engine.
	Jets int

	// Err is the underlying engine error.
	Err error
}

// Error implements the error interface for FitError.
func (e *FitError) Error() string {
	return fmt.Sprintf("fit error: event=%s, jets=%d, err=%v", e.EventID, e.Jets, e.Err)
}

// Unwrap returns the underlying error.
func (e *FitError) Unwrap() error { return e.Err }

// Is reports whether target is ErrEngineFailure.
func (e *FitError) Is(target error) bool { return target == ErrEngineFailure }

// NewFitError creates a new FitError with the given details.
func NewFitError(eventID string, jets int, err error) *FitError {
	return &FitError{
		EventID: eventID,
		Jets:    jets,
		Err:     err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
