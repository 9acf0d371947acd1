package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrPrimitive    = errors.New("geometry primitive failed")
	ErrEmptyResult  = errors.New("no result produced")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrLayerNotFound       = fmt.Errorf("layer: %w", ErrNotFound)
	ErrInvalidCoordinate   = fmt.Errorf("coordinate: %w", ErrInvalidInput)
	ErrUnknownOperation    = fmt.Errorf("operation: %w", ErrUnsupported)
	ErrUnsupportedFormat   = fmt.Errorf("layer format: %w", ErrUnsupported)
	ErrDispatcherClosed    = fmt.Errorf("dispatcher closed: %w", ErrUnavailable)
	ErrNotReady            = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrStorageUnavailable  = fmt.Errorf("storage: %w", ErrUnavailable)
	ErrJobPanicked         = fmt.Errorf("job panicked: %w", ErrInternal)
	ErrProjectionFailed    = fmt.Errorf("projection: %w", ErrInternal)
	ErrDuplicateLayerFound = fmt.Errorf("duplicate layer id: %w", ErrInvalidInput)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("validation error for %s: %s (constraint: %s)",
			e.Field, e.Message, e.Constraint)
	}
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// PrimitiveError reports a boolean geometry primitive that could not
// produce a result for a pair or a feature.
type PrimitiveError struct {
	Op     string // union, intersect or difference
	Reason string // failure reason reported by the kernel
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *PrimitiveError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s primitive failed (%s)", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s primitive failed (%s): %v", e.Op, e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *PrimitiveError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPrimitive}
	}
	return []error{ErrPrimitive, e.Err}
}

// EmptyResultError reports an operation that completed without producing
// a single feature.
type EmptyResultError struct {
	Operation string
}

// Error implements the error interface.
func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s: no result produced", e.Operation)
}

// Unwrap returns the underlying error type.
func (e *EmptyResultError) Unwrap() error {
	return ErrEmptyResult
}

// ProjectionError represents a failed coordinate transformation.
type ProjectionError struct {
	Direction string // forward or inverse
	Feature   int    // Index of the failing feature
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *ProjectionError) Error() string {
	return fmt.Sprintf("%s projection failed at feature %d: %v",
		e.Direction, e.Feature, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProjectionError) Unwrap() []error {
	return []error{ErrProjectionFailed, e.Err}
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// LayerError represents an error while loading a layer.
type LayerError struct {
	LayerID string // Layer identifier
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *LayerError) Error() string {
	return fmt.Sprintf("layer %s: %v", e.LayerID, e.Err)
}

// Unwrap returns the underlying error.
func (e *LayerError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
