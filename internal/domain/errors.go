// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services can return.
var (
	// ErrCacheMiss is returned by cache repositories when no record exists for a URI.
	// It is an expected branch of resolution, not a failure.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidTrackHandle is returned when an invalid track handle is used.
	ErrInvalidTrackHandle = errors.New("invalid track handle")

	// ErrInvalidTransition is returned when a transport command is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid playback transition")

	// ErrUnknownCommand is returned when the gateway receives an unknown command name.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidFileName is returned when a remote URI yields no usable local file name.
	ErrInvalidFileName = errors.New("invalid download file name")

	// ErrNotInitialized is returned when an operation is attempted on an uninitialized component.
	ErrNotInitialized = errors.New("component not initialized")

	// ErrServiceClosed is returned when a command reaches a service that has been shut down.
	ErrServiceClosed = errors.New("service closed")

	// ErrFileNotFound is returned when a file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrTrackNotFound is returned when a requested track cannot be found.
	ErrTrackNotFound = errors.New("track not found")

	// ErrPlaybackFailed is returned when playback cannot be started.
	ErrPlaybackFailed = errors.New("playback failed")
)

// NetworkError represents a failed transfer from the media server.
type NetworkError struct {
	Op         string // Operation that failed (e.g., "download", "search")
	URI        string // Remote resource
	StatusCode int    // HTTP status, zero when no response was received
	Err        error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network %s failed for '%s': unexpected status %d", e.Op, e.URI, e.StatusCode)
	}
	return fmt.Sprintf("network %s failed for '%s': %v", e.Op, e.URI, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(op, uri string, statusCode int, err error) *NetworkError {
	return &NetworkError{
		Op:         op,
		URI:        uri,
		StatusCode: statusCode,
		Err:        err,
	}
}

// StaleCacheEntryError describes a cache record whose local file is gone.
type StaleCacheEntryError struct {
	RemoteURI string
	LocalURI  string
	Err       error
}

// Error implements the error interface.
func (e *StaleCacheEntryError) Error() string {
	return fmt.Sprintf("stale cache entry for '%s': local file '%s' unreadable", e.RemoteURI, e.LocalURI)
}

// Unwrap returns the underlying error.
func (e *StaleCacheEntryError) Unwrap() error {
	return e.Err
}

// PlayerError represents an error from the player backend.
// This wraps low-level player errors with additional context.
type PlayerError struct {
	Op      string // Operation that failed (e.g., "load", "play", "stop")
	Source  string // Location being played (if applicable)
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *PlayerError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("player %s failed for '%s': %s", e.Op, e.Source, e.Message)
	}
	return fmt.Sprintf("player %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *PlayerError) Unwrap() error {
	return e.Err
}

// NewPlayerError creates a new PlayerError.
func NewPlayerError(op, source, message string, err error) *PlayerError {
	return &PlayerError{
		Op:      op,
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// RepositoryError represents an error from a repository.
// This wraps persistence layer errors with additional context.
type RepositoryError struct {
	Op      string // Operation that failed (e.g., "find", "insert", "delete")
	Type    string // Repository type (e.g., "cache")
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s.%s failed: %s", e.Type, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError creates a new RepositoryError.
func NewRepositoryError(op, repoType, message string, err error) *RepositoryError {
	return &RepositoryError{
		Op:      op,
		Type:    repoType,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   any    // Value that failed validation
	Message string // Error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ServiceError represents an error from a service layer operation.
type ServiceError struct {
	Service string // Service name (e.g., "PlaybackService", "Gateway")
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s.%s failed: %s", e.Service, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
