package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned for missing or invalid request signatures
	ErrAuthentication = errors.New("authentication failed")

	// ErrConfiguration is returned when a secret or credential is not configured
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation is returned for malformed payloads
	ErrValidation = errors.New("validation failed")
)

// DependencyError wraps a failure of an external collaborator
// (completion API, warehouse, messaging platform).
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// NewDependencyError wraps err unless it is nil
func NewDependencyError(dependency string, err error) error {
	if err == nil {
		return nil
	}
	return &DependencyError{Dependency: dependency, Err: err}
}

// ShouldRetract reports whether a processing failure must release the
// delivery key so the platform's retry gets reprocessed.
// Authentication, configuration and validation failures never do.
func ShouldRetract(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrAuthentication),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrValidation):
		return false
	}
	return true
}
