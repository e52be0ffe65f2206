package cutting

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAttached is returned when an operation needs an engine manager and none is set
	ErrNotAttached = errors.New("Cutting manager not set")
	// ErrInvalidConfiguration is wrapped by every ConfigurationError
	ErrInvalidConfiguration = errors.New("Invalid cutting configuration object")
	// ErrIndexOutOfRange is wrapped by every IndexError
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrSectionFull is returned when the engine refuses another plane
	ErrSectionFull = errors.New("cutting section is full")
	// ErrNoFaceSelected is returned when a face-based operation runs without a face selection
	ErrNoFaceSelected = errors.New("no face selected")
	// ErrInvalidOpacity is returned for opacities outside [0, 1]
	ErrInvalidOpacity = errors.New("opacity must be within [0, 1]")
)

// ConfigurationError describes a malformed configuration field
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// IndexError reports a section or plane index that does not exist.
// HasPlane is false when the section itself is missing.
type IndexError struct {
	Section  int
	Plane    int
	HasPlane bool
}

// SectionIndexError creates the error for a missing section
func SectionIndexError(section int) *IndexError {
	return &IndexError{Section: section}
}

// PlaneIndexError creates the error for a missing plane
func PlaneIndexError(section, plane int) *IndexError {
	return &IndexError{Section: section, Plane: plane, HasPlane: true}
}

func (e *IndexError) Error() string {
	if !e.HasPlane {
		return fmt.Sprintf("No cutting section at index %d", e.Section)
	}
	return fmt.Sprintf("No cutting plane at index %d in section %d", e.Plane, e.Section)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}
