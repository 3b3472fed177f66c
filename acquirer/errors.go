package acquirer

import (
	"errors"
	"fmt"
)

var (
	ErrTransient          = errors.New("transient provider error")
	ErrCapacity           = errors.New("out of capacity")
	ErrIdempotentConflict = errors.New("resource limit reached without a matching instance")
	ErrUnclassified       = errors.New("unclassified provider error")
	ErrNoLocations        = errors.New("no location matches the requested locations")
)

// ConfigurationError reports a problem that no amount of retrying can fix.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ClassifiedError ties a provider failure to its classification.
type ClassifiedError struct {
	Classification Classification
	Location       string
	Err            error
}

func (e *ClassifiedError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s: %s", e.Classification, e.Err)
	}
	return fmt.Sprintf("%s in '%s': %s", e.Classification, e.Location, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

func (e *ClassifiedError) Is(target error) bool {
	switch e.Classification {
	case Transient:
		return target == ErrTransient
	case Capacity:
		return target == ErrCapacity
	case IdempotentConflict:
		return target == ErrIdempotentConflict
	case Fatal:
		return target == ErrUnclassified
	default:
		return false
	}
}
