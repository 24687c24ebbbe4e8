package experiment

import (
	"errors"
	"fmt"
)

// ErrInvalidDefinition is the sentinel wrapped by every ConfigurationError.
// Callers can test for it with errors.Is without caring about the offending field.
var ErrInvalidDefinition = errors.New("invalid experiment definition")

// ConfigurationError reports why a definition was rejected at construction time.
type ConfigurationError struct {
	// Field locates the problem, e.g. "variants[2].weight".
	Field string
	// Reason is a human-readable description.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidDefinition, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidDefinition
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
