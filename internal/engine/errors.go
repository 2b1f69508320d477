package engine

import (
	"errors"
	"fmt"
)

// ConfigError reports a programming error in the way the engine or a
// subscriber was configured. Config errors are returned synchronously and
// are not meant to be retried.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending option, when there is one.
	Field string
}

// ConfigErrorCode categorizes config errors.
type ConfigErrorCode string

const (
	// ErrCodeMutuallyExclusive indicates two options that cannot be combined.
	ErrCodeMutuallyExclusive ConfigErrorCode = "MUTUALLY_EXCLUSIVE"

	// ErrCodeInvalidOption indicates an option with an unusable value.
	ErrCodeInvalidOption ConfigErrorCode = "INVALID_OPTION"

	// ErrCodeMissingEngine indicates no engine was available in context.
	ErrCodeMissingEngine ConfigErrorCode = "MISSING_ENGINE"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (option=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is a ConfigError with the given code.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error, code ConfigErrorCode) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// NewMutuallyExclusiveError creates a ConfigError for two conflicting options.
func NewMutuallyExclusiveError(a, b string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMutuallyExclusive,
		Message: fmt.Sprintf("%s and %s are mutually exclusive", a, b),
		Field:   a,
	}
}

// NewInvalidOptionError creates a ConfigError for an unusable option value.
func NewInvalidOptionError(field, message string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidOption,
		Message: message,
		Field:   field,
	}
}

// NewMissingEngineError creates a ConfigError for an absent engine.
func NewMissingEngineError() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingEngine,
		Message: "no engine in context; wrap the tree with provider.WithEngine",
	}
}
