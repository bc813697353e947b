package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/callin/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "dispatch.super_call_offset")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateDispatch()...)
	errors = append(errors, c.validateActivation()...)

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(logging.ValidLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateDispatch() []ValidationError {
	var errors []ValidationError

	if c.Dispatch.SuperCallOffset < 1 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.super_call_offset",
			Value:   c.Dispatch.SuperCallOffset,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateActivation() []ValidationError {
	var errors []ValidationError

	seen := make(map[string]bool, len(c.Activation.Teams))
	for i, name := range c.Activation.Teams {
		field := fmt.Sprintf("activation.teams[%d]", i)
		if strings.TrimSpace(name) == "" {
			errors = append(errors, ValidationError{Field: field, Value: name, Message: "team name must not be empty"})
			continue
		}
		if seen[name] {
			errors = append(errors, ValidationError{Field: field, Value: name, Message: "duplicate team name"})
		}
		seen[name] = true
	}

	return errors
}
