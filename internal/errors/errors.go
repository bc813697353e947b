// Package errors provides centralized error definitions and error handling utilities
// for the callin runtime. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ActivationError: errors raised while changing or querying team activation
//   - DispatchError: errors raised by the dispatch machinery itself (missing
//     original methods, unknown bases), never by advice
//
// Semantic errors represent common error conditions:
//   - PreconditionError: a caller violated an operation's contract
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//
// Advice and base-method failures are never wrapped by the runtime. They reach
// the original caller as the exact error value the advice or base method
// returned, so callers compare them with Is or ==.
//
// # Usage
//
//	err := errors.NewPreconditionError("query activation", errors.ErrThreadNotAlive).
//		WithThread("worker-3")
//
//	if errors.IsPrecondition(err) { ... }
//	if errors.Is(err, errors.ErrThreadNotAlive) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Activation-related sentinel errors
var (
	// ErrThreadNotAlive indicates an activation query or change for a thread that has ended.
	ErrThreadNotAlive = New("thread is not alive")
	// ErrThreadNotAttached indicates the calling goroutine has no thread identity.
	ErrThreadNotAttached = New("goroutine is not attached to a thread")
	// ErrNilThread indicates a nil thread was passed where a thread is required.
	ErrNilThread = New("thread is nil")
	// ErrUnbalancedImplicitDeactivation indicates more implicit deactivations than activations.
	ErrUnbalancedImplicitDeactivation = New("implicit deactivation without matching activation")
	// ErrTeamManagerAlreadySet indicates a second team manager installation.
	ErrTeamManagerAlreadySet = New("team manager already installed")
	// ErrInvalidActivationState indicates an unknown activation state value.
	ErrInvalidActivationState = New("invalid activation state")
)

// Dispatch-related sentinel errors
var (
	// ErrNoOriginal indicates a dispatch table has no entry for a bound method id.
	ErrNoOriginal = New("no original method for bound method id")
	// ErrNoSuchBase indicates a call site named a base that is not linked.
	ErrNoSuchBase = New("base not linked")
	// ErrIndexOutOfRange indicates a dispatch index outside the active team snapshot.
	ErrIndexOutOfRange = New("dispatch index out of range")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// RuntimeError is the base interface for all callin runtime errors.
type RuntimeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ActivationError represents errors related to team activation state.
//
// Example:
//
//	err := errors.NewActivationError("restore activation", errors.ErrInvalidActivationState)
//	err = err.WithTeam("audit").WithThread("main")
//	fmt.Println(err) // "activation error [team=audit, thread=main]: restore activation: invalid activation state"
type ActivationError struct {
	baseError
	Team   string
	Thread string
}

// NewActivationError creates a new ActivationError.
func NewActivationError(message string, cause error) *ActivationError {
	return &ActivationError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithTeam adds a team name to the error context.
func (e *ActivationError) WithTeam(name string) *ActivationError {
	e.Team = name
	return e
}

// WithThread adds a thread name to the error context.
func (e *ActivationError) WithThread(name string) *ActivationError {
	e.Thread = name
	return e
}

// Error returns the formatted error message.
func (e *ActivationError) Error() string {
	return formatWithParts("activation error", e.message, e.cause,
		part("team", e.Team), part("thread", e.Thread))
}

// Is checks if this error matches the target.
func (e *ActivationError) Is(target error) bool {
	if _, ok := target.(*ActivationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DispatchError represents failures of the dispatch machinery, such as a
// missing original method. Advice failures are never turned into DispatchErrors.
type DispatchError struct {
	baseError
	Base     string
	MethodID int32
	CallinID int
}

// NewDispatchError creates a new DispatchError.
func NewDispatchError(message string, cause error) *DispatchError {
	return &DispatchError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityCritical,
		},
		CallinID: -1,
	}
}

// WithBase adds the base name to the error context.
func (e *DispatchError) WithBase(name string) *DispatchError {
	e.Base = name
	return e
}

// WithMethod adds the bound method id to the error context.
func (e *DispatchError) WithMethod(id int32) *DispatchError {
	e.MethodID = id
	return e
}

// WithCallin adds the callin id to the error context.
func (e *DispatchError) WithCallin(id int) *DispatchError {
	e.CallinID = id
	return e
}

// Error returns the formatted error message.
func (e *DispatchError) Error() string {
	parts := []string{part("base", e.Base), fmt.Sprintf("method=%d", e.MethodID)}
	if e.CallinID >= 0 {
		parts = append(parts, fmt.Sprintf("callin=%d", e.CallinID))
	}
	return formatWithParts("dispatch error", e.message, e.cause, parts...)
}

// Is checks if this error matches the target.
func (e *DispatchError) Is(target error) bool {
	if _, ok := target.(*DispatchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// PreconditionError represents a violated operation contract: the caller did
// something the runtime never permits, such as querying an ended thread.
// These errors are fatal to the operation and never retryable.
type PreconditionError struct {
	baseError
	Operation string
	Thread    string
}

// NewPreconditionError creates a new PreconditionError for the named operation.
func NewPreconditionError(operation string, cause error) *PreconditionError {
	return &PreconditionError{
		baseError: baseError{
			message:  operation,
			cause:    cause,
			severity: SeverityCritical,
		},
		Operation: operation,
	}
}

// WithThread adds a thread name to the error context.
func (e *PreconditionError) WithThread(name string) *PreconditionError {
	e.Thread = name
	return e
}

// Error returns the formatted error message.
func (e *PreconditionError) Error() string {
	return formatWithParts("precondition violated", e.message, e.cause, part("thread", e.Thread))
}

// Is checks if this error matches the target.
func (e *PreconditionError) Is(target error) bool {
	if _, ok := target.(*PreconditionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("team", "audit")
//	fmt.Println(err) // "team 'audit' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("callin ids must align with active teams")
//	err = err.WithField("callinIDs").WithValue(3)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			cause:    ErrInvalidInput,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithParts("validation error", e.message, nil, parts...)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// part renders key=value, or "" when value is empty.
func part(key, value string) string {
	if value == "" {
		return ""
	}
	return key + "=" + value
}

// formatWithParts renders "prefix [k=v, ...]: message: cause", skipping empty parts.
func formatWithParts(prefix, message string, cause error, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(kept, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsPrecondition returns true if err is, or wraps, a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return As(err, &pe)
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Nothing in the dispatch core is retryable, so
// this only reports true for RuntimeErrors explicitly marked as such.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rtErr RuntimeError
	if As(err, &rtErr) {
		return rtErr.IsRetryable()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement RuntimeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var rtErr RuntimeError
	if As(err, &rtErr) {
		return rtErr.Severity()
	}
	return SeverityError
}

// IsRuntimeError reports whether err originates from the runtime itself
// rather than from advice or a base method.
func IsRuntimeError(err error) bool {
	var rtErr RuntimeError
	return err != nil && As(err, &rtErr)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
