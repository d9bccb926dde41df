package api

import "fmt"

// UnknownToolError is returned when a call names a tool that is not
// registered. It indicates a client bug and is never retried.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// DuplicateToolError is returned when a tool name is registered twice.
// It only occurs during startup and indicates a programming error.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// SchemaValidationError reports malformed tool arguments. Field is empty
// when the payload as a whole is malformed (e.g., not a JSON object).
type SchemaValidationError struct {
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid arguments: %s", e.Reason)
	}
	return fmt.Sprintf("invalid arguments: %s: %s", e.Field, e.Reason)
}

// ExecutionProviderError reports a failed call into the sandbox provider
// (transport failure, timeout, quota, crash). The failure is terminal for
// the call but does not affect subsequent calls.
type ExecutionProviderError struct {
	// Provider names the sandbox backend (e.g., "http", "claim").
	Provider string

	// Cause is the underlying failure.
	Cause error
}

func (e *ExecutionProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("sandbox execution failed: %v", e.Cause)
	}
	return fmt.Sprintf("sandbox execution failed (%s): %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExecutionProviderError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a SchemaValidationError for the given field.
func NewValidationError(field, reason string) *SchemaValidationError {
	return &SchemaValidationError{Field: field, Reason: reason}
}
