// Package errors provides a standardized application error used for the
// tracer's fail-fast paths: configuration failures (double init, mmap
// failure) and GGUF malformed-file errors. Per §7, capacity and input
// shortcomings are never wrapped here — they stay silent, in-band
// sentinels (UINT16_MAX, UINT32_MAX, 0, "").
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// AppError is a standardized, structured error carrying enough context to
// log and classify without string-matching the message.
type AppError struct {
	Code       string
	Message    string
	Component  string
	Operation  string
	Cause      error
	StackTrace string
	Severity   Severity
	Timestamp  time.Time
}

// Severity ranks how the caller should react to an AppError.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Error codes used by this module.
const (
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeConfigDoubleInit = "CONFIG_DOUBLE_INIT"
	CodeMalformedFile    = "MALFORMED_FILE"
)

// New creates a standardized error, capturing the caller's file:line.
func New(code, component, operation, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	return &AppError{
		Code:       code,
		Message:    message,
		Component:  component,
		Operation:  operation,
		StackTrace: fmt.Sprintf("%s:%d", file, line),
		Severity:   SeverityMedium,
		Timestamp:  time.Now(),
	}
}

// NewCritical creates a critical-severity error.
func NewCritical(code, component, operation, message string) *AppError {
	err := New(code, component, operation, message)
	err.Severity = SeverityCritical
	return err
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Wrap sets the cause and returns the receiver for chaining.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// ConfigError creates a configuration-kind error (open/truncate/mmap
// failure during trace_init, config load/validation failure). Double init
// is reported with CodeConfigDoubleInit via New instead.
func ConfigError(operation, message string) *AppError {
	return New(CodeConfigInvalid, "config", operation, message)
}

// MalformedFileError creates a malformed-file error for the GGUF dumper.
func MalformedFileError(operation, message string) *AppError {
	return New(CodeMalformedFile, "gguf", operation, message)
}
