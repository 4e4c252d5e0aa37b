// Package errors provides unified error handling with structured error codes.
package errors

import "fmt"

// Code classifies an error for logging and feature-disable decisions.
type Code int

const (
	Unknown Code = iota
	ConfigInvalid
	ConfigMissing
	DeviceUnavailable
	DeviceRead
	TelemetryWrite
	ToolMissing
	ProcessStart
	ProcessStop
	SpliceFailed
	OverlayFailed
)

var codeNames = map[Code]string{
	Unknown:           "UNKNOWN",
	ConfigInvalid:     "CONFIG_INVALID",
	ConfigMissing:     "CONFIG_MISSING",
	DeviceUnavailable: "DEVICE_UNAVAILABLE",
	DeviceRead:        "DEVICE_READ",
	TelemetryWrite:    "TELEMETRY_WRITE",
	ToolMissing:       "TOOL_MISSING",
	ProcessStart:      "PROCESS_START",
	ProcessStop:       "PROCESS_STOP",
	SpliceFailed:      "SPLICE_FAILED",
	OverlayFailed:     "OVERLAY_FAILED",
}

// String returns the code's name.
func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsFatal reports whether an error must stop startup rather than disable a feature.
func IsFatal(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case ConfigMissing, DeviceUnavailable:
		return true
	default:
		return false
	}
}
