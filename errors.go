// Package guda structured error types for better error handling
package guda

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Memory errors
	ErrTypeMemory ErrorType = iota
	// Invalid argument errors
	ErrTypeInvalidArg
	// Execution errors
	ErrTypeExecution
	// Numerical errors
	ErrTypeNumerical
	// Device errors
	ErrTypeDevice
	// Not implemented errors
	ErrTypeNotImplemented
	// Program build, binary load and kernel lookup errors
	ErrTypeProgram
)

// GUDAError represents a structured error with context
type GUDAError struct {
	Type    ErrorType
	Op      string      // Operation that failed
	Message string      // Human-readable message
	Err     error       // Underlying error if any
	Context interface{} // Additional context
}

// Error implements the error interface
func (e *GUDAError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GUDA %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("GUDA %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *GUDAError) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeMemory:
		return "Memory"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeNumerical:
		return "Numerical"
	case ErrTypeDevice:
		return "Device"
	case ErrTypeNotImplemented:
		return "NotImplemented"
	case ErrTypeProgram:
		return "Program"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &GUDAError{
		Type:    ErrTypeMemory,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &GUDAError{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &GUDAError{
		Type:    ErrTypeExecution,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewNumericalError creates a numerical error
func NewNumericalError(op string, message string, context interface{}) error {
	return &GUDAError{
		Type:    ErrTypeNumerical,
		Op:      op,
		Message: message,
		Context: context,
	}
}

// NewProgramError creates a program or kernel lookup error
func NewProgramError(op string, message string, err error) error {
	return &GUDAError{
		Type:    ErrTypeProgram,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Common pre-defined errors

var (
	// ErrOutOfMemory indicates memory allocation failure
	ErrOutOfMemory = NewMemoryError("Malloc", "out of memory", nil)

	// ErrInvalidSize indicates invalid size parameter
	ErrInvalidSize = NewInvalidArgError("Malloc", "size must be positive")

	// ErrNullPointer indicates null pointer access
	ErrNullPointer = NewInvalidArgError("Memory", "null pointer")

	// ErrDoubleFree indicates double free attempt
	ErrDoubleFree = NewMemoryError("Free", "double free detected", nil)

	// ErrInvalidDevice indicates invalid device ID
	ErrInvalidDevice = NewInvalidArgError("SetDevice", "invalid device ID")

	// ErrNoDevice indicates no usable compute device
	ErrNoDevice = &GUDAError{Type: ErrTypeDevice, Op: "Device", Message: "no compute device available"}

	// ErrContextDestroyed indicates use of a destroyed context
	ErrContextDestroyed = &GUDAError{Type: ErrTypeDevice, Op: "Context", Message: "context has been destroyed"}

	// ErrKernelFailed indicates a kernel aborted during execution
	ErrKernelFailed = NewExecutionError("Kernel", "kernel execution failed", nil)

	// ErrNaN indicates a NaN was produced where a finite value was required
	ErrNaN = NewNumericalError("Compute", "NaN detected in computation", nil)

	// ErrNotSupported indicates an operation the runtime does not provide
	ErrNotSupported = &GUDAError{Type: ErrTypeNotImplemented, Op: "Runtime", Message: "operation not supported"}

	// ErrProfilingInfoNotAvailable indicates profiling data was requested
	// from an incomplete event or from a queue without profiling
	ErrProfilingInfoNotAvailable = &GUDAError{Type: ErrTypeExecution, Op: "ProfilingInfo", Message: "profiling information not available"}
)

func errorType(err error) (ErrorType, bool) {
	var e *GUDAError
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeMemory
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeInvalidArg
}

// IsExecutionError checks if an error is an execution error
func IsExecutionError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeExecution
}

// IsNumericalError checks if an error is a numerical error
func IsNumericalError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeNumerical
}

// IsDeviceError checks if an error is a device error
func IsDeviceError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeDevice
}

// IsNotImplementedError checks if an error is a not implemented error
func IsNotImplementedError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeNotImplemented
}

// IsProgramError checks if an error is a program error
func IsProgramError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeProgram
}

// StatusString returns a short human-readable status for err, in the style
// of a driver status table. A nil error reports "No errors".
func StatusString(err error) string {
	if err == nil {
		return "No errors"
	}
	t, ok := errorType(err)
	if !ok {
		return "Unknown error"
	}
	switch t {
	case ErrTypeMemory:
		return "Out of memory or invalid memory operation"
	case ErrTypeInvalidArg:
		return "Invalid value"
	case ErrTypeExecution:
		return "Launch failed"
	case ErrTypeNumerical:
		return "Numerical error"
	case ErrTypeDevice:
		return "No compute device available"
	case ErrTypeNotImplemented:
		return "Not supported"
	case ErrTypeProgram:
		return "Invalid program or kernel"
	default:
		return "Unknown error"
	}
}
