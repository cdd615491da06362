package guda

import (
	"errors"
	"fmt"
	"testing"
)

func TestStructuredErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantOp   string
		wantMsg  string
		checkFn  func(error) bool
	}{
		{
			name:     "Memory Error",
			err:      ErrOutOfMemory,
			wantType: ErrTypeMemory,
			wantOp:   "Malloc",
			wantMsg:  "out of memory",
			checkFn:  IsMemoryError,
		},
		{
			name:     "Invalid Arg Error",
			err:      ErrInvalidSize,
			wantType: ErrTypeInvalidArg,
			wantOp:   "Malloc",
			wantMsg:  "size must be positive",
			checkFn:  IsInvalidArgError,
		},
		{
			name:     "Invalid Device Error",
			err:      ErrInvalidDevice,
			wantType: ErrTypeInvalidArg,
			wantOp:   "SetDevice",
			wantMsg:  "invalid device ID",
			checkFn:  IsInvalidArgError,
		},
		{
			name:     "No Device Error",
			err:      ErrNoDevice,
			wantType: ErrTypeDevice,
			wantOp:   "Device",
			wantMsg:  "no compute device available",
			checkFn:  IsDeviceError,
		},
		{
			name:     "Execution Error",
			err:      ErrKernelFailed,
			wantType: ErrTypeExecution,
			wantOp:   "Kernel",
			wantMsg:  "kernel execution failed",
			checkFn:  IsExecutionError,
		},
		{
			name:     "Numerical Error",
			err:      ErrNaN,
			wantType: ErrTypeNumerical,
			wantOp:   "Compute",
			wantMsg:  "NaN detected in computation",
			checkFn:  IsNumericalError,
		},
		{
			name:     "Context Destroyed Error",
			err:      ErrContextDestroyed,
			wantType: ErrTypeDevice,
			wantOp:   "Context",
			wantMsg:  "context has been destroyed",
			checkFn:  IsDeviceError,
		},
		{
			name:     "Profiling Unavailable Error",
			err:      ErrProfilingInfoNotAvailable,
			wantType: ErrTypeExecution,
			wantOp:   "ProfilingInfo",
			wantMsg:  "profiling information not available",
			checkFn:  IsExecutionError,
		},
		{
			name:     "Not Implemented Error",
			err:      ErrNotSupported,
			wantType: ErrTypeNotImplemented,
			wantOp:   "Runtime",
			wantMsg:  "operation not supported",
			checkFn:  IsNotImplementedError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Check if it's a GUDAError
			gudaErr, ok := tt.err.(*GUDAError)
			if !ok {
				t.Fatalf("Expected GUDAError, got %T", tt.err)
			}

			// Check type
			if gudaErr.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", gudaErr.Type, tt.wantType)
			}

			// Check operation
			if gudaErr.Op != tt.wantOp {
				t.Errorf("Op = %v, want %v", gudaErr.Op, tt.wantOp)
			}

			// Check message
			if gudaErr.Message != tt.wantMsg {
				t.Errorf("Message = %v, want %v", gudaErr.Message, tt.wantMsg)
			}

			// Check type-specific function
			if !tt.checkFn(tt.err) {
				t.Errorf("Type check function returned false")
			}

			// Check error string contains expected parts
			errStr := tt.err.Error()
			if errStr == "" {
				t.Error("Error string is empty")
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	wrappedErr := NewMemoryError("Test", "wrapped error", baseErr)

	// Test Unwrap
	gudaErr, ok := wrappedErr.(*GUDAError)
	if !ok {
		t.Fatal("Expected GUDAError")
	}

	unwrapped := gudaErr.Unwrap()
	if unwrapped != baseErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, baseErr)
	}

	// Test errors.Is
	if !errors.Is(wrappedErr, baseErr) {
		t.Error("errors.Is() should return true for wrapped error")
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{ErrTypeMemory, "Memory"},
		{ErrTypeInvalidArg, "InvalidArgument"},
		{ErrTypeExecution, "Execution"},
		{ErrTypeNumerical, "Numerical"},
		{ErrTypeDevice, "Device"},
		{ErrTypeNotImplemented, "NotImplemented"},
		{ErrTypeProgram, "Program"},
		{ErrorType(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.errType.String()
			if got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrappedErrorsKeepType(t *testing.T) {
	base := NewProgramError("LoadBinary", "image checksum mismatch", nil)
	wrapped := fmt.Errorf("loading samples: %w", base)

	if !IsProgramError(wrapped) {
		t.Errorf("IsProgramError(%v) = false, want true", wrapped)
	}
	if IsMemoryError(wrapped) {
		t.Errorf("IsMemoryError(%v) = true, want false", wrapped)
	}
	if IsProgramError(errors.New("plain")) {
		t.Error("plain errors carry no GUDA type")
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "No errors"},
		{ErrOutOfMemory, "Out of memory or invalid memory operation"},
		{ErrInvalidSize, "Invalid value"},
		{ErrKernelFailed, "Launch failed"},
		{ErrNaN, "Numerical error"},
		{ErrNoDevice, "No compute device available"},
		{ErrNotSupported, "Not supported"},
		{NewProgramError("Kernel", "missing", nil), "Invalid program or kernel"},
		{errors.New("other"), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := StatusString(tt.err); got != tt.want {
				t.Errorf("StatusString(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
