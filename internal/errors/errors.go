// Package errors implements the VM's error taxonomy:
// ModuleLoadError, BadFunctionCall, RuntimeFault, and JITInitError.
package errors

import (
	"fmt"
)

// Kind discriminates among the error taxonomy above.
type Kind string

const (
	ModuleLoad  Kind = "ModuleLoadError"
	BadFunction Kind = "BadFunctionCall"
	Runtime     Kind = "RuntimeFault"
	JITInit     Kind = "JITInitError"
)

// VMError is the common shape for every error this package produces:
// a kind, a message, and whatever extra context that kind carries
// (function name/index, program counter, cause).
type VMError struct {
	Kind     Kind
	Message  string
	Function string
	Index    int
	PC       int
	Cause    error
}

func (e *VMError) Error() string {
	switch e.Kind {
	case BadFunction:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Function, e.Message)
	case Runtime:
		return fmt.Sprintf("%s: %s (function %q, pc %d)", e.Kind, e.Message, e.Function, e.PC)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *VMError) Unwrap() error { return e.Cause }

// NewModuleLoadError reports a problem loading the binary module
// format: truncated file, bad magic, unknown section code, missing
// END_SECTION, or an out-of-range constant/jump reference.
func NewModuleLoadError(format string, args ...interface{}) *VMError {
	return &VMError{Kind: ModuleLoad, Message: fmt.Sprintf(format, args...)}
}

// NewBadFunctionCall reports a caller/function argument-count
// mismatch. Recoverable: the embedder may retry with corrected
// arguments once VirtualMachine.Run has reset the execution context.
func NewBadFunctionCall(function string, got, want int) *VMError {
	return &VMError{
		Kind:     BadFunction,
		Function: function,
		Message:  fmt.Sprintf("got %d arguments, expected %d", got, want),
	}
}

// NewRuntimeFault reports a fatal interpreter fault: division by
// zero, a missing object slot on read, a non-object in an object
// opcode, stack underflow, fallthrough past END_SECTION, an unknown
// opcode, or exceeding the register-convention arity cap.
func NewRuntimeFault(function string, pc int, format string, args ...interface{}) *VMError {
	return &VMError{
		Kind:     Runtime,
		Function: function,
		PC:       pc,
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewJITInitError reports a failure to initialize the code generator.
// Fatal to VM construction.
func NewJITInitError(cause error) *VMError {
	return &VMError{Kind: JITInit, Message: "code generator failed to initialize", Cause: cause}
}

// Is reports whether err is a VMError of the given kind, so callers
// can branch on the taxonomy without a type switch at every call site.
func Is(err error, kind Kind) bool {
	var ve *VMError
	for err != nil {
		if v, ok := err.(*VMError); ok {
			ve = v
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return ve != nil && ve.Kind == kind
}
