package vm

import "b9vm/internal/errors"

// faultf builds a RuntimeFault carrying the function and program
// counter at the fault site. The interpreter and bridge
// panic with the result; VirtualMachine.Run recovers it at the run
// boundary and resets the execution context.
func faultf(function string, pc int, format string, args ...interface{}) *errors.VMError {
	return errors.NewRuntimeFault(function, pc, format, args...)
}
