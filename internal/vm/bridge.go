package vm

import "b9vm/internal/value"

// maxRegisterArgs bounds the register calling convention's arity.
// Exceeding it is a fatal RuntimeFault.
const maxRegisterArgs = 7

// CodeGenerator is the external black-box collaborator: given a
// function index, it returns a CompiledEntry honoring one of the two
// documented calling conventions, or an error if it cannot compile
// that function.
type CodeGenerator interface {
	Generate(index int) (CompiledEntry, error)
}

// CompiledEntry is a native-compiled function under the two ABIs the
// bridge understands. dispatch calls Stack or Register according to
// Config.PassParam, so the field for the configured ABI must be set;
// an entry may set both (package jit's generator does).
type CompiledEntry struct {
	// Stack, under the stack calling convention, is invoked with the
	// execution context and function index; it pops its own arguments
	// from the operand stack and returns the raw result word.
	Stack func(ctx *ExecutionContext, index int) uint64

	// Register, under the register calling convention, receives the
	// function's arguments as positional raw words (most-recently
	// pushed argument last) and returns the raw result word.
	Register func(args []uint64) uint64
}

// dispatch is the bridge's single coordination point: consult the
// compiled-code table, and either interpret or call through to native
// code under the configured ABI. Native code that needs to re-enter
// the interpreter calls back through Trampoline, which runs this same
// function.
func (vmachine *VirtualMachine) dispatch(ctx *ExecutionContext, index int) value.Value {
	entry := vmachine.compiled[index]
	if entry == nil {
		return vmachine.Interpret(ctx, index)
	}
	if vmachine.config.PassParam {
		return vmachine.invokeRegister(ctx, index, *entry)
	}
	return vmachine.invokeStack(ctx, index, *entry)
}

func (vmachine *VirtualMachine) invokeStack(ctx *ExecutionContext, index int, entry CompiledEntry) value.Value {
	raw := entry.Stack(ctx, index)
	return value.FromRaw(raw)
}

func (vmachine *VirtualMachine) invokeRegister(ctx *ExecutionContext, index int, entry CompiledEntry) value.Value {
	spec := vmachine.module.Functions[index]
	nargs := int(spec.NArgs)
	if nargs > maxRegisterArgs {
		panic(faultf(spec.Name, 0, "too many arguments for register calling convention: %d exceeds max %d", nargs, maxRegisterArgs))
	}
	args := make([]uint64, nargs)
	for i := nargs - 1; i >= 0; i-- {
		args[i] = ctx.Pop().Raw()
	}
	raw := entry.Register(args)
	return value.FromRaw(raw)
}

// Trampoline is the one documented re-entry point native code calls
// through to run the bridge again, e.g. to call a function not yet
// compiled. Both ABIs receive the execution context so that
// re-entrant calls, primitives, and GC interactions share state.
func (vmachine *VirtualMachine) Trampoline(ctx *ExecutionContext, index int) uint64 {
	return vmachine.dispatch(ctx, index).Raw()
}
