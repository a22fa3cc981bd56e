package vm

import "b9vm/internal/value"

// ExecutionContext is a single logical thread of execution: it owns an
// operand stack and the name of the function the current Run was
// invoked on, holds a borrowed reference to the owning VirtualMachine,
// and participates as a GC root provider.
//
// The VM is single-threaded; an ExecutionContext pins to the goroutine
// that calls VirtualMachine.Run for its lifetime.
type ExecutionContext struct {
	stack    *Stack
	vmachine *VirtualMachine
	function string
}

func newExecutionContext(vmachine *VirtualMachine) *ExecutionContext {
	return &ExecutionContext{
		stack:    NewStack(DefaultStackCapacity),
		vmachine: vmachine,
	}
}

// Push pushes v onto the context's operand stack. Satisfies
// module.ExecContext, the interface primitives are written against.
func (ctx *ExecutionContext) Push(v value.Value) { ctx.stack.Push(v) }

// Pop pops and returns the top of the context's operand stack.
func (ctx *ExecutionContext) Pop() value.Value { return ctx.stack.Pop() }

// Peek returns the top of the context's operand stack without popping it.
func (ctx *ExecutionContext) Peek() value.Value { return ctx.stack.Peek() }

// VM exposes the owning VirtualMachine to primitives (for example
// print_string resolving a boxed string constant through StringOf).
func (ctx *ExecutionContext) VM() *VirtualMachine { return ctx.vmachine }

// VisitRoots implements gcheap.RootProvider: every Value currently live
// on the operand stack is a GC root.
func (ctx *ExecutionContext) VisitRoots(visit func(value.Value)) {
	for _, v := range ctx.stack.Live() {
		visit(v)
	}
}

func (ctx *ExecutionContext) reset() {
	ctx.stack.Restore(0)
	ctx.function = ""
}
