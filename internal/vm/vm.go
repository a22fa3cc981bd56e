// Package vm implements the interpreter loop, the function-invocation
// bridge, and the VirtualMachine facade.
package vm

import (
	"b9vm/internal/config"
	"b9vm/internal/diagnostics"
	"b9vm/internal/errors"
	"b9vm/internal/gcheap"
	"b9vm/internal/module"
	"b9vm/internal/value"
)

// VirtualMachine is the facade owning the loaded module, the execution
// context, the compiled-code table, and the optional code generator
//.
type VirtualMachine struct {
	config  config.Config
	module  *module.Module
	heap    *gcheap.Heap
	ctx     *ExecutionContext
	codegen CodeGenerator

	// compiled has the same length as module.Functions after
	// GenerateAllCode; entries are nil (interpret) or a *CompiledEntry
	// honoring the configured ABI (spec invariant: "the compiled-code
	// table has the same length as the module's function vector").
	compiled []*CompiledEntry

	stringCache  map[int]value.Value
	stringValues map[uint32]string

	diag     *diagnostics.Sink
	runID    string
	traceSeq int
}

// AttachDiagnostics wires a trace sink into the VM; every instruction
// executed under Run while Config.Debug is set is persisted to it.
// runID scopes the recorded rows to one invocation so EventsForRun can
// retrieve just this run's trace.
func (vmachine *VirtualMachine) AttachDiagnostics(sink *diagnostics.Sink, runID string) {
	vmachine.diag = sink
	vmachine.runID = runID
}

func (vmachine *VirtualMachine) traceInstruction(function string, pc int, opcode string, immediate int32, stackDepth int) {
	if vmachine.diag == nil || !vmachine.config.Debug {
		return
	}
	vmachine.traceSeq++
	// Diagnostics failures never interrupt execution; tracing is a
	// best-effort side channel, not part of the VM's error taxonomy.
	_ = vmachine.diag.RecordInstruction(vmachine.runID, vmachine.traceSeq, function, pc, opcode, immediate, stackDepth)
}

// New constructs a VirtualMachine with no module loaded. Initialize
// must be called before Run; this split mirrors the reference
// implementation's VirtualMachine::initialize/shutdown pair.
func New(cfg config.Config, codegen CodeGenerator) *VirtualMachine {
	return &VirtualMachine{
		config:       cfg,
		heap:         gcheap.New(),
		codegen:      codegen,
		stringCache:  make(map[int]value.Value),
		stringValues: make(map[uint32]string),
	}
}

// Initialize acquires the GC/JIT backend: it allocates the execution
// context and registers both it and the VM's own string-constant cache
// as GC roots. Must be called exactly once before Load/Run.
func (vmachine *VirtualMachine) Initialize() error {
	if vmachine.config.JIT && vmachine.codegen == nil {
		return errors.NewJITInitError(errors.NewModuleLoadError("jit enabled but no code generator supplied"))
	}
	vmachine.ctx = newExecutionContext(vmachine)
	vmachine.heap.RegisterRoot(vmachine.ctx)
	vmachine.heap.RegisterRoot(vmRoots{vmachine})
	return nil
}

// Shutdown releases VM-owned resources. Safe to call after a fatal
// error; guaranteed on all exit paths by the embedder.
func (vmachine *VirtualMachine) Shutdown() {
	vmachine.ctx = nil
}

// vmRoots adapts the VM's own live Value caches (interned strings) to
// gcheap.RootProvider, so SYSTEM_COLLECT never frees a string constant
// still reachable only through the VM rather than the operand stack.
type vmRoots struct{ vmachine *VirtualMachine }

func (r vmRoots) VisitRoots(visit func(value.Value)) {
	for _, v := range r.vmachine.stringCache {
		visit(v)
	}
}

// Load installs m as the VM's program. The compiled-code table is
// reset to all-nil (interpret-only) until GenerateCode/GenerateAllCode
// runs.
func (vmachine *VirtualMachine) Load(m *module.Module) {
	vmachine.module = m
	vmachine.compiled = make([]*CompiledEntry, len(m.Functions))
	vmachine.stringCache = make(map[int]value.Value)
	vmachine.stringValues = make(map[uint32]string)
}

// Module returns the currently loaded module, or nil if none.
func (vmachine *VirtualMachine) Module() *module.Module { return vmachine.module }

// SetCodeGenerator installs codegen. Exists alongside the constructor
// argument because a CodeGenerator implementation that is itself
// backed by this VM's interpreter (package jit) needs a VM reference
// before it can be constructed, and the VM needs a CodeGenerator
// reference before GenerateCode can run — New(cfg, nil) followed by
// SetCodeGenerator breaks that cycle.
func (vmachine *VirtualMachine) SetCodeGenerator(codegen CodeGenerator) { vmachine.codegen = codegen }

// CurrentContext returns the VM's single execution context. The
// register calling convention's ABI deliberately carries no context
// parameter; a CodeGenerator backing a Register entry with the
// interpreter (as package jit's reference generator does) needs this
// to push arguments back before re-entering Interpret.
func (vmachine *VirtualMachine) CurrentContext() *ExecutionContext { return vmachine.ctx }

// GenerateCode asks the configured code generator to compile function
// index and installs the result in the compiled-code table.
func (vmachine *VirtualMachine) GenerateCode(index int) error {
	if vmachine.codegen == nil {
		return errors.NewJITInitError(errors.NewModuleLoadError("no code generator configured"))
	}
	entry, err := vmachine.codegen.Generate(index)
	if err != nil {
		return err
	}
	vmachine.compiled[index] = &entry
	return nil
}

// GenerateAllCode compiles every function in the loaded module. After
// it returns, compiled has the same length as module.Functions.
func (vmachine *VirtualMachine) GenerateAllCode() error {
	for i := range vmachine.module.Functions {
		if err := vmachine.GenerateCode(i); err != nil {
			return err
		}
	}
	return nil
}

// Run invokes the named function with args and returns its result.
// Argument count is validated against the target FunctionSpec before
// the bridge runs (a recoverable BadFunctionCall); arguments are
// pushed last-to-first so the first caller-supplied argument ends up
// deepest on the stack, matching VirtualMachine::run in the reference
// implementation. The execution context is reset on every exit path,
// including a fatal RuntimeFault.
func (vmachine *VirtualMachine) Run(name string, args []value.Value) (result value.Value, err error) {
	index, ok := vmachine.module.FunctionByName(name)
	if !ok {
		return value.Undefined, errors.NewModuleLoadError("no such function %q", name)
	}
	return vmachine.RunIndex(index, args)
}

// RunIndex is Run addressed by function index instead of name.
func (vmachine *VirtualMachine) RunIndex(index int, args []value.Value) (result value.Value, err error) {
	spec := vmachine.module.Functions[index]
	if len(args) != int(spec.NArgs) {
		return value.Undefined, errors.NewBadFunctionCall(spec.Name, len(args), int(spec.NArgs))
	}

	defer func() {
		if r := recover(); r != nil {
			vmachine.ctx.reset()
			if ve, ok := r.(*errors.VMError); ok {
				err = ve
				return
			}
			panic(r)
		}
	}()

	for i := len(args) - 1; i >= 0; i-- {
		vmachine.ctx.Push(args[i])
	}
	vmachine.ctx.function = spec.Name
	result = vmachine.dispatch(vmachine.ctx, index)
	vmachine.ctx.reset()
	return result, nil
}
