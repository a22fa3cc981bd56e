// Package module implements the VM's binary module format: the loaded,
// immutable program consisting of a function table, a string pool, and
// a primitive binding table.
package module

import (
	"b9vm/internal/bytecode"
	"b9vm/internal/errors"
	"b9vm/internal/value"
)

// ExecContext is the narrow view of an execution context a primitive
// needs: direct operand-stack access. It is satisfied by
// *vm.ExecutionContext; module does not import vm, so the dependency
// runs one way, the same direction the bridge consults the module.
type ExecContext interface {
	Push(v value.Value)
	Pop() value.Value
	Peek() value.Value
}

// Primitive is a host-provided native routine, callable from bytecode
// by index, that manipulates the operand stack directly and returns
// nothing.
type Primitive func(ctx ExecContext)

// FunctionSpec is an immutable record owned by the Module: a function's
// name, arity, local-register count, and its bytecode array, which
// always ends with bytecode.End.
type FunctionSpec struct {
	Name  string
	Index uint32
	NArgs uint32
	NRegs uint32
	Code  []bytecode.Instruction
}

// Module owns everything a loaded program needs: the ordered function
// table (function index is its position), the string pool, and the
// primitive binding table, plus a by-name index for function lookup.
// Loaded once; immutable for the rest of its lifetime.
type Module struct {
	Functions []FunctionSpec
	Strings   []string

	// PrimitiveNames preserves the order and identity of primitive
	// bindings as declared in the module; Primitives[i] is the host
	// routine bound to PrimitiveNames[i] at load time.
	PrimitiveNames []string
	Primitives     []Primitive

	byName map[string]int
}

// New builds a Module from parsed parts and indexes it by function
// name; it does not validate them (Load calls Validate afterwards).
// Exported so tests and the producer side of a round-trip can
// construct a Module directly.
func New(functions []FunctionSpec, strings []string, primitiveNames []string, primitives []Primitive) *Module {
	m := &Module{
		Functions:      functions,
		Strings:        strings,
		PrimitiveNames: primitiveNames,
		Primitives:     primitives,
		byName:         make(map[string]int, len(functions)),
	}
	for i, f := range functions {
		m.byName[f.Name] = i
	}
	return m
}

// FunctionByName resolves a function by name, as VirtualMachine.Run
// does when given a name rather than an index.
func (m *Module) FunctionByName(name string) (int, bool) {
	i, ok := m.byName[name]
	return i, ok
}

// Validate checks the module's load-time invariants: every
// function's bytecode ends with END_SECTION, and every constant,
// function, primitive, and jump reference is in range. Called by Load
// after parsing; exported so a Module assembled by hand (tests, or an
// in-process producer) can be checked the same way.
func (m *Module) Validate() error {
	for _, f := range m.Functions {
		if err := m.validateFunction(f); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) validateFunction(f FunctionSpec) error {
	if len(f.Code) == 0 || f.Code[len(f.Code)-1] != bytecode.End {
		return errors.NewModuleLoadError("function %q: bytecode does not end with END_SECTION", f.Name)
	}
	if f.NArgs >= 1<<31 || f.NRegs >= 1<<31 {
		return errors.NewModuleLoadError("function %q: negative argument or register count", f.Name)
	}
	for pc, instr := range f.Code {
		op, imm := instr.OpCode(), instr.Immediate()
		switch op {
		case bytecode.StrPushConstant:
			if imm < 0 || int(imm) >= len(m.Strings) {
				return errors.NewModuleLoadError("function %q: string constant %d out of range", f.Name, imm)
			}
		case bytecode.FunctionCall:
			if imm < 0 || int(imm) >= len(m.Functions) {
				return errors.NewModuleLoadError("function %q: function reference %d out of range", f.Name, imm)
			}
		case bytecode.PrimitiveCall:
			if imm < 0 || int(imm) >= len(m.Primitives) {
				return errors.NewModuleLoadError("function %q: primitive reference %d out of range", f.Name, imm)
			}
		case bytecode.Jmp, bytecode.JmpEqEq, bytecode.JmpEqNeq, bytecode.JmpEqGt, bytecode.JmpEqGe, bytecode.JmpEqLt, bytecode.JmpEqLe:
			target := pc + int(imm) + 1
			if target < 0 || target >= len(f.Code) {
				return errors.NewModuleLoadError("function %q: jump target %d out of range at pc %d", f.Name, target, pc)
			}
		default:
			if !op.IsDefined() {
				return errors.NewModuleLoadError("function %q: unknown opcode 0x%02x at pc %d", f.Name, byte(op), pc)
			}
		}
	}
	return nil
}
