package vm

import (
	"b9vm/internal/bytecode"
	"b9vm/internal/value"
)

// Interpret runs the bytecode interpreter loop for function index on
// ctx. On entry it establishes args_base relative to the
// caller's already-pushed arguments and reserves nregs zero-filled
// locals; on FUNCTION_RETURN it restores the stack pointer to
// args_base and returns the function's result.
//
// Exported so a CodeGenerator can use it as the execution backend for
// a compiled entry (package jit does this); ordinary calls reach it
// through dispatch, never directly.
//
// Branch offset convention (pinned against
// original_source/b9/src/ExecutionContext.cpp): a taken branch adds
// its immediate to pc, and the loop's unconditional pc++ then runs on
// top of that, so the net advance for a taken branch is pc+imm+1.
func (vmachine *VirtualMachine) Interpret(ctx *ExecutionContext, index int) value.Value {
	spec := vmachine.module.Functions[index]
	argsBase := ctx.stack.Len() - int(spec.NArgs)
	ctx.stack.PushN(int(spec.NRegs))

	code := spec.Code
	pc := 0
	for {
		instr := code[pc]
		op, imm := instr.OpCode(), instr.Immediate()
		vmachine.traceInstruction(spec.Name, pc, op.String(), imm, ctx.stack.Len())

		switch op {
		case bytecode.IntPushConstant:
			ctx.stack.Push(value.NewInt(int64(imm)))

		case bytecode.StrPushConstant:
			if int(imm) < 0 || int(imm) >= len(vmachine.module.Strings) {
				panic(faultf(spec.Name, pc, "string constant %d out of range", imm))
			}
			ctx.stack.Push(vmachine.internedString(int(imm)))

		case bytecode.Drop:
			ctx.stack.Pop()

		case bytecode.Duplicate:
			ctx.stack.Push(ctx.stack.Peek())

		case bytecode.PushFromVar:
			ctx.stack.Push(ctx.stack.At(argsBase + int(imm)))

		case bytecode.PopIntoVar:
			ctx.stack.SetAt(argsBase+int(imm), ctx.stack.Pop())

		case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div:
			vmachine.doArithmetic(ctx, spec.Name, pc, op)

		case bytecode.Not:
			v := requireInt(ctx.stack.Pop(), spec.Name, pc)
			if v == 0 {
				ctx.stack.Push(value.NewInt(1))
			} else {
				ctx.stack.Push(value.NewInt(0))
			}

		case bytecode.Jmp:
			pc += int(imm)

		case bytecode.JmpEqEq, bytecode.JmpEqNeq, bytecode.JmpEqGt, bytecode.JmpEqGe, bytecode.JmpEqLt, bytecode.JmpEqLe:
			r := requireInt(ctx.stack.Pop(), spec.Name, pc)
			l := requireInt(ctx.stack.Pop(), spec.Name, pc)
			if comparisonHolds(op, l, r) {
				pc += int(imm)
			}

		case bytecode.FunctionCall:
			if int(imm) < 0 || int(imm) >= len(vmachine.module.Functions) {
				panic(faultf(spec.Name, pc, "function reference %d out of range", imm))
			}
			ctx.stack.Push(vmachine.dispatch(ctx, int(imm)))

		case bytecode.PrimitiveCall:
			if int(imm) < 0 || int(imm) >= len(vmachine.module.Primitives) {
				panic(faultf(spec.Name, pc, "primitive reference %d out of range", imm))
			}
			vmachine.module.Primitives[imm](ctx)

		case bytecode.FunctionReturn:
			result := ctx.stack.Pop()
			ctx.stack.Restore(argsBase)
			return result

		case bytecode.NewObject:
			ctx.stack.Push(vmachine.heap.Alloc())

		case bytecode.PushFromObject:
			objVal := ctx.stack.Pop()
			if !objVal.IsObject() {
				panic(faultf(spec.Name, pc, "PUSH_FROM_OBJECT on a non-object value"))
			}
			obj := vmachine.heap.Object(objVal.ObjectHandle())
			v, ok := obj.Get(imm)
			if !ok {
				panic(faultf(spec.Name, pc, "read of undefined slot %d", imm))
			}
			ctx.stack.Push(v)

		case bytecode.PopIntoObject:
			val := ctx.stack.Pop()
			objVal := ctx.stack.Pop()
			if !objVal.IsObject() {
				panic(faultf(spec.Name, pc, "POP_INTO_OBJECT on a non-object value"))
			}
			obj := vmachine.heap.Object(objVal.ObjectHandle())
			obj.Set(imm, value.SlotValue, val)

		case bytecode.CallIndirect:
			panic(faultf(spec.Name, pc, "CALL_INDIRECT has no defined semantics"))

		case bytecode.SystemCollect:
			vmachine.heap.Collect()

		case bytecode.EndSection:
			panic(faultf(spec.Name, pc, "reached END_SECTION by fallthrough"))

		default:
			panic(faultf(spec.Name, pc, "unknown opcode 0x%02x", byte(op)))
		}

		pc++
	}
}

func (vmachine *VirtualMachine) doArithmetic(ctx *ExecutionContext, function string, pc int, op bytecode.OpCode) {
	r := requireInt(ctx.stack.Pop(), function, pc)
	l := requireInt(ctx.stack.Pop(), function, pc)
	switch op {
	case bytecode.Add:
		ctx.stack.Push(value.NewInt(l + r))
	case bytecode.Sub:
		ctx.stack.Push(value.NewInt(l - r))
	case bytecode.Mul:
		ctx.stack.Push(value.NewInt(l * r))
	case bytecode.Div:
		if r == 0 {
			panic(faultf(function, pc, "division by zero"))
		}
		ctx.stack.Push(value.NewInt(l / r))
	}
}

func requireInt(v value.Value, function string, pc int) int64 {
	if !v.IsInt() {
		panic(faultf(function, pc, "expected an integer-typed value"))
	}
	return v.Int()
}

func comparisonHolds(op bytecode.OpCode, l, r int64) bool {
	switch op {
	case bytecode.JmpEqEq:
		return l == r
	case bytecode.JmpEqNeq:
		return l != r
	case bytecode.JmpEqGt:
		return l > r
	case bytecode.JmpEqGe:
		return l >= r
	case bytecode.JmpEqLt:
		return l < r
	case bytecode.JmpEqLe:
		return l <= r
	default:
		return false
	}
}

// internedString returns the i'th string constant boxed as a Value:
// an empty heap object, allocated once per string index and cached,
// whose handle maps to the Go string in stringValues. The object has
// no slots, so PUSH_FROM_OBJECT on it faults; StringOf recovers the
// text (print_string uses it).
func (vmachine *VirtualMachine) internedString(index int) value.Value {
	if cached, ok := vmachine.stringCache[index]; ok {
		return cached
	}
	ref := vmachine.heap.Alloc()
	vmachine.stringValues[ref.ObjectHandle()] = vmachine.module.Strings[index]
	vmachine.stringCache[index] = ref
	return ref
}

// StringOf recovers the Go string a boxed-string Value was constructed
// from. Returns ("", false) for any value that is not a boxed string,
// including ordinary objects.
func (vmachine *VirtualMachine) StringOf(v value.Value) (string, bool) {
	if !v.IsObject() {
		return "", false
	}
	s, ok := vmachine.stringValues[v.ObjectHandle()]
	return s, ok
}
