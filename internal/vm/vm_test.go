package vm

import (
	"bytes"
	"strings"
	"testing"

	"b9vm/internal/bytecode"
	"b9vm/internal/config"
	"b9vm/internal/module"
	"b9vm/internal/value"
)

func newTestVM(t *testing.T, functions []module.FunctionSpec, strings []string, primitives map[string]module.Primitive) *VirtualMachine {
	t.Helper()
	names := make([]string, 0, len(primitives))
	for name := range primitives {
		names = append(names, name)
	}
	mod := module.New(functions, strings, names, primitiveSlice(names, primitives))
	if err := mod.Validate(); err != nil {
		t.Fatalf("invalid test module: %v", err)
	}
	vmachine := New(config.Default(), nil)
	if err := vmachine.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	vmachine.Load(mod)
	return vmachine
}

func primitiveSlice(names []string, table map[string]module.Primitive) []module.Primitive {
	out := make([]module.Primitive, len(names))
	for i, n := range names {
		out[i] = table[n]
	}
	return out
}

func code(instrs ...bytecode.Instruction) []bytecode.Instruction {
	return append(instrs, bytecode.End)
}

// S1 — arithmetic: push 2; push 3; ADD; return => 5.
func TestScenarioArithmetic(t *testing.T) {
	f := module.FunctionSpec{
		Name: "f",
		Code: code(
			bytecode.Encode(bytecode.IntPushConstant, 2),
			bytecode.Encode(bytecode.IntPushConstant, 3),
			bytecode.Encode(bytecode.Add, 0),
			bytecode.Encode(bytecode.FunctionReturn, 0),
		),
	}
	vmachine := newTestVM(t, []module.FunctionSpec{f}, nil, nil)
	result, err := vmachine.Run("f", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Int() != 5 {
		t.Fatalf("got %v, want 5", result)
	}
}

// S2 — loop: sumto(n) with locals i=0,s=0, JMP_EQ_LE-controlled loop,
// sumto(10) == 55 (sum of 0..10). Built with explicit instruction
// indices since the jump immediates are relative to each branch site.
func TestScenarioLoop(t *testing.T) {
	// Layout (indices):
	// 0: INT_PUSH_CONSTANT 0
	// 1: POP_INTO_VAR 1        ; i = 0
	// 2: INT_PUSH_CONSTANT 0
	// 3: POP_INTO_VAR 2        ; s = 0
	// 4: PUSH_FROM_VAR 1       ; i
	// 5: PUSH_FROM_VAR 0       ; n
	// 6: JMP_EQ_LE d            ; if i <= n, jump into body (index 8)
	// 7: JMP dExit             ; else exit loop
	// 8: (unused slot placeholder removed — see below)
	// body starts at 8:
	// 8: PUSH_FROM_VAR 2       ; s
	// 9: PUSH_FROM_VAR 1       ; i
	// 10: ADD
	// 11: POP_INTO_VAR 2       ; s = s + i
	// 12: PUSH_FROM_VAR 1      ; i
	// 13: INT_PUSH_CONSTANT 1
	// 14: ADD
	// 15: POP_INTO_VAR 1       ; i = i + 1
	// 16: JMP back-to-4
	// 17: PUSH_FROM_VAR 2      ; s   (exit target)
	// 18: FUNCTION_RETURN
	// 19: END_SECTION
	//
	// Jump immediates are relative: pc_after = pc + imm + 1.
	c := make([]bytecode.Instruction, 20)
	c[0] = bytecode.Encode(bytecode.IntPushConstant, 0)
	c[1] = bytecode.Encode(bytecode.PopIntoVar, 1)
	c[2] = bytecode.Encode(bytecode.IntPushConstant, 0)
	c[3] = bytecode.Encode(bytecode.PopIntoVar, 2)
	c[4] = bytecode.Encode(bytecode.PushFromVar, 1)
	c[5] = bytecode.Encode(bytecode.PushFromVar, 0)
	// from pc=6, want to land on pc=8 when taken: 6 + imm + 1 = 8 => imm = 1.
	// Loop condition is i<=n (not i<n) so that sumto(10) sums 0..10 == 55.
	c[6] = bytecode.Encode(bytecode.JmpEqLe, 1)
	// from pc=7, want to land on pc=17 (unconditional): 7 + imm + 1 = 17 => imm = 9
	c[7] = bytecode.Encode(bytecode.Jmp, 9)
	c[8] = bytecode.Encode(bytecode.PushFromVar, 2)
	c[9] = bytecode.Encode(bytecode.PushFromVar, 1)
	c[10] = bytecode.Encode(bytecode.Add, 0)
	c[11] = bytecode.Encode(bytecode.PopIntoVar, 2)
	c[12] = bytecode.Encode(bytecode.PushFromVar, 1)
	c[13] = bytecode.Encode(bytecode.IntPushConstant, 1)
	c[14] = bytecode.Encode(bytecode.Add, 0)
	c[15] = bytecode.Encode(bytecode.PopIntoVar, 1)
	// from pc=16, want to land back on pc=4: 16 + imm + 1 = 4 => imm = -13
	c[16] = bytecode.Encode(bytecode.Jmp, -13)
	c[17] = bytecode.Encode(bytecode.PushFromVar, 2)
	c[18] = bytecode.Encode(bytecode.FunctionReturn, 0)
	c[19] = bytecode.End

	f := module.FunctionSpec{Name: "sumto", NArgs: 1, NRegs: 2, Code: c}
	vmachine := newTestVM(t, []module.FunctionSpec{f}, nil, nil)
	result, err := vmachine.Run("sumto", []value.Value{value.NewInt(10)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Int() != 55 {
		t.Fatalf("sumto(10) = %d, want 55", result.Int())
	}
}

// S3 — call: g(x) = x+1, f() = g(41) returns 42, interpretation only.
func TestScenarioCall(t *testing.T) {
	g := module.FunctionSpec{
		Name:  "g",
		NArgs: 1,
		Code: code(
			bytecode.Encode(bytecode.PushFromVar, 0),
			bytecode.Encode(bytecode.IntPushConstant, 1),
			bytecode.Encode(bytecode.Add, 0),
			bytecode.Encode(bytecode.FunctionReturn, 0),
		),
	}
	f := module.FunctionSpec{
		Name: "f",
		Code: code(
			bytecode.Encode(bytecode.IntPushConstant, 41),
			bytecode.Encode(bytecode.FunctionCall, 0),
			bytecode.Encode(bytecode.FunctionReturn, 0),
		),
	}
	vmachine := newTestVM(t, []module.FunctionSpec{g, f}, nil, nil)
	result, err := vmachine.Run("f", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Int() != 42 {
		t.Fatalf("got %d, want 42", result.Int())
	}
}

// S4 — primitive: push "hello"; PRIMITIVE_CALL print_string; DROP;
// push 7; return writes "hello\n" and returns 7.
func TestScenarioPrimitive(t *testing.T) {
	var out bytes.Buffer
	primitives := map[string]module.Primitive{"print_string": PrintString(&out)}

	f := module.FunctionSpec{
		Name: "p",
		Code: code(
			bytecode.Encode(bytecode.StrPushConstant, 0),
			bytecode.Encode(bytecode.PrimitiveCall, 0),
			bytecode.Encode(bytecode.Drop, 0),
			bytecode.Encode(bytecode.IntPushConstant, 7),
			bytecode.Encode(bytecode.FunctionReturn, 0),
		),
	}
	vmachine := newTestVM(t, []module.FunctionSpec{f}, []string{"hello"}, primitives)
	result, err := vmachine.Run("p", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Int() != 7 {
		t.Fatalf("got %d, want 7", result.Int())
	}
	if strings.TrimRight(out.String(), "\n") != "hello" {
		t.Fatalf("got output %q, want %q", out.String(), "hello")
	}
}

// S5 — object shape identity: two functions each building an object
// and writing slots a,b,c in the same order produce objects whose
// maps compare equal by reference.
func TestScenarioObjectShapeIdentity(t *testing.T) {
	buildObject := func(a, b, c int32) []bytecode.Instruction {
		return code(
			bytecode.Encode(bytecode.NewObject, 0),
			bytecode.Encode(bytecode.Duplicate, 0),
			bytecode.Encode(bytecode.IntPushConstant, a),
			bytecode.Encode(bytecode.PopIntoObject, 10),
			bytecode.Encode(bytecode.Duplicate, 0),
			bytecode.Encode(bytecode.IntPushConstant, b),
			bytecode.Encode(bytecode.PopIntoObject, 11),
			bytecode.Encode(bytecode.Duplicate, 0),
			bytecode.Encode(bytecode.IntPushConstant, c),
			bytecode.Encode(bytecode.PopIntoObject, 12),
			bytecode.Encode(bytecode.FunctionReturn, 0),
		)
	}
	f1 := module.FunctionSpec{Name: "make1", Code: buildObject(1, 2, 3)}
	f2 := module.FunctionSpec{Name: "make2", Code: buildObject(10, 20, 30)}

	vmachine := newTestVM(t, []module.FunctionSpec{f1, f2}, nil, nil)
	r1, err := vmachine.Run("make1", nil)
	if err != nil {
		t.Fatalf("Run make1: %v", err)
	}
	r2, err := vmachine.Run("make2", nil)
	if err != nil {
		t.Fatalf("Run make2: %v", err)
	}
	o1 := vmachine.heap.Object(r1.ObjectHandle())
	o2 := vmachine.heap.Object(r2.ObjectHandle())
	if o1.Map != o2.Map {
		t.Fatal("two objects with identical slot-write sequences must share a map")
	}
}

// Property: for any function executed to completion, the operand
// stack pointer returns to its pre-invocation position plus one (the
// caller pushing the returned result). This drives the bridge
// directly rather than through Run, since Run's facade contract
// returns the result as a Go value instead of leaving it on the stack.
func TestStackPointerReturnsToPrePlusOne(t *testing.T) {
	f := module.FunctionSpec{
		Name:  "f",
		NArgs: 1,
		Code: code(
			bytecode.Encode(bytecode.PushFromVar, 0),
			bytecode.Encode(bytecode.IntPushConstant, 1),
			bytecode.Encode(bytecode.Add, 0),
			bytecode.Encode(bytecode.FunctionReturn, 0),
		),
	}
	vmachine := newTestVM(t, []module.FunctionSpec{f}, nil, nil)
	ctx := vmachine.ctx
	before := ctx.stack.Len()
	ctx.Push(value.NewInt(1))
	result := vmachine.dispatch(ctx, 0)
	ctx.Push(result)
	after := ctx.stack.Len()
	if after != before+1 {
		t.Fatalf("stack pointer after call = %d, want pre-invocation (%d) plus one", after, before)
	}
}

func TestDivisionByZeroFaults(t *testing.T) {
	f := module.FunctionSpec{
		Name: "f",
		Code: code(
			bytecode.Encode(bytecode.IntPushConstant, 1),
			bytecode.Encode(bytecode.IntPushConstant, 0),
			bytecode.Encode(bytecode.Div, 0),
			bytecode.Encode(bytecode.FunctionReturn, 0),
		),
	}
	vmachine := newTestVM(t, []module.FunctionSpec{f}, nil, nil)
	_, err := vmachine.Run("f", nil)
	if err == nil {
		t.Fatal("expected a RuntimeFault for division by zero")
	}
}

func TestBadFunctionCallOnArgCountMismatch(t *testing.T) {
	f := module.FunctionSpec{Name: "f", NArgs: 2, Code: code(bytecode.Encode(bytecode.FunctionReturn, 0))}
	vmachine := newTestVM(t, []module.FunctionSpec{f}, nil, nil)
	_, err := vmachine.Run("f", []value.Value{value.NewInt(1)})
	if err == nil {
		t.Fatal("expected BadFunctionCall for argument count mismatch")
	}
}

func TestVMUsableAfterRuntimeFault(t *testing.T) {
	faulting := module.FunctionSpec{
		Name: "boom",
		Code: code(
			bytecode.Encode(bytecode.IntPushConstant, 1),
			bytecode.Encode(bytecode.IntPushConstant, 0),
			bytecode.Encode(bytecode.Div, 0),
			bytecode.Encode(bytecode.FunctionReturn, 0),
		),
	}
	ok := module.FunctionSpec{
		Name: "ok",
		Code: code(
			bytecode.Encode(bytecode.IntPushConstant, 9),
			bytecode.Encode(bytecode.FunctionReturn, 0),
		),
	}
	vmachine := newTestVM(t, []module.FunctionSpec{faulting, ok}, nil, nil)
	if _, err := vmachine.Run("boom", nil); err == nil {
		t.Fatal("expected fault")
	}
	result, err := vmachine.Run("ok", nil)
	if err != nil {
		t.Fatalf("VM should remain usable after a fault, got: %v", err)
	}
	if result.Int() != 9 {
		t.Fatalf("got %d, want 9", result.Int())
	}
}
