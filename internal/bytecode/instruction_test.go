package bytecode

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ops := []OpCode{
		EndSection, FunctionCall, FunctionReturn, PrimitiveCall, Duplicate,
		Drop, PushFromVar, PopIntoVar, Add, Sub, Mul, Div, IntPushConstant,
		Not, Jmp, JmpEqEq, JmpEqNeq, JmpEqGt, JmpEqGe, JmpEqLt, JmpEqLe,
		StrPushConstant, NewObject, PushFromObject, PopIntoObject,
		CallIndirect, SystemCollect,
	}

	immediates := []int32{0, 1, -1, 42, -42, 1<<23 - 1, -(1 << 23), 100, -100}

	for _, op := range ops {
		for _, imm := range immediates {
			inst := Encode(op, imm)
			gotOp, gotImm := Decode(inst)
			if gotOp != op {
				t.Fatalf("opcode round-trip: got %v want %v", gotOp, op)
			}
			if gotImm != imm {
				t.Fatalf("immediate round-trip for %v: got %d want %d", op, gotImm, imm)
			}
		}
	}
}

func TestSignExtension(t *testing.T) {
	cases := []struct {
		imm  int32
		want int32
	}{
		{0, 0},
		{1, 1},
		{-1, -1},
		{1<<23 - 1, 1<<23 - 1},
		{-(1 << 23), -(1 << 23)},
	}
	for _, c := range cases {
		inst := Encode(IntPushConstant, c.imm)
		if got := inst.Immediate(); got != c.want {
			t.Errorf("Immediate() for %d = %d, want %d", c.imm, got, c.want)
		}
	}
}

func TestEndSectionSentinel(t *testing.T) {
	if End.OpCode() != EndSection {
		t.Fatalf("End sentinel has opcode %v, want EndSection", End.OpCode())
	}
	if End.Immediate() != 0 {
		t.Fatalf("End sentinel has nonzero immediate %d", End.Immediate())
	}
}

func TestOpCodeStringKnownAndUnknown(t *testing.T) {
	if Add.String() != "add" {
		t.Errorf("Add.String() = %q, want %q", Add.String(), "add")
	}
	unknown := OpCode(0x7f)
	if unknown.IsDefined() {
		t.Errorf("opcode 0x7f should not be defined")
	}
	if unknown.String() != "unknown_bytecode" {
		t.Errorf("unknown opcode String() = %q", unknown.String())
	}
}

func TestInstructionStringFormatting(t *testing.T) {
	if got := Encode(FunctionCall, 3).String(); got != "(function_call 3)" {
		t.Errorf("got %q", got)
	}
	if got := Encode(Drop, 0).String(); got != "(drop)" {
		t.Errorf("got %q", got)
	}
}
