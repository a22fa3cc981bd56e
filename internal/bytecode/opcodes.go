// Package bytecode defines the instruction encoding consumed by the
// interpreter: a packed 32-bit (opcode:8 | immediate:24) word, and the
// fixed numeric opcode table that forms the binary ABI (see the module
// format in package module).
package bytecode

// OpCode is the 8-bit operation selector of an Instruction. The numeric
// values are part of the binary ABI and must never be renumbered.
type OpCode byte

const (
	EndSection      OpCode = 0x00
	FunctionCall    OpCode = 0x01
	FunctionReturn  OpCode = 0x02
	PrimitiveCall   OpCode = 0x03
	Duplicate       OpCode = 0x04
	Drop            OpCode = 0x05
	PushFromVar     OpCode = 0x06
	PopIntoVar      OpCode = 0x07
	Add             OpCode = 0x08
	Sub             OpCode = 0x09
	Mul             OpCode = 0x0a
	Div             OpCode = 0x0b
	IntPushConstant OpCode = 0x0c
	Not             OpCode = 0x0d
	Jmp             OpCode = 0x0e
	JmpEqEq         OpCode = 0x0f
	JmpEqNeq        OpCode = 0x10
	JmpEqGt         OpCode = 0x11
	JmpEqGe         OpCode = 0x12
	JmpEqLt         OpCode = 0x13
	JmpEqLe         OpCode = 0x14
	StrPushConstant OpCode = 0x15
	NewObject       OpCode = 0x20
	PushFromObject  OpCode = 0x21
	PopIntoObject   OpCode = 0x22
	CallIndirect    OpCode = 0x23
	SystemCollect   OpCode = 0x24
)

// opNames mirrors toString(ByteCode) from the reference implementation.
var opNames = map[OpCode]string{
	EndSection:      "end_section",
	FunctionCall:    "function_call",
	FunctionReturn:  "function_return",
	PrimitiveCall:   "primitive_call",
	Duplicate:       "duplicate",
	Drop:            "drop",
	PushFromVar:     "push_from_var",
	PopIntoVar:      "pop_into_var",
	Add:             "add",
	Sub:             "sub",
	Mul:             "mul",
	Div:             "div",
	IntPushConstant: "int_push_constant",
	Not:             "not",
	Jmp:             "jmp",
	JmpEqEq:         "jmp_eq",
	JmpEqNeq:        "jmp_neq",
	JmpEqGt:         "jmp_gt",
	JmpEqGe:         "jmp_ge",
	JmpEqLt:         "jmp_lt",
	JmpEqLe:         "jmp_le",
	StrPushConstant: "str_push_constant",
	NewObject:       "new_object",
	PushFromObject:  "push_from_object",
	PopIntoObject:   "pop_into_object",
	CallIndirect:    "call_indirect",
	SystemCollect:   "system_collect",
}

// String implements fmt.Stringer. Unknown opcodes are reported rather
// than panicking, since this is also used while tracing faulty modules.
func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown_bytecode"
}

// IsDefined reports whether op appears in the binary ABI's opcode table.
func (op OpCode) IsDefined() bool {
	_, ok := opNames[op]
	return ok
}

// zeroParamOps is used only by Instruction.String for a disassembly-free
// textual form; it does not constitute a disassembler.
var zeroParamOps = map[OpCode]bool{
	EndSection:     true,
	Duplicate:      true,
	FunctionReturn: true,
	Drop:           true,
	Add:            true,
	Sub:            true,
	Mul:            true,
	Div:            true,
	Not:            true,
	NewObject:      true,
	CallIndirect:   true,
	SystemCollect:  true,
}
