package bytecode

import "fmt"

// Instruction is a packed 32-bit word:
//
//	|0000-0000 0000-0000 0000-0000 0000-0000
//	|---------| opcode (8 bits)
//	          |-----------------------------| immediate (24 bits, signed)
//
// This layout, and the sign-extension convention for the immediate, is
// the binary ABI and is pinned by instruction_test.go.
type Instruction uint32

const (
	opcodeShift     = 24
	immediateMask   = 0x00FFFFFF
	immediateSignBit = 0x00800000
	immediateExtend = ^uint32(immediateMask) // 0xFF000000
)

// End is the sentinel instruction terminating every function's
// bytecode array.
var End = Encode(EndSection, 0)

// Encode packs an opcode and a signed 24-bit immediate into an
// Instruction. Immediate is truncated to 24 bits; callers are expected
// to stay within [-2^23, 2^23).
func Encode(op OpCode, immediate int32) Instruction {
	return Instruction(uint32(op)<<opcodeShift | (uint32(immediate) & immediateMask))
}

// OpCode decodes the 8-bit opcode from the instruction.
func (i Instruction) OpCode() OpCode {
	return OpCode(uint32(i) >> opcodeShift)
}

// Immediate decodes the 24-bit immediate, sign-extending it to int32.
func (i Instruction) Immediate() int32 {
	v := uint32(i) & immediateMask
	if v&immediateSignBit != 0 {
		v |= immediateExtend
	}
	return int32(v)
}

// Decode is a convenience that returns both fields at once.
func Decode(i Instruction) (OpCode, int32) {
	return i.OpCode(), i.Immediate()
}

// String renders the instruction as "(mnemonic immediate)", matching
// operator<<(ostream&, Instruction) in the reference implementation.
// This is instruction introspection, not a disassembler: it carries no
// symbol resolution, source mapping, or formatting options.
func (i Instruction) String() string {
	op := i.OpCode()
	if zeroParamOps[op] {
		return fmt.Sprintf("(%s)", op)
	}
	return fmt.Sprintf("(%s %d)", op, i.Immediate())
}
