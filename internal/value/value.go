// Package value implements the tagged-value and object-shape data
// model: a 64-bit Value carrying a 3-bit tag over {integer, object
// reference, boxed double, singleton}, and the Map/Object pair used
// for heap-allocated, inline-cacheable objects.
package value

import "fmt"

// Value is a 64-bit tagged word. It is deliberately a bare integer type
// (not a struct) so that the register calling convention in the
// invocation bridge can pass it as a raw machine word and reinterpret
// the result of a native call without any marshaling.
type Value uint64

// Tag occupies the top 3 bits of the word.
type Tag uint8

const (
	TagInt       Tag = 0
	TagObject    Tag = 1
	TagDouble    Tag = 2
	TagSingleton Tag = 3
)

const (
	tagShift   = 61
	tagMask    = 0x7
	int48Bits  = 48
	int48Max   = int64(1)<<(int48Bits-1) - 1
	int48Min   = -(int64(1) << (int48Bits - 1))
	int48Mask  = int64(1)<<int48Bits - 1
	int48Sign  = int64(1) << (int48Bits - 1)
	handleMask = uint64(1)<<61 - 1
)

// Singleton payloads, distinguishing the three singleton Values.
const (
	singletonUndefined uint64 = 0
	singletonFalse      uint64 = 1
	singletonTrue       uint64 = 2
)

var (
	Undefined = pack(TagSingleton, singletonUndefined)
	False     = pack(TagSingleton, singletonFalse)
	True      = pack(TagSingleton, singletonTrue)
)

func pack(tag Tag, payload uint64) Value {
	return Value(uint64(tag)<<tagShift | (payload & handleMask))
}

// Tag returns the value's discriminating tag.
func (v Value) Tag() Tag {
	return Tag(uint64(v) >> tagShift)
}

// wrap48 truncates x into the signed 48-bit range, implementing the
// "integer arithmetic wraps on overflow" rule.
func wrap48(x int64) int64 {
	x &= int48Mask
	if x&int48Sign != 0 {
		x -= int48Mask + 1
	}
	return x
}

// NewInt constructs an integer Value, wrapping n into the signed
// 48-bit range the way the interpreter's arithmetic opcodes do.
func NewInt(n int64) Value {
	return pack(TagInt, uint64(wrap48(n))&handleMask)
}

// IsInt reports whether v holds an integer.
func (v Value) IsInt() bool { return v.Tag() == TagInt }

// Int returns the sign-extended 48-bit integer payload. Callers must
// check IsInt first; calling this on a non-integer Value is a
// programming error caught by RuntimeFault at the interpreter layer.
func (v Value) Int() int64 {
	payload := int64(uint64(v) & handleMask)
	if payload&int48Sign != 0 {
		payload -= int64(handleMask) + 1
		payload = wrap48(payload)
	}
	return wrap48(payload)
}

// Bool reports the truthiness of an integer Value: zero is false,
// every other integer is true. This mirrors the NOT opcode's rule.
func (v Value) Bool() bool {
	return v.IsInt() && v.Int() != 0
}

// NewObjectRef wraps a heap handle (minted by package gcheap) as an
// object-reference Value.
func NewObjectRef(handle uint32) Value {
	return pack(TagObject, uint64(handle))
}

// IsObject reports whether v holds an object reference.
func (v Value) IsObject() bool { return v.Tag() == TagObject }

// ObjectHandle returns the heap handle carried by an object-reference
// Value. Callers must check IsObject first.
func (v Value) ObjectHandle() uint32 {
	return uint32(uint64(v) & handleMask)
}

// NewDoubleRef wraps a heap handle to a boxed float64 as a Value.
// Doubles are boxed (heap-indirect) rather than inlined so that two
// independently-computed equal values can still be compared by handle
// identity where that's what's wanted, and so the interpreter's
// comparison opcodes — which operate on integer-typed values only —
// never see a double's bit pattern directly.
func NewDoubleRef(handle uint32) Value {
	return pack(TagDouble, uint64(handle))
}

// IsDouble reports whether v holds a boxed double reference.
func (v Value) IsDouble() bool { return v.Tag() == TagDouble }

// DoubleHandle returns the heap handle carried by a boxed-double Value.
func (v Value) DoubleHandle() uint32 {
	return uint32(uint64(v) & handleMask)
}

// IsSingleton reports whether v is Undefined, False, or True.
func (v Value) IsSingleton() bool { return v.Tag() == TagSingleton }

// Raw returns the bit pattern of v, used by the register calling
// convention to pass/receive Values as plain machine words across the
// native ABI boundary.
func (v Value) Raw() uint64 { return uint64(v) }

// FromRaw reinterprets a raw machine word as a Value. Used by the
// invocation bridge when a native entry point returns its result as a
// plain uint64.
func FromRaw(raw uint64) Value { return Value(raw) }

func (v Value) String() string {
	switch v.Tag() {
	case TagInt:
		return fmt.Sprintf("int(%d)", v.Int())
	case TagObject:
		return fmt.Sprintf("object(#%d)", v.ObjectHandle())
	case TagDouble:
		return fmt.Sprintf("double(#%d)", v.DoubleHandle())
	case TagSingleton:
		switch v {
		case Undefined:
			return "undefined"
		case False:
			return "false"
		case True:
			return "true"
		}
	}
	return "invalid"
}
