package vm

import (
	"fmt"
	"io"
	"os"

	"b9vm/internal/module"
	"b9vm/internal/value"
)

// Primitives returns the required primitive table, each primitive
// writing to w. DefaultPrimitives binds it to stdout; tests pass a
// buffer to capture output.
func Primitives(w io.Writer) map[string]module.Primitive {
	return map[string]module.Primitive{
		"print_string": PrintString(w),
		"print_number": PrintNumber(w),
		"print_stack":  PrintStack(w),
	}
}

// PrintString pops a string value, writes it followed by a newline to
// w, and pushes 0.
func PrintString(w io.Writer) module.Primitive {
	return func(ctx module.ExecContext) {
		v := ctx.Pop()
		text := "?"
		if vmCtx, ok := ctx.(*ExecutionContext); ok {
			if s, ok := vmCtx.VM().StringOf(v); ok {
				text = s
			}
		}
		fmt.Fprintf(w, "%s\n", text)
		ctx.Push(value.NewInt(0))
	}
}

// PrintNumber pops an integer, writes it followed by a newline to w,
// and pushes 0.
func PrintNumber(w io.Writer) module.Primitive {
	return func(ctx module.ExecContext) {
		v := ctx.Pop()
		fmt.Fprintf(w, "%d\n", v.Int())
		ctx.Push(value.NewInt(0))
	}
}

// PrintStack dumps the operand stack to w as a diagnostic aid; it does
// not pop or push anything.
func PrintStack(w io.Writer) module.Primitive {
	return func(ctx module.ExecContext) {
		vmCtx, ok := ctx.(*ExecutionContext)
		if !ok {
			return
		}
		live := vmCtx.stack.Live()
		fmt.Fprintf(w, "stack (%d):\n", len(live))
		for i := len(live) - 1; i >= 0; i-- {
			fmt.Fprintf(w, "  [%d] %s\n", i, live[i])
		}
	}
}

// DefaultPrimitives is Primitives bound to os.Stdout, the binding used
// by cmd/b9vm.
func DefaultPrimitives() map[string]module.Primitive {
	return Primitives(os.Stdout)
}
