// Package jit implements the native-code generator b9vm treats as a
// black-box collaborator: given a function index, it returns an
// opaque callable honoring one of the two invocation-bridge ABIs.
//
// A byte-compiling JIT that emits real machine code needs an external
// toolchain this module does not have access to, so this generator's
// compiled entries are backed by the interpreter itself: Generate
// still returns a genuinely separate callable satisfying CompiledEntry,
// and invoking it through either ABI still produces the same result as
// pure interpretation, which is the only externally observable
// contract the bridge depends on.
//
// Call counting and tiered promotion notices mirror the reference
// corpus's tiered JIT (TierInterpreted/TierQuickJIT/TierOptimized):
// this generator does not change how a function executes once
// compiled, but it tracks how hot each function is and logs a notice
// the first time a function crosses each tier threshold, when
// Config.Verbose is set.
package jit

import (
	"log"
	"sync"

	"b9vm/internal/value"
	"b9vm/internal/vm"
)

// Tier thresholds, carried over from the reference corpus's tiered
// compiler: a function is "warm" after tier1Threshold calls and "hot"
// after tier2Threshold.
const (
	tier1Threshold = 100
	tier2Threshold = 1000
)

// Generator is a vm.CodeGenerator backed by the interpreter.
type Generator struct {
	vmachine *vm.VirtualMachine
	verbose  bool

	mu         sync.Mutex
	callCounts map[int]int
	tierOf     map[int]int
}

// New constructs a Generator bound to vmachine. verbose enables the
// tier-transition notices described in package doc.
func New(vmachine *vm.VirtualMachine, verbose bool) *Generator {
	return &Generator{
		vmachine:   vmachine,
		verbose:    verbose,
		callCounts: make(map[int]int),
		tierOf:     make(map[int]int),
	}
}

// Generate returns a CompiledEntry for function index honoring both
// ABIs; VirtualMachine.dispatch picks whichever one Config.PassParam
// selects.
func (g *Generator) Generate(index int) (vm.CompiledEntry, error) {
	return vm.CompiledEntry{
		Stack:    g.stackEntry(index),
		Register: g.registerEntry(index),
	}, nil
}

func (g *Generator) stackEntry(index int) func(ctx *vm.ExecutionContext, idx int) uint64 {
	return func(ctx *vm.ExecutionContext, idx int) uint64 {
		g.noteCall(idx)
		return g.vmachine.Interpret(ctx, idx).Raw()
	}
}

func (g *Generator) registerEntry(index int) func(args []uint64) uint64 {
	return func(args []uint64) uint64 {
		g.noteCall(index)
		ctx := g.vmachine.CurrentContext()
		for _, raw := range args {
			ctx.Push(value.FromRaw(raw))
		}
		return g.vmachine.Interpret(ctx, index).Raw()
	}
}

// noteCall increments index's call count and logs a one-time notice
// when it crosses a tier boundary.
func (g *Generator) noteCall(index int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callCounts[index]++
	n := g.callCounts[index]

	tier := g.tierOf[index]
	switch {
	case tier < 2 && n >= tier2Threshold:
		g.tierOf[index] = 2
		g.logTier(index, "optimized", n)
	case tier < 1 && n >= tier1Threshold:
		g.tierOf[index] = 1
		g.logTier(index, "quick-jit", n)
	}
}

func (g *Generator) logTier(index int, tier string, calls int) {
	if !g.verbose {
		return
	}
	name := "?"
	if m := g.vmachine.Module(); m != nil && index < len(m.Functions) {
		name = m.Functions[index].Name
	}
	log.Printf("jit: function %q promoted to %s tier after %d calls", name, tier, calls)
}

// CallCount returns how many times function index has been invoked
// through a compiled entry, for diagnostics and tests.
func (g *Generator) CallCount(index int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callCounts[index]
}
