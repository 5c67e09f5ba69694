package jit

import (
	"fmt"

	"github.com/xenoncore/xenoncore/internal/bus"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
)

const maxBlockInstructions = 32

// Local, minimal instruction-field decoding: duplicated from
// internal/interp rather than exported from it, since the two packages
// decode entirely different instruction subsets (the interpreter decodes
// everything; the compiler only recognizes the handful of opcodes it can
// emit native code for).
func opcode(instr uint32) uint32  { return instr >> 26 }
func fieldRD(instr uint32) uint32 { return (instr >> 21) & 0x1F }
func fieldRA(instr uint32) uint32 { return (instr >> 16) & 0x1F }
func fieldRB(instr uint32) uint32 { return (instr >> 11) & 0x1F }
func simm16(instr uint32) int64   { return int64(int16(instr & 0xFFFF)) }
func xoSecondary(instr uint32) uint32 { return (instr >> 1) & 0x3FF }
func rcBit(instr uint32) bool     { return instr&1 != 0 }

var contextGPROffset = func(r uint32) uint32 { return r * 8 }

const contextCROffset = 32 * 8
const contextXEROffset = contextCROffset + 8

// Compile scans guest instructions starting at startPC through the current
// translation, ending the block at the first branch, store, or
// unrecognized opcode (spec.md section 4.5: "a sequence of guest
// instructions ending at the first branch, trap, or translation-mode-
// changing instruction, or at the block size limit"). It returns an error
// if the instruction at startPC is not compilable (or the block does not
// fit in pg), in which case the caller should keep interpreting that PC.
func Compile(startPC uint64, b *bus.Bus, m *mmu.MMU, t *ppuregs.PPUThreadRegisters, pg *page) (*Block, error) {
	e := &emitter{}
	pc := startPC
	count := 0

	for count < maxBlockInstructions {
		instr, fault := b.FetchInstruction(m, t, pc)
		if fault != nil {
			break
		}
		if !emitOne(e, instr) {
			break
		}
		count++
		pc += 4
	}

	if count == 0 {
		return nil, fmt.Errorf("jit: no compilable instruction at pc=0x%x", startPC)
	}

	storeExitPC(e, pc)
	e.ret()

	if e.size() > pg.remaining() {
		return nil, fmt.Errorf("jit: block too large for page (%d bytes)", e.size())
	}
	offset := pg.used
	copy(pg.base[offset:], e.code)
	pg.used += e.size()

	return newBlock(startPC, pc, count, 0, pg, offset), nil
}

// storeExitPC writes the block's resume CIA/NIA back into the context.
// ppu.Thread's JIT-hit path never re-applies "CIA = NIA" the way the
// interpreter path does, so this must leave the context exactly where the
// next fetch should happen: ExitCIA is the first not-yet-executed
// instruction after the block, and ExitNIA speculatively follows it by one
// word, matching the "NIA is CIA+4 before execution" invariant every
// interpreter handler also establishes (spec.md section 3, section 4.5's
// exit contract).
func storeExitPC(e *emitter, nextPC uint64) {
	e.movRegImm64(0, nextPC) // rax = resume CIA
	e.storeCtxField(contextExitCIAOffset)
	e.movRegImm64(0, nextPC+4) // rax = speculative NIA
	e.storeCtxField(contextExitNIAOffset)
}

const (
	contextExitCIAOffset = contextXEROffset + 8
	contextExitNIAOffset = contextExitCIAOffset + 8
)

// emitOne appends native code for a single compilable instruction and
// reports whether it recognized the opcode. Coverage is intentionally
// narrow (see the package doc comment): addi/addis, ori, and register add/
// and/or/xor, the common "materialize a constant, combine two registers"
// sequences a hot loop body is built from.
func emitOne(e *emitter, instr uint32) bool {
	op := opcode(instr)
	switch op {
	case 14, 15: // addi, addis
		rd, ra := fieldRD(instr), fieldRA(instr)
		imm := simm16(instr)
		if op == 15 {
			imm <<= 16
		}
		if ra == 0 {
			e.movRegImm64(0, uint64(imm))
		} else {
			e.loadCtxField(contextGPROffset(ra))
			e.addRaxImm64(uint64(imm))
		}
		e.storeCtxField(contextGPROffset(rd))
		return true
	case 24: // ori
		rs, ra := fieldRD(instr), fieldRA(instr)
		imm := uint64(instr & 0xFFFF)
		e.loadCtxField(contextGPROffset(rs))
		e.movRegImm64(3, imm)
		e.b(0x48, 0x09, 0xD8) // or rax, rbx
		e.storeCtxField(contextGPROffset(ra))
		return true
	case 31:
		return emitExtended(e, instr)
	}
	return false
}

// emitExtended covers the register add/and/or/xor forms. Rc=1 ("add.",
// "and.", "or.", "xor.") is rejected rather than compiled: matching
// setCR's MSR.SF-dependent, XER.SO-folding CR0 update bit-for-bit
// (interp/cr.go's recordCR0, spec.md section 4.5) in emitted x86 would
// widen this package well past its documented narrow coverage, so a
// record-form encoding here falls back to the interpreter instead.
func emitExtended(e *emitter, instr uint32) bool {
	if rcBit(instr) {
		return false
	}
	sec := xoSecondary(instr)
	rd, ra, rb := fieldRD(instr), fieldRA(instr), fieldRB(instr)
	var op byte
	switch sec {
	case 266: // add
		op = 0x01 // add
	case 28: // and
		op = 0x21
	case 444: // or
		op = 0x09
	case 316: // xor
		op = 0x31
	default:
		return false
	}
	// XO-form add is RD = RA + RB; X-form logical ops are RA = RS op RB,
	// with RS in the same field as RD.
	dst, src := rd, ra
	if sec != 266 {
		dst, src = ra, rd
	}
	e.loadCtxField(contextGPROffset(src))
	e.b(0x48, 0x89, 0xC3) // mov rbx, rax
	e.loadCtxField(contextGPROffset(rb))
	e.b(0x48, op, 0xD8) // op rax, rbx (ModRM 0xD8 = reg=rbx, rm=rax for the /r encodings used here)
	e.storeCtxField(contextGPROffset(dst))
	return true
}
