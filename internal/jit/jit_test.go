package jit

import (
	"testing"

	"github.com/xenoncore/xenoncore/internal/bus"
	"github.com/xenoncore/xenoncore/internal/mmio"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
	"github.com/xenoncore/xenoncore/internal/ram"
	"github.com/xenoncore/xenoncore/internal/reservation"
)

func dform(op, rd, ra uint32, imm uint16) uint32 {
	return op<<26 | rd<<21 | ra<<16 | uint32(imm)
}

func xform(op, rd, ra, rb, sec uint32) uint32 {
	return op<<26 | rd<<21 | ra<<16 | rb<<11 | sec<<1
}

// jitTestMachine builds a real-mode machine and writes a guest instruction
// stream starting at pc, matching interp_test.go's rig shape but shared
// between two independent execution paths (interpreter and JIT) for a
// cross-check (spec.md section 8's "interpreter/JIT equivalence" property).
func jitTestMachine(t *testing.T, pc uint64, instrs []uint32) (*bus.Bus, *mmu.MMU, *ppuregs.PPUThreadRegisters) {
	t.Helper()
	r := ram.New(0, 1<<16)
	disp := mmio.NewDispatcher()
	resv := reservation.New(1)
	b := bus.New(r, disp, resv, nil)
	state := ppuregs.NewPPUState(0)
	m := mmu.New(0, state, r, resv, &mmu.Generation{})
	regs := ppuregs.NewThreadRegisters(0, pc)

	addr := pc
	for _, w := range instrs {
		if err := r.WriteUint32(addr, w); err != nil {
			t.Fatalf("seed instruction at %#x: %v", addr, err)
		}
		addr += 4
	}
	return b, m, regs
}

func TestCompileCoversAddiAddOriSequence(t *testing.T) {
	const startPC = 0x400
	instrs := []uint32{
		dform(14, 3, 0, 5),        // addi r3, 0, 5
		dform(14, 4, 0, 7),        // addi r4, 0, 7
		xform(31, 5, 3, 4, 266),   // add  r5, r3, r4
		dform(24, 5, 6, 0x00FF),   // ori  r6, r5, 0xFF
	}
	b, m, regs := jitTestMachine(t, startPC, instrs)

	pg, err := newPage()
	if err != nil {
		t.Fatalf("newPage: %v", err)
	}
	blk, err := Compile(startPC, b, m, regs, pg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if blk.InstructionCount != len(instrs) {
		t.Fatalf("InstructionCount = %d, want %d", blk.InstructionCount, len(instrs))
	}
	if err := pg.finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	n := blk.Run(regs, m, b)
	if n != len(instrs) {
		t.Fatalf("Run returned %d, want %d", n, len(instrs))
	}
	if regs.GPR[3] != 5 {
		t.Fatalf("GPR[3] = %d, want 5", regs.GPR[3])
	}
	if regs.GPR[4] != 7 {
		t.Fatalf("GPR[4] = %d, want 7", regs.GPR[4])
	}
	if regs.GPR[5] != 12 {
		t.Fatalf("GPR[5] = %d, want 12", regs.GPR[5])
	}
	if regs.GPR[6] != 12|0xFF {
		t.Fatalf("GPR[6] = %#x, want %#x", regs.GPR[6], 12|0xFF)
	}
	if regs.CIA != startPC+uint64(len(instrs))*4 {
		t.Fatalf("CIA = %#x, want %#x", regs.CIA, startPC+uint64(len(instrs))*4)
	}
}

func TestCompileStopsAtFirstUnrecognizedOpcode(t *testing.T) {
	const startPC = 0x800
	instrs := []uint32{
		dform(14, 3, 0, 1), // addi r3, 0, 1 -- compilable
		dform(32, 4, 3, 0), // lwz r4, 0(r3) -- not in the JIT's coverage
		dform(14, 5, 0, 9), // never reached by the compiled block
	}
	b, m, regs := jitTestMachine(t, startPC, instrs)

	pg, err := newPage()
	if err != nil {
		t.Fatalf("newPage: %v", err)
	}
	blk, err := Compile(startPC, b, m, regs, pg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if blk.InstructionCount != 1 {
		t.Fatalf("InstructionCount = %d, want 1 (block must end before the load)", blk.InstructionCount)
	}
	if blk.EndPC != startPC+4 {
		t.Fatalf("EndPC = %#x, want %#x", blk.EndPC, startPC+4)
	}
}

func TestCompileStopsAtRecordFormInstruction(t *testing.T) {
	const startPC = 0x1000
	instrs := []uint32{
		dform(14, 3, 0, 1),           // addi r3, 0, 1 -- compilable
		xform(31, 4, 3, 3, 266) | 1,  // add. r4, r3, r3 -- Rc=1, not in the JIT's coverage
	}
	b, m, regs := jitTestMachine(t, startPC, instrs)

	pg, err := newPage()
	if err != nil {
		t.Fatalf("newPage: %v", err)
	}
	blk, err := Compile(startPC, b, m, regs, pg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if blk.InstructionCount != 1 {
		t.Fatalf("InstructionCount = %d, want 1 (block must end before the record-form add)", blk.InstructionCount)
	}
	if blk.EndPC != startPC+4 {
		t.Fatalf("EndPC = %#x, want %#x", blk.EndPC, startPC+4)
	}
}

func TestCacheEvictsStaleBlockOnGenerationMismatch(t *testing.T) {
	const startPC = 0xC00
	instrs := []uint32{dform(14, 3, 0, 1), dform(14, 4, 0, 2)}
	b, m, regs := jitTestMachine(t, startPC, instrs)

	c := NewCache()
	if _, err := c.Compile(startPC, b, m, regs, 1); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := c.Lookup(startPC, 1); !ok {
		t.Fatalf("expected a cache hit at the compiled generation")
	}
	if _, ok := c.Lookup(startPC, 2); ok {
		t.Fatalf("stale-generation lookup must miss and evict")
	}
	if _, ok := c.Lookup(startPC, 1); ok {
		t.Fatalf("block should have been evicted after the generation mismatch")
	}
}
