package jit

import (
	"unsafe"

	"github.com/xenoncore/xenoncore/internal/bus"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
)

// blockFunc is the calling convention bridging a Go call site to raw
// machine code: the code receives *Context in RDI (SysV AMD64) and returns
// nothing, mutating Context in place. Casting a code pointer through this
// function type is the standard trick for calling mmap'd native code
// without cgo.
type blockFunc func(ctx *Context)

// Block is one compiled basic block.
type Block struct {
	StartPC, EndPC   uint64
	InstructionCount int
	guardGeneration  uint64
	fn               blockFunc
	pg               *page
}

func newBlock(startPC, endPC uint64, n int, gen uint64, pg *page, codeOffset int) *Block {
	codePtr := unsafe.Pointer(&pg.base[codeOffset])
	fn := *(*blockFunc)(unsafe.Pointer(&codePtr))
	return &Block{StartPC: startPC, EndPC: endPC, InstructionCount: n, guardGeneration: gen, fn: fn, pg: pg}
}

// Run executes the compiled block against the given thread, returning the
// number of guest instructions it advanced (spec.md section 4.5's exit
// contract: CIA/NIA are stored back to the context before return).
func (b *Block) Run(t *ppuregs.PPUThreadRegisters, m *mmu.MMU, bus *bus.Bus) int {
	ctx := loadContext(t)
	b.fn(ctx)
	storeContext(t, ctx)
	return b.InstructionCount
}
