package jit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// page is one mmap'd region of RW+then-RX executable memory, mirroring
// JITPage's writable/executable split in the launix reference (there the
// two mappings alias the same physical pages via a memfd; here a single
// mapping is toggled between RW and RX with Mprotect, since the runtime
// never writes and executes the same page concurrently).
type page struct {
	base []byte
	used int
}

func newPage() (*page, error) {
	b, err := unix.Mmap(-1, 0, pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("jit: mmap: %w", err)
	}
	return &page{base: b}, nil
}

func (p *page) remaining() int { return len(p.base) - p.used }

// finalize flips the page from writable to executable (spec.md section
// 4.5's "raw mmap" note); once finalized a page is never written again.
func (p *page) finalize() error {
	return unix.Mprotect(p.base, unix.PROT_READ|unix.PROT_EXEC)
}

// emitter accumulates raw x86-64 bytes for one block before the page is
// finalized. Byte encodings below are minimal and hand-written; each covers
// exactly the addressing mode the compiler in compile.go emits.
type emitter struct {
	code []byte
}

func (e *emitter) b(v ...byte) { e.code = append(e.code, v...) }

func (e *emitter) u32(v uint32) {
	e.code = append(e.code, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (e *emitter) u64(v uint64) {
	for i := 0; i < 8; i++ {
		e.code = append(e.code, byte(v>>(8*i)))
	}
}

// movRegImm64 emits `mov rax, imm64` style loads for the general-purpose
// scratch register selected by regByte (a REX.B-adjusted opcode base).
func (e *emitter) movRegImm64(regByte byte, imm uint64) {
	e.b(0x48, 0xB8+regByte) // REX.W + MOV r64, imm64
	e.u64(imm)
}

// loadCtxField emits `mov rax, [rdi+offset]` — Context is passed in RDI per
// the SysV AMD64 calling convention the Go-callable trampoline uses.
func (e *emitter) loadCtxField(offset uint32) {
	e.b(0x48, 0x8B, 0x87) // mov rax, [rdi+disp32]
	e.u32(offset)
}

func (e *emitter) storeCtxField(offset uint32) {
	e.b(0x48, 0x89, 0x87) // mov [rdi+disp32], rax
	e.u32(offset)
}

func (e *emitter) addRaxImm64(imm uint64) {
	e.movRegImm64(3, imm) // mov rbx, imm64
	e.b(0x48, 0x01, 0xD8) // add rax, rbx
}

func (e *emitter) ret() { e.b(0xC3) }

func (e *emitter) size() int { return len(e.code) }
