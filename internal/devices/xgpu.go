// Package devices implements the minimal MMIO-visible surface of the two
// peripherals spec.md section 1 treats as external collaborators:
// the GPU command processor (ring-buffer kick + status registers only, no
// rendering) and the NAND/SFCX flash window. Both are plain mmio.Device
// implementations so the dispatcher has real non-RAM consumers; the actual
// rendering/flash-parsing bodies are out of scope.
package devices

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// XGPU register offsets within its MMIO window, named after the CPU-facing
// subset of original_source/Core/XGPU/Xenos.h's ring-buffer interface
// (the rest of that header is shader/primitive enums with no CPU-visible
// register surface, so only the kick/status pair is modeled).
const (
	RegRingBase    = 0x00 // ring buffer base address
	RegRingSize    = 0x08 // ring buffer size in bytes
	RegRingWritePtr = 0x10 // CPU writes here to kick the command processor
	RegStatus      = 0x18 // bit0: busy
)

const xgpuWindowSize = 0x20

// XGPU is the CPU-facing command-processor stub: it latches kick writes and
// reports idle, never actually consuming the ring buffer (spec.md section 1
// excludes the rendering pipeline).
type XGPU struct {
	mu       sync.Mutex
	ringBase uint64
	ringSize uint64
	writePtr uint64
	busy     bool

	onKick func(ringBase, writePtr uint64)
}

// NewXGPU returns a command-processor stub. onKick, if non-nil, is called
// synchronously whenever the CPU writes RegRingWritePtr — a hook point for
// tests or a future real backend, never invoked for rendering here.
func NewXGPU(onKick func(ringBase, writePtr uint64)) *XGPU {
	return &XGPU{onKick: onKick}
}

func (g *XGPU) Name() string { return "xgpu-command-processor" }

func (g *XGPU) Read(addr uint64, out []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	off := addr % xgpuWindowSize
	var v uint64
	switch off {
	case RegRingBase:
		v = g.ringBase
	case RegRingSize:
		v = g.ringSize
	case RegRingWritePtr:
		v = g.writePtr
	case RegStatus:
		if g.busy {
			v = 1
		}
	default:
		return fmt.Errorf("xgpu: unmapped register offset 0x%x", off)
	}
	putUint(out, v)
	return nil
}

func (g *XGPU) Write(addr uint64, in []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	off := addr % xgpuWindowSize
	v := getUint(in)
	switch off {
	case RegRingBase:
		g.ringBase = v
	case RegRingSize:
		g.ringSize = v
	case RegRingWritePtr:
		g.writePtr = v
		g.busy = true
		cb := g.onKick
		base, wp := g.ringBase, g.writePtr
		g.mu.Unlock()
		if cb != nil {
			cb(base, wp)
		}
		g.mu.Lock()
		g.busy = false
	case RegStatus:
		// status is read-only; writes are ignored per the real hardware's
		// convention for status registers.
	default:
		return fmt.Errorf("xgpu: unmapped register offset 0x%x", off)
	}
	return nil
}

func (g *XGPU) MemSet(addr uint64, b byte, n int) error {
	return fmt.Errorf("xgpu: memset unsupported on register window")
}

func putUint(out []byte, v uint64) {
	switch len(out) {
	case 1:
		out[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(out, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(out, uint32(v))
	case 8:
		binary.BigEndian.PutUint64(out, v)
	}
}

func getUint(in []byte) uint64 {
	switch len(in) {
	case 1:
		return uint64(in[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(in))
	case 4:
		return uint64(binary.BigEndian.Uint32(in))
	case 8:
		return binary.BigEndian.Uint64(in)
	}
	return 0
}
