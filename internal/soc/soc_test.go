package soc

import (
	"context"
	"testing"
	"time"

	"github.com/xenoncore/xenoncore/internal/iic"
	"github.com/xenoncore/xenoncore/internal/xlog"
)

func testConfig() Config {
	return Config{
		RAMSize:         1 << 20,
		ResetPC:         0x100,
		ConsoleRevision: 2,
		CPUKeyDigest:    0xDEADBEEFCAFEBABE,
		FuseLocked:      true,
		Log:             xlog.Discard(),
	}
}

func TestNewWiresSixThreadsAcrossThreeCores(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(s.Threads) != ThreadCount {
		t.Fatalf("len(Threads) = %d, want %d", len(s.Threads), ThreadCount)
	}
	for i, th := range s.Threads {
		if th.Regs.ThreadID != i {
			t.Fatalf("thread %d has ThreadID %d", i, th.Regs.ThreadID)
		}
		if th.Regs.CIA != 0x100 {
			t.Fatalf("thread %d CIA = %#x, want 0x100", i, th.Regs.CIA)
		}
	}
	// Threads 0/1 share core 0's SLB; threads 2/3 share core 1's.
	if s.Threads[0].MMU == s.Threads[1].MMU {
		t.Fatalf("sibling threads must have distinct per-thread MMUs")
	}
}

func TestEFuseReflectsConfig(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.EFuse.ConsoleRevision() != 2 {
		t.Fatalf("ConsoleRevision() = %d, want 2", s.EFuse.ConsoleRevision())
	}
	if s.EFuse.CPUKeyDigest() != 0xDEADBEEFCAFEBABE {
		t.Fatalf("CPUKeyDigest() = %#x, want 0xDEADBEEFCAFEBABE", s.EFuse.CPUKeyDigest())
	}
	if !s.EFuse.Locked() {
		t.Fatalf("expected fuse bank to be locked")
	}
}

// TestXGPUKickRoutesGraphicsInterrupt exercises the PCI bridge's interrupt
// routing wired up in New: writing the XGPU's ring-write-pointer register
// should raise PriorityGraphics on hardware thread 0.
func TestXGPUKickRoutesGraphicsInterrupt(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.MMIO.Write(xgpuBase+0x10, []byte{0, 0, 0, 0, 0, 0, 0, 1}); err != nil {
		t.Fatalf("kick write: %v", err)
	}
	if !s.IIC.Pending(0) {
		t.Fatalf("expected a pending interrupt on thread 0 after the GPU kick")
	}
	p, ok := s.IIC.Ack(0)
	if !ok || p != iic.PriorityGraphics {
		t.Fatalf("Ack() = (%v, %v), want (PriorityGraphics, true)", p, ok)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err == nil {
		t.Fatalf("expected Run to return the context's cancellation error")
	}
}
