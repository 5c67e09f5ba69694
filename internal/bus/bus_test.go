package bus

import (
	"testing"

	"github.com/xenoncore/xenoncore/internal/mmio"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
	"github.com/xenoncore/xenoncore/internal/ram"
	"github.com/xenoncore/xenoncore/internal/reservation"
	"github.com/xenoncore/xenoncore/internal/xlog"
)

// TestUnmappedAccessIsSwallowedAndCounted exercises spec.md section 7's
// recoverable-error policy: a physical access outside RAM and every
// registered MMIO region must not propagate an error to the caller, but
// must be logged and counted (spec.md section 8, SPEC_FULL.md section 4.8).
func TestUnmappedAccessIsSwallowedAndCounted(t *testing.T) {
	r := ram.New(0, 0x1000)
	disp := mmio.NewDispatcher()
	resv := reservation.New(1)
	b := New(r, disp, resv, xlog.Discard())
	state := ppuregs.NewPPUState(0)
	m := mmu.New(0, state, r, resv, &mmu.Generation{})
	regs := ppuregs.NewThreadRegisters(0, 0) // MSR=0: real mode, identity translation

	const unmapped = 0x7FFFFFFF
	v, fault := b.LoadSize(m, regs, unmapped, 4)
	if fault != nil {
		t.Fatalf("unmapped load must not fault, got %+v", fault)
	}
	if v != 0xFFFFFFFF {
		t.Fatalf("v = %#x, want 0xFFFFFFFF (0xFF per byte)", v)
	}

	if fault := b.StoreSize(m, regs, unmapped, 0x11223344, 4); fault != nil {
		t.Fatalf("unmapped store must not fault, got %+v", fault)
	}

	unmappedAccess, _ := b.Metrics.Snapshot()
	if unmappedAccess != 2 {
		t.Fatalf("UnmappedAccess = %d, want 2 (one load, one store)", unmappedAccess)
	}
}
