package mmu

import (
	"testing"

	"github.com/xenoncore/xenoncore/internal/ppuregs"
	"github.com/xenoncore/xenoncore/internal/ram"
	"github.com/xenoncore/xenoncore/internal/reservation"
)

func TestTranslateRealModeIsIdentity(t *testing.T) {
	r := ram.New(0, 1<<16)
	state := ppuregs.NewPPUState(0)
	m := New(0, state, r, reservation.New(1), &Generation{})
	regs := ppuregs.NewThreadRegisters(0, 0)
	regs.MSR = 0 // real mode: MSR.IR/DR clear

	real, fault := m.Translate(regs, 0x4000, AccessDataRead)
	if fault != nil {
		t.Fatalf("unexpected fault in real mode: %+v", fault)
	}
	if real != 0x4000 {
		t.Fatalf("real = %#x, want identity 0x4000", real)
	}
}

func TestTranslateWithoutSLBEntryFaultsSLBMiss(t *testing.T) {
	r := ram.New(0, 1<<16)
	state := ppuregs.NewPPUState(0)
	m := New(0, state, r, reservation.New(1), &Generation{})
	regs := ppuregs.NewThreadRegisters(0, 0)
	regs.MSR |= ppuregs.MSR_MASK_DR // translation on, no matching SLB entry beyond ESID 0

	ea := uint64(1) << 40 // ESID far outside the default segment 0
	_, fault := m.Translate(regs, ea, AccessDataRead)
	if fault == nil {
		t.Fatalf("expected SLB miss fault, got none")
	}
	if fault.Kind != ppuregs.ExcSLBMiss {
		t.Fatalf("fault.Kind = %v, want ExcSLBMiss", fault.Kind)
	}
}

func TestTranslateThroughPageTableInstallsTLBEntry(t *testing.T) {
	r := ram.New(0, 1<<20)
	state := ppuregs.NewPPUState(0)
	m := New(0, state, r, reservation.New(1), &Generation{})
	regs := ppuregs.NewThreadRegisters(0, 0)
	regs.MSR |= ppuregs.MSR_MASK_DR

	// Default SLB entry 0 maps ESID 0 -> VSID 0 (spec.md section 3 reset state).
	ea := uint64(0x2000)
	pageIndex := pageIndexOf(ea)
	vsid := uint64(0)

	sdr1 := uint64(0x10000)
	regs.SPR.SDR1 = sdr1
	m.state.SPR.SDR1 = sdr1

	htabBase := sdr1 &^ 0x1FF
	primary := hashPrimary(vsid, pageIndex)
	groupAddr := htabBase + (primary&(sdr1&0x1FF))*pteGroupSize*pteBytes

	avpn := vsid<<16 | pageIndex>>12
	word0 := avpn<<13 | 1 // valid bit set, not a large page
	rpn := uint64(0x9000)
	word1 := rpn // pp=0 (read/write), no wimg, executable

	if err := r.WriteUint64(groupAddr, word0); err != nil {
		t.Fatalf("seed PTE word0: %v", err)
	}
	if err := r.WriteUint64(groupAddr+8, word1); err != nil {
		t.Fatalf("seed PTE word1: %v", err)
	}

	real, fault := m.Translate(regs, ea, AccessDataRead)
	if fault != nil {
		t.Fatalf("unexpected fault walking seeded page table: %+v", fault)
	}
	want := rpn | (ea & 0xFFF)
	if real != want {
		t.Fatalf("real = %#x, want %#x", real, want)
	}

	vpn := vpnOf(vsid, ea, false)
	if _, hit := m.tlb.lookup(vpn); !hit {
		t.Fatalf("expected page-table walk to install a TLB entry")
	}
}

func TestGenerationBumpsOnInvalidation(t *testing.T) {
	gen := &Generation{}
	if gen.Load() != 0 {
		t.Fatalf("fresh generation should start at 0")
	}
	gen.Bump()
	if gen.Load() != 1 {
		t.Fatalf("generation after one bump = %d, want 1", gen.Load())
	}
}
