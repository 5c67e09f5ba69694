package interp

import (
	"testing"

	"github.com/xenoncore/xenoncore/internal/bus"
	"github.com/xenoncore/xenoncore/internal/mmio"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
	"github.com/xenoncore/xenoncore/internal/ram"
	"github.com/xenoncore/xenoncore/internal/reservation"
)

// interpTestRig mirrors cpu_ie64_test.go's ie64TestRig: a minimal machine
// wired up once per test, running in real mode (MSR=0) so every effective
// address is its own real address.
type interpTestRig struct {
	ram  *ram.RAM
	bus  *bus.Bus
	mmu  *mmu.MMU
	regs *ppuregs.PPUThreadRegisters
	ip   *Interpreter
}

func newInterpTestRig() *interpTestRig {
	r := ram.New(0, 1<<20)
	disp := mmio.NewDispatcher()
	resv := reservation.New(1)
	b := bus.New(r, disp, resv, nil)
	state := ppuregs.NewPPUState(0)
	m := mmu.New(0, state, r, resv, &mmu.Generation{})
	regs := ppuregs.NewThreadRegisters(0, 0x1000)
	return &interpTestRig{ram: r, bus: b, mmu: m, regs: regs, ip: New(b, nil)}
}

func (rig *interpTestRig) step(instr uint32) *Exception {
	exc := rig.ip.Step(rig.mmu, rig.regs, instr)
	if exc == nil {
		rig.regs.CIA = rig.regs.NIA
	}
	return exc
}

// D-form instruction encoder: opcode(6) rd(5) ra(5) imm16(16).
func dform(op, rd, ra uint32, imm uint16) uint32 {
	return op<<26 | rd<<21 | ra<<16 | uint32(imm)
}

// X-form encoder: opcode(6) rd(5) ra(5) rb(5) secondary(10) rc(1).
func xform(op, rd, ra, rb, sec uint32, rc bool) uint32 {
	v := op<<26 | rd<<21 | ra<<16 | rb<<11 | sec<<1
	if rc {
		v |= 1
	}
	return v
}

func TestAddiAddsImmediateToRA(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.GPR[1] = 10
	// addi r3, r1, 5
	if exc := rig.step(dform(14, 3, 1, 5)); exc != nil {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	if rig.regs.GPR[3] != 15 {
		t.Fatalf("GPR[3] = %d, want 15", rig.regs.GPR[3])
	}
}

func TestAddiWithRAZeroIsLoadImmediate(t *testing.T) {
	rig := newInterpTestRig()
	// addi r3, 0, 42 -- ra=0 means "literal 0", per spec.md section 4's D-form note
	if exc := rig.step(dform(14, 3, 0, 42)); exc != nil {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	if rig.regs.GPR[3] != 42 {
		t.Fatalf("GPR[3] = %d, want 42", rig.regs.GPR[3])
	}
}

func TestOriRecordsIntoGPRWithoutTouchingCR(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.GPR[1] = 0xFF00
	rig.regs.CR = 0xFFFFFFFF
	// ori r3, r1, 0x00FF
	if exc := rig.step(dform(24, 1, 3, 0x00FF)); exc != nil {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	if rig.regs.GPR[3] != 0xFFFF {
		t.Fatalf("GPR[3] = %#x, want 0xFFFF", rig.regs.GPR[3])
	}
	if rig.regs.CR != 0xFFFFFFFF {
		t.Fatalf("ori must not touch CR, got %#x", rig.regs.CR)
	}
}

func TestAddDotSetsCR0FromResult(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.GPR[1] = 1
	rig.regs.GPR[2] = 0xFFFFFFFFFFFFFFFF // -1
	// add. r3, r1, r2  (result 0 -> CR0 EQ set)
	if exc := rig.step(xform(31, 3, 1, 2, 266, true)); exc != nil {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	if rig.regs.GPR[3] != 0 {
		t.Fatalf("GPR[3] = %#x, want 0", rig.regs.GPR[3])
	}
	if rig.regs.CR&(1<<(31-ppuregs.CR_BIT_EQ)) == 0 {
		t.Fatalf("CR0.EQ not set after add. producing zero, CR=%#x", rig.regs.CR)
	}
}

func TestAddoSetsOverflowOnXEROnly(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.GPR[1] = 0x7FFFFFFFFFFFFFFF
	rig.regs.GPR[2] = 1
	// addo r3, r1, r2: XO-form, OE=1, so the true secondary opcode is 266
	// with bit21 (OE) set -- dispatch keys on xSecondary, which drops OE.
	instr := xform(31, 3, 1, 2, 266, false) | 1<<10
	if exc := rig.step(instr); exc != nil {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	if rig.regs.SPR.XER&(1<<(31-ppuregs.XER_OV)) == 0 {
		t.Fatalf("XER.OV not set on signed overflow, XER=%#x", rig.regs.SPR.XER)
	}
}

func TestStoreThenLoadRoundTripsBigEndian(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.GPR[1] = 0x100
	rig.regs.GPR[2] = 0xDEADBEEF
	// stw r2, 0(r1)
	if exc := rig.step(dform(36, 2, 1, 0)); exc != nil {
		t.Fatalf("unexpected exception on store: %+v", exc)
	}
	first := make([]byte, 1)
	rig.ram.Read(0x100, first)
	if first[0] != 0xDE {
		t.Fatalf("first byte = %#x, want 0xDE (big-endian)", first[0])
	}
	// lwz r3, 0(r1)
	if exc := rig.step(dform(32, 3, 1, 0)); exc != nil {
		t.Fatalf("unexpected exception on load: %+v", exc)
	}
	if rig.regs.GPR[3] != 0xDEADBEEF {
		t.Fatalf("GPR[3] = %#x, want 0xDEADBEEF", rig.regs.GPR[3])
	}
}

func TestBranchUnconditionalSetsNIA(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.CIA = 0x1000
	// b +0x100 (LI field is word-aligned, AA=0, LK=0)
	instr := uint32(18)<<26 | (0x100 >> 2 << 2)
	if exc := rig.step(instr); exc != nil {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	if rig.regs.CIA != 0x1100 {
		t.Fatalf("CIA = %#x, want 0x1100", rig.regs.CIA)
	}
}

// M-form encoder: opcode(6) rs(5) ra(5) sh(5) mb(5) me(5) rc(1).
func mform(op, rs, ra, sh, mb, me uint32, rc bool) uint32 {
	v := op<<26 | rs<<21 | ra<<16 | sh<<11 | mb<<6 | me<<1
	if rc {
		v |= 1
	}
	return v
}

func TestRlwinmExtractsAndRotatesField(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.GPR[1] = 0x12345678
	// rlwinm r3, r1, 8, 16, 31 -- rotate left 8, keep the low 16 bits of the
	// rotated word (isolates the original word's middle byte pair).
	if exc := rig.step(mform(21, 1, 3, 8, 16, 31, false)); exc != nil {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	want := uint64(rotl32(0x12345678, 8) & rotateMask(16, 31))
	if rig.regs.GPR[3] != want {
		t.Fatalf("GPR[3] = %#x, want %#x", rig.regs.GPR[3], want)
	}
}

func TestRlwimiInsertsIntoExistingField(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.GPR[1] = 0xFFFFFFFF
	rig.regs.GPR[3] = 0x00000000
	// rlwimi r3, r1, 0, 0, 15 -- insert the high 16 bits of r1 into r3,
	// leaving the low 16 bits of r3 untouched.
	if exc := rig.step(mform(20, 1, 3, 0, 0, 15, false)); exc != nil {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	if rig.regs.GPR[3] != 0xFFFF0000 {
		t.Fatalf("GPR[3] = %#x, want 0xFFFF0000", rig.regs.GPR[3])
	}
}

func TestDataStoreThroughUnmappedTranslationFaultsDSI(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.MSR |= ppuregs.MSR_MASK_DR // translation on, no SLB entry beyond segment 0
	rig.regs.GPR[1] = 1 << 40
	rig.regs.GPR[2] = 0xDEADBEEF
	// stw r2, 0(r1)
	exc := rig.step(dform(36, 2, 1, 0))
	if exc == nil {
		t.Fatalf("expected a translation fault, got none")
	}
	if exc.Kind != ppuregs.ExcSLBMiss && exc.Kind != ppuregs.ExcDSI {
		t.Fatalf("exc.Kind = %v, want ExcSLBMiss or ExcDSI", exc.Kind)
	}
}

func TestUnimplementedOpcodeIsRecoverableNoOp(t *testing.T) {
	rig := newInterpTestRig()
	rig.regs.CIA = 0x2000
	before := rig.regs.GPR
	// opcode 63 sub-op 0 is fcmpu, which is handled, so use a genuinely
	// unused opcode: primary opcode 1 is unassigned.
	if exc := rig.step(1 << 26); exc != nil {
		t.Fatalf("unimplemented opcode must not raise, got %+v", exc)
	}
	if before != rig.regs.GPR {
		t.Fatalf("unimplemented opcode mutated GPRs")
	}
	if _, unimplemented := rig.ip.Metrics.Snapshot(); unimplemented != 1 {
		t.Fatalf("unimplemented-opcode counter = %d, want 1", unimplemented)
	}
}
