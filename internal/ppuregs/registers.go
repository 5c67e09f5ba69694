// Package ppuregs defines the per-thread and per-core register state
// described in spec.md section 3: PPU_THREAD_REGISTERS and PPU_STATE, the
// SLB, and the software TLB entry shape. Field grouping follows the
// cache-line commentary in cpu_ie64.go's CPU64 struct — the hot path
// (GPR/CR, CIA/NIA, MSR) is kept together since the interpreter and every
// JIT-emitted block touch it every instruction; XER lives in the SPR block.
package ppuregs

// Exception is the fixed priority set the PPU loop checks in order
// (spec.md section 4.7). Numerically lower values are higher priority.
type Exception int

const (
	ExcNone Exception = iota
	ExcMachineCheck
	ExcSystemReset
	ExcExternal
	ExcDecrementer
	ExcDSI
	ExcISI
	ExcProgram
	ExcSystemCall
	ExcTrace
	ExcAlignment
	ExcFloatingPoint
	ExcSLBMiss
)

// Vector is the fixed exception-handler entry address for each exception
// kind (PowerPC convention; values match the real-mode vector table).
var Vector = map[Exception]uint64{
	ExcMachineCheck:  0x200,
	ExcDSI:           0x300,
	ExcISI:           0x400,
	ExcExternal:      0x500,
	ExcAlignment:     0x600,
	ExcProgram:       0x700,
	ExcFloatingPoint: 0x800,
	ExcDecrementer:   0x900,
	ExcSystemCall:    0xC00,
	ExcTrace:         0xD00,
	ExcSLBMiss:       0x380,
}

// priorityOrder lists exceptions from highest to lowest priority, per
// spec.md section 4.7: "machine check > system reset > external >
// decrementer > DSI > ISI > program > system call".
var priorityOrder = []Exception{
	ExcMachineCheck,
	ExcSystemReset,
	ExcExternal,
	ExcDecrementer,
	ExcDSI,
	ExcISI,
	ExcProgram,
	ExcSystemCall,
}

// HighestPriority returns the highest-priority pending exception among a
// pending-bit set, or ExcNone if none is pending.
func HighestPriority(pending map[Exception]bool) Exception {
	for _, e := range priorityOrder {
		if pending[e] {
			return e
		}
	}
	return ExcNone
}

// RunMode is the thread's run/pause/halt/nap mode (spec.md section 3).
type RunMode int

const (
	ModeRunning RunMode = iota
	ModePaused
	ModeHalted
	ModeNapping
)

// Reservation is the thread-private slot recording the last lwarx/ldarx
// real address (spec.md section 3). The authoritative state lives in
// package reservation; this mirrors the "is it still valid" bit for fast
// local checks without taking the global table's lock on every load.
type Reservation struct {
	RealAddr uint64
	Valid    bool
}

// SPRBlock holds the subset of special-purpose registers the core actually
// reads or writes (spec.md glossary: SPR). Unimplemented SPRs are not
// modeled here: at the mfspr/mtspr call site they read as zero and writes
// to them are dropped, per spec.md section 7's "unimplemented opcode" policy.
type SPRBlock struct {
	LR   uint64
	CTR  uint64
	XER  uint64
	SRR0 uint64
	SRR1 uint64
	DSISR uint32
	DAR  uint64
	DEC  uint32
	TBL  uint32 // timebase lower (mirrors shared core timebase on read)
	TBU  uint32
	PIR  uint32 // processor identification register (thread id)
	SDR1 uint64 // hashed page table base (shared per core in real hardware; modeled per-thread for simplicity)
}

// PPUThreadRegisters is one hardware thread's architectural state
// (spec.md section 3).
type PPUThreadRegisters struct {
	// Hot path: touched by every instruction.
	GPR [32]uint64
	CR  uint32 // eight 4-bit fields
	CIA uint64
	NIA uint64
	MSR uint64

	FPR [32]float64
	VR  [128][2]uint64 // 128-bit vector registers, stored as two uint64 halves

	SPR SPRBlock

	Reservation Reservation

	PendingExceptions map[Exception]bool
	Mode               RunMode

	ThreadID int // 0-5, index into the SOC's six hardware threads
}

// NewThreadRegisters returns a thread reset to its architectural initial
// state: MSR=0 (real mode, translation off), CIA at resetPC.
func NewThreadRegisters(threadID int, resetPC uint64) *PPUThreadRegisters {
	t := &PPUThreadRegisters{
		CIA:                resetPC,
		NIA:                resetPC + 4,
		PendingExceptions:  make(map[Exception]bool, 4),
		ThreadID:           threadID,
	}
	t.SPR.PIR = uint32(threadID)
	return t
}

// SLBEntry maps an effective segment to a virtual segment (spec.md
// section 3).
type SLBEntry struct {
	ESID      uint64 // 36 bits
	VSID      uint64 // 52 bits
	Valid     bool
	LargePage bool
	Ks, Kp    bool
	N         bool // no-execute
	L         bool // large page indicator bit (distinct from LargePage's PTE encoding)
	C         bool // class
}

// SLB is the per-core, 16-entry segment lookaside buffer (spec.md
// section 3 and 4.2). Shared by the two threads of a physical core. No
// lock guards it; nothing writes Entries after NewSLB.
type SLB struct {
	Entries [16]SLBEntry
}

// NewSLB returns an SLB with entry 0 valid and mapping the identity
// segment, matching spec.md section 3's "entry 0 is the default segment
// after reset".
func NewSLB() *SLB {
	s := &SLB{}
	s.Entries[0] = SLBEntry{ESID: 0, VSID: 0, Valid: true}
	return s
}

// Find returns the entry matching esid, honoring the "at most one entry
// matches any ESID" invariant.
func (s *SLB) Find(esid uint64) (SLBEntry, bool) {
	for i := range s.Entries {
		if s.Entries[i].Valid && s.Entries[i].ESID == esid {
			return s.Entries[i], true
		}
	}
	return SLBEntry{}, false
}

// TLBEntry is a software TLB entry (spec.md section 3).
type TLBEntry struct {
	VPN      uint64
	RPN      uint64
	PageSize uint64 // bytes
	Valid    bool
	WIMG     uint8
	PP       uint8 // page protection bits
	NoExec   bool
}

// PPUStateSPRs holds the shared-per-core SPRs (spec.md section 3).
type PPUStateSPRs struct {
	HID   uint64
	LPCR  uint64
	HRMOR uint64
	SDR1  uint64
	RMOR  uint64
	LPIDR uint32
}

// PPUState is the shared state of one physical core (two threads) —
// spec.md section 3.
type PPUState struct {
	SPR PPUStateSPRs
	SLB *SLB

	CoreID int
}

// NewPPUState returns a fresh per-core state with a reset SLB.
func NewPPUState(coreID int) *PPUState {
	return &PPUState{SLB: NewSLB(), CoreID: coreID}
}
