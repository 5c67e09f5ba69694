// Package bus glues one hardware thread's MMU to physical RAM and the MMIO
// dispatcher, presenting the "translate, then read/write real memory"
// operation the interpreter and JIT slow path both need (spec.md sections
// 4.1, 4.2, 4.3). It also enforces the reservation-table interaction spec.md
// section 4.2 describes: "any store performed through the MMU consults the
// reservation table before writing and clears conflicting reservations
// after the store commits."
package bus

import (
	"encoding/binary"
	"log/slog"

	"github.com/xenoncore/xenoncore/internal/metrics"
	"github.com/xenoncore/xenoncore/internal/mmio"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
	"github.com/xenoncore/xenoncore/internal/ram"
	"github.com/xenoncore/xenoncore/internal/reservation"
	"github.com/xenoncore/xenoncore/internal/xlog"
)

// Bus is shared by all six hardware threads; RAM and the reservation table
// are process-global, per-thread translation is supplied by the caller's
// *mmu.MMU.
type Bus struct {
	RAM          *ram.RAM
	MMIO         *mmio.Dispatcher
	Reservations *reservation.Table
	Metrics      *metrics.Recoverable

	log *slog.Logger
}

// New constructs a Bus over the given RAM and MMIO dispatcher. log may be
// nil, in which case unmapped-access warnings are discarded.
func New(r *ram.RAM, m *mmio.Dispatcher, resv *reservation.Table, log *slog.Logger) *Bus {
	if log == nil {
		log = xlog.Discard()
	}
	return &Bus{RAM: r, MMIO: m, Reservations: resv, Metrics: &metrics.Recoverable{}, log: log}
}

func (b *Bus) isRAM(real uint64) bool {
	return real >= b.RAM.Base && real < b.RAM.Base+b.RAM.Size()
}

// readReal reads n big-endian bytes from real address, routing to RAM or
// MMIO. Unmapped physical accesses return 0xFF per byte per spec.md
// section 7's recoverable-error policy: logged at warning level, counted,
// and swallowed rather than propagated to the caller.
func (b *Bus) readReal(real uint64, n int) (uint64, error) {
	buf := make([]byte, n)
	var err error
	if b.isRAM(real) {
		err = b.RAM.Read(real, buf)
	} else {
		err = b.MMIO.Read(real, buf)
	}
	if err != nil {
		b.Metrics.IncUnmappedAccess()
		b.log.Warn("unmapped physical read", "addr", real, "size", n, "err", err)
		for i := range buf {
			buf[i] = 0xFF
		}
	}
	switch n {
	case 1:
		return uint64(buf[0]), err
	case 2:
		return uint64(binary.BigEndian.Uint16(buf)), err
	case 4:
		return uint64(binary.BigEndian.Uint32(buf)), err
	case 8:
		return binary.BigEndian.Uint64(buf), err
	}
	return 0, err
}

func (b *Bus) writeReal(real uint64, val uint64, n int) error {
	buf := make([]byte, n)
	switch n {
	case 1:
		buf[0] = byte(val)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(val))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(val))
	case 8:
		binary.BigEndian.PutUint64(buf, val)
	}
	var err error
	if b.isRAM(real) {
		err = b.RAM.Write(real, buf)
	} else {
		err = b.MMIO.Write(real, buf)
	}
	if err != nil {
		b.Metrics.IncUnmappedAccess()
		b.log.Warn("unmapped physical write", "addr", real, "size", n, "err", err)
	}
	// Any successful write to RAM (or MMIO that lands on RAM's backing
	// store) invalidates conflicting reservations after the store commits
	// (spec.md section 4.2/4.3).
	if err == nil {
		b.Reservations.InvalidateRange(real, uint64(n))
	}
	return err
}

// LoadSize reads n bytes (1/2/4/8) at effective address ea through mmu,
// returning a translation fault or nil.
func (b *Bus) LoadSize(m *mmu.MMU, t *ppuregs.PPUThreadRegisters, ea uint64, n int) (uint64, *mmu.Fault) {
	real, fault := m.Translate(t, ea, mmu.AccessDataRead)
	if fault != nil {
		return 0, fault
	}
	v, _ := b.readReal(real, n)
	return v, nil
}

// StoreSize writes n bytes at effective address ea through mmu.
func (b *Bus) StoreSize(m *mmu.MMU, t *ppuregs.PPUThreadRegisters, ea uint64, val uint64, n int) *mmu.Fault {
	real, fault := m.Translate(t, ea, mmu.AccessDataWrite)
	if fault != nil {
		return fault
	}
	_ = b.writeReal(real, val, n)
	return nil
}

// FetchInstruction reads the 32-bit big-endian word at CIA (spec.md section
// 4.7 step 3/4).
func (b *Bus) FetchInstruction(m *mmu.MMU, t *ppuregs.PPUThreadRegisters, cia uint64) (uint32, *mmu.Fault) {
	real, fault := m.Translate(t, cia, mmu.AccessFetch)
	if fault != nil {
		return 0, fault
	}
	v, _ := b.readReal(real, 4)
	return uint32(v), nil
}

// LoadReserved implements lwarx/ldarx: translate for a data read, record
// the real address in the thread's reservation, and return the loaded
// value (spec.md section 4.2's reservation/translation interaction).
func (b *Bus) LoadReserved(m *mmu.MMU, t *ppuregs.PPUThreadRegisters, ea uint64, n int) (uint64, *mmu.Fault) {
	real, fault := m.Translate(t, ea, mmu.AccessDataRead)
	if fault != nil {
		return 0, fault
	}
	b.Reservations.Reserve(t.ThreadID, real)
	t.Reservation = ppuregs.Reservation{RealAddr: real, Valid: true}
	v, _ := b.readReal(real, n)
	return v, nil
}

// StoreConditional implements stwcx./stdcx.: translate for a data write,
// then atomically check-and-clear the reservation. The store only commits
// if the reservation was still valid (spec.md section 4.3 and 8's
// "reservation exclusivity" property).
func (b *Bus) StoreConditional(m *mmu.MMU, t *ppuregs.PPUThreadRegisters, ea uint64, val uint64, n int) (succeeded bool, fault *mmu.Fault) {
	real, f := m.Translate(t, ea, mmu.AccessDataWrite)
	if f != nil {
		return false, f
	}
	ok := b.Reservations.CheckAndClear(t.ThreadID, real)
	t.Reservation.Valid = false
	if !ok {
		return false, nil
	}
	_ = b.writeReal(real, val, n)
	return true, nil
}
