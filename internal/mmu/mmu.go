// Package mmu implements the per-thread effective->virtual->real address
// translation pipeline of spec.md section 4.2: SLB lookup, software TLB,
// hashed page-table walk, and large-page handling, plus the TLB/SLB
// invalidation and JIT-generation-bump machinery of spec.md section 4.2's
// "invalidation" paragraph.
//
// The overall "translate, consult a cache, walk a table on miss, retry"
// shape is grounded on machine_bus.go's fault-returning bus accessors
// (Read32WithFault/Write32WithFault) in IntuitionEngine, generalized from a
// single flat 32-bit bus to the three-stage EA->VA->RA pipeline spec.md
// section 4.2 requires.
package mmu

import (
	"sync/atomic"

	"github.com/xenoncore/xenoncore/internal/ppuregs"
	"github.com/xenoncore/xenoncore/internal/ram"
	"github.com/xenoncore/xenoncore/internal/reservation"
)

// AccessKind distinguishes the three translation purposes spec.md section
// 4.2 names.
type AccessKind int

const (
	AccessFetch AccessKind = iota
	AccessDataRead
	AccessDataWrite
)

// Fault carries the exception kind and faulting address for a failed
// translation, returned as an explicit value rather than thrown, per
// spec.md section 9's "Exceptions for control flow" design note.
type Fault struct {
	Kind          ppuregs.Exception
	EffectiveAddr uint64
	DSISR         uint32
}

// Generation is the global translation-generation counter: every TLB/SLB
// invalidation bumps it, and the JIT block cache validates a cached
// block's guard_generation against it at entry (spec.md section 4.2 and
// 4.5). It is process-global because tlbie/slbie affect all six threads.
type Generation struct {
	n atomic.Uint64
}

func (g *Generation) Load() uint64 { return g.n.Load() }
func (g *Generation) Bump()        { g.n.Add(1) }

// MMU is one hardware thread's translation unit. The SLB is shared with the
// thread's sibling on the same core (spec.md section 3); the TLB is
// thread-private (spec.md section 4.2: "MMU per thread").
type MMU struct {
	state      *ppuregs.PPUState // shared per-core state, owns the SLB
	tlb        softwareTLB
	mem        *ram.RAM
	reservations *reservation.Table
	gen        *Generation
	threadID   int
}

// New returns an MMU for one hardware thread, sharing state with its core
// and the process-wide reservation table and generation counter.
func New(threadID int, state *ppuregs.PPUState, mem *ram.RAM, reservations *reservation.Table, gen *Generation) *MMU {
	return &MMU{state: state, mem: mem, reservations: reservations, gen: gen, threadID: threadID}
}

// esidOf extracts the effective segment id from the top 36 bits of a
// 64-bit effective address (spec.md section 4.2 step 2).
func esidOf(ea uint64) uint64 { return ea >> 28 }

// pageIndexOf extracts the page index (address bits between the segment
// id and the 4KiB page offset).
func pageIndexOf(ea uint64) uint64 { return (ea >> 12) & 0xFFFF }

// vpnOf forms a virtual page number from a VSID and effective address,
// used as the software TLB's tag (spec.md section 4.2 step 3).
func vpnOf(vsid uint64, ea uint64, largePage bool) uint64 {
	if largePage {
		return vsid<<36 | (ea>>24)&0xFFFFFFF
	}
	return vsid<<36 | (ea>>12)&0xFFFFFF
}

// Translate implements spec.md section 4.2's translate(effective_addr,
// access) -> real_addr | exception procedure.
func (m *MMU) Translate(t *ppuregs.PPUThreadRegisters, ea uint64, access AccessKind) (uint64, *Fault) {
	// Step 1: translation-off fast path.
	translating := access == AccessFetch && ppuregs.MSRTest(t.MSR, ppuregs.MSR_IR)
	translating = translating || (access != AccessFetch && ppuregs.MSRTest(t.MSR, ppuregs.MSR_DR))
	if !translating {
		return ea, nil
	}

	// Step 2: SLB lookup.
	esid := esidOf(ea)
	slb, ok := m.state.SLB.Find(esid)
	if !ok {
		return 0, &Fault{Kind: ppuregs.ExcSLBMiss, EffectiveAddr: ea}
	}

	pageIndex := pageIndexOf(ea)
	vpn := vpnOf(slb.VSID, ea, slb.LargePage)

	// Step 3: TLB lookup.
	entry, hit := m.tlb.lookup(vpn)
	if !hit {
		// Step 4: hashed page-table walk on TLB miss.
		p, found := walkPageTable(m.mem, m.state.SPR.SDR1, slb.VSID, pageIndex, access == AccessFetch)
		if !found {
			return 0, m.pageFault(access, ea)
		}
		entry = p.toTLBEntry(vpn)
		m.tlb.install(entry)
		hit = true
	}

	// Step 3 (post-install retry)/5: key & protection checks.
	if access == AccessFetch && entry.NoExec {
		return 0, &Fault{Kind: ppuregs.ExcISI, EffectiveAddr: ea, DSISR: 0x10000000}
	}
	if access == AccessDataWrite && entry.PP == 0x3 {
		// PP==3: read-only for both supervisor and problem state.
		return 0, &Fault{Kind: ppuregs.ExcDSI, EffectiveAddr: ea, DSISR: 0x08000000}
	}
	if ppuregs.MSRTest(t.MSR, ppuregs.MSR_PR) && slb.Ks {
		return 0, m.keyFault(access, ea)
	}

	pageMask := entry.PageSize - 1
	real := entry.RPN | (ea & pageMask)
	return real, nil
}

func (m *MMU) pageFault(access AccessKind, ea uint64) *Fault {
	if access == AccessFetch {
		return &Fault{Kind: ppuregs.ExcISI, EffectiveAddr: ea, DSISR: 0x40000000}
	}
	f := &Fault{Kind: ppuregs.ExcDSI, EffectiveAddr: ea, DSISR: 0x40000000}
	if access == AccessDataWrite {
		f.DSISR |= 0x02000000
	}
	return f
}

func (m *MMU) keyFault(access AccessKind, ea uint64) *Fault {
	if access == AccessFetch {
		return &Fault{Kind: ppuregs.ExcISI, EffectiveAddr: ea, DSISR: 0x08000000}
	}
	return &Fault{Kind: ppuregs.ExcDSI, EffectiveAddr: ea, DSISR: 0x08000000}
}

// GenerationValue returns the current translation generation, used by the
// JIT block cache to validate a cached block at entry (spec.md section 4.5).
func (m *MMU) GenerationValue() uint64 { return m.gen.Load() }

// TLBInvalidateAll implements tlbie/tlbsync's effect on this thread's TLB.
// Callers are responsible for broadcasting to all six MMUs and bumping the
// shared Generation (spec.md section 4.2: invalidation affects all threads
// and is totally ordered with respect to a following isync).
func (m *MMU) TLBInvalidateAll() {
	m.tlb.invalidateAll()
}

// TLBInvalidateVPN implements a targeted tlbiel for one virtual page.
func (m *MMU) TLBInvalidateVPN(vsid uint64, ea uint64, largePage bool) {
	m.tlb.invalidateVPN(vpnOf(vsid, ea, largePage))
}
