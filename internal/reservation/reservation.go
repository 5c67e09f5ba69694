// Package reservation implements the process-global lwarx/stwcx. reservation
// table described in spec.md sections 3 and 4.3. It backs the atomic
// primitives shared across all six PPU hardware threads.
package reservation

import "sync"

// Granule is the 128-byte reservation granule spec.md section 3 defines.
const Granule = 128

type entry struct {
	addr  uint64
	valid bool
}

// Table is the global, thread-id-keyed reservation store. A single mutex
// guards it; reservation operations are rare enough relative to ordinary
// loads/stores that a per-thread lock-free scheme isn't worth the
// complexity spec.md leaves open (it only requires that reserve/
// check-and-clear act as "a single atomic step").
type Table struct {
	mu      sync.Mutex
	entries map[int]*entry
}

// New returns an empty reservation table sized for n hardware threads.
func New(n int) *Table {
	return &Table{entries: make(map[int]*entry, n)}
}

func granuleOf(addr uint64) uint64 { return addr &^ (Granule - 1) }

// Reserve records threadID's load-reserved address, clearing any prior
// reservation that thread held (spec.md section 4.3).
func (t *Table) Reserve(threadID int, realAddr uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[threadID] = &entry{addr: realAddr, valid: true}
}

// CheckAndClear is the atomic compare-and-clear backing stwcx./stdcx.: it
// returns true only if threadID's current reservation equals realAddr, and
// clears it on success (spec.md section 4.3).
func (t *Table) CheckAndClear(threadID int, realAddr uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[threadID]
	if !ok || !e.valid || e.addr != realAddr {
		return false
	}
	e.valid = false
	return true
}

// InvalidateRange clears any reservation whose 128-byte granule overlaps
// [realAddr, realAddr+size). Called by every store path — spec.md section
// 4.3's invariant that a reservation is invalidated by any write to its
// granule, regardless of source (other thread, DMA, MMIO that writes RAM).
func (t *Table) InvalidateRange(realAddr uint64, size uint64) {
	if size == 0 {
		return
	}
	firstGranule := granuleOf(realAddr)
	lastGranule := granuleOf(realAddr + size - 1)

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if !e.valid {
			continue
		}
		g := granuleOf(e.addr)
		if g >= firstGranule && g <= lastGranule {
			e.valid = false
		}
	}
}

// Clear drops threadID's reservation unconditionally — used on context
// switch / thread reset (spec.md section 3's lifecycle note).
func (t *Table) Clear(threadID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, threadID)
}

// Has reports whether threadID currently holds a valid reservation,
// for test assertions and debug introspection.
func (t *Table) Has(threadID int) (addr uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, present := t.entries[threadID]
	if !present || !e.valid {
		return 0, false
	}
	return e.addr, true
}
