// Package timebase implements the shared 64-bit monotonic timebase and
// per-thread decrementer described in spec.md sections 3 and 4.4. Modeled
// on the atomic.Uint64 timer fields in cpu_ie64.go's CPU64 (timerCount,
// timerPeriod), generalized from one CPU's private timer to a timebase
// shared by all six threads plus one decrementer per thread.
package timebase

import "sync/atomic"

// Timebase is the shared 64-bit monotonic counter (spec.md section 3).
type Timebase struct {
	ticks atomic.Uint64
}

// New returns a timebase starting at zero.
func New() *Timebase { return &Timebase{} }

// Tick advances the timebase by one unit — called once per simulated
// instruction quantum by every PPU loop (spec.md section 4.4).
func (tb *Timebase) Tick() uint64 { return tb.ticks.Add(1) }

// Advance moves the timebase forward by n ticks in one step. The PPU loop
// calls it after a JIT block with the block's instruction count; a napping
// thread does not advance the timebase.
func (tb *Timebase) Advance(n uint64) uint64 { return tb.ticks.Add(n) }

func (tb *Timebase) Now() uint64 { return tb.ticks.Load() }

// Decrementer is one hardware thread's countdown register. It fires an
// interrupt when it crosses zero with MSR.EE set (spec.md section 4.4 and
// the glossary entry for Decrementer).
type Decrementer struct {
	value atomic.Int64 // signed so "become negative" is a natural comparison
}

// NewDecrementer returns a decrementer loaded with 0, matching the thread
// reset state before firmware programs it via mtdec.
func NewDecrementer() *Decrementer { return &Decrementer{} }

// Set loads the decrementer with a new count (mtdec).
func (d *Decrementer) Set(v uint32) { d.value.Store(int64(int32(v))) }

// Get reads the current count (mfdec), truncated to 32 bits as PowerPC
// requires.
func (d *Decrementer) Get() uint32 { return uint32(d.value.Load()) }

// Tick decrements by one and reports whether it just crossed from
// non-negative to negative — the edge that fires the interrupt (spec.md
// section 4.4: "when it becomes negative and MSR.EE is set").
func (d *Decrementer) Tick() (crossed bool) {
	prev := d.value.Load()
	next := d.value.Add(-1)
	return prev >= 0 && next < 0
}

// AdvanceBy decrements by n ticks at once (used after a JIT block, with its
// instruction count) and reports whether the zero crossing happened anywhere
// in that span.
func (d *Decrementer) AdvanceBy(n uint64) (crossed bool) {
	prev := d.value.Load()
	next := d.value.Add(-int64(n))
	return prev >= 0 && next < 0
}
