// Package signals holds the shared, process-wide-in-effect-but-explicitly-
// passed control flags described in spec.md section 9 ("Global mutable
// state"): running/paused/fatal, published from one place (SOC shutdown,
// the pause barrier, a fatal-error handler) and polled by every PPU loop at
// its next architectural boundary. Modeled on the atomic.Bool fields in
// cpu_ie64.go's CPU64 struct, lifted out of the CPU type so every worker
// (PPU thread, device, debug console) shares one instance instead of each
// CPU replicating its own copy.
package signals

import "sync/atomic"

// Signals is passed by pointer to every PPU thread and device worker at
// construction. It is never copied.
type Signals struct {
	running atomic.Bool
	paused  atomic.Bool
	fatal   atomic.Bool
	reason  atomic.Value // string, valid once fatal is true
}

// New returns a Signals with running set, matching the teacher's
// construction-time default (cpu.running.Store(true) in NewCPU64).
func New() *Signals {
	s := &Signals{}
	s.running.Store(true)
	return s
}

func (s *Signals) Running() bool { return s.running.Load() && !s.fatal.Load() }
func (s *Signals) Paused() bool  { return s.paused.Load() }
func (s *Signals) Fatal() bool   { return s.fatal.Load() }

// FatalReason returns the message passed to SetFatal, or "" if no fatal
// error has been raised.
func (s *Signals) FatalReason() string {
	if v, ok := s.reason.Load().(string); ok {
		return v
	}
	return ""
}

// Stop requests every PPU loop and device worker drain to their next
// architectural boundary and return (spec.md section 5, "Cancellation /
// timeouts").
func (s *Signals) Stop() { s.running.Store(false) }

// Pause suspends every thread at its next instruction boundary; Resume
// clears it. Both are idempotent.
func (s *Signals) Pause()  { s.paused.Store(true) }
func (s *Signals) Resume() { s.paused.Store(false) }

// SetFatal records a fatal host-visible error (spec.md section 7) and stops
// the machine. The first caller's reason wins.
func (s *Signals) SetFatal(reason string) {
	s.reason.CompareAndSwap(nil, reason)
	s.fatal.Store(true)
	s.running.Store(false)
}
