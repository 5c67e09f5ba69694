// Package metrics counts host-visible recoverable errors (spec.md section
// 7): unmapped physical accesses and unimplemented opcodes, logged at
// warning level and swallowed rather than surfaced as Go errors. The plain
// atomic-counter-on-a-struct shape follows cpu_ie64.go's CPU64 fields
// (timerCount atomic.Uint64 and friends) rather than reaching for a metrics
// library — these counters are read back in process (debug console,
// tests), never scraped by an external system, so Prometheus-style export
// would be infrastructure with no consumer in this tree.
package metrics

import "sync/atomic"

// Recoverable tallies the two host-visible recoverable-error classes
// spec.md section 7 names. A zero value is ready to use.
type Recoverable struct {
	UnmappedAccess      atomic.Uint64
	UnimplementedOpcode atomic.Uint64
}

func (m *Recoverable) IncUnmappedAccess() { m.UnmappedAccess.Add(1) }

func (m *Recoverable) IncUnimplementedOpcode() { m.UnimplementedOpcode.Add(1) }

// Snapshot returns the current counter values.
func (m *Recoverable) Snapshot() (unmappedAccess, unimplementedOpcode uint64) {
	return m.UnmappedAccess.Load(), m.UnimplementedOpcode.Load()
}
