package pci

// EFuse models the console's read-only fuse block: 12 64-bit lines
// decoded into the console revision, a CPU-key digest, and a lockdown
// flag, read once at boot before the SOC is constructed (mirroring
// original_source's XeRunning/boot-order convention in Base/Global.h,
// where CPU startup follows global state setup).
type EFuse struct {
	Lines [12]uint64
}

// NewEFuse returns a fuse block for the given console revision and CPU key
// digest, matching the shape original_source's boot path reads before
// constructing the PCI bridge and CPU.
func NewEFuse(consoleRevision uint8, cpuKeyDigest uint64, locked bool) *EFuse {
	e := &EFuse{}
	e.Lines[0] = uint64(consoleRevision)
	e.Lines[1] = cpuKeyDigest
	if locked {
		e.Lines[2] = 1
	}
	return e
}

func (e *EFuse) ConsoleRevision() uint8 { return uint8(e.Lines[0]) }
func (e *EFuse) CPUKeyDigest() uint64   { return e.Lines[1] }
func (e *EFuse) Locked() bool           { return e.Lines[2] != 0 }

// Read returns line n (0-11); out-of-range reads return 0, matching a
// read-only fuse bank's behavior for unburned lines.
func (e *EFuse) Read(n int) uint64 {
	if n < 0 || n >= len(e.Lines) {
		return 0
	}
	return e.Lines[n]
}
