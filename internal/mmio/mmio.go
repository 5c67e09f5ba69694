// Package mmio implements the address-keyed MMIO dispatcher described in
// spec.md section 4.1: an ordered, non-overlapping set of physical address
// ranges, each owned by a device, looked up by containment. It generalizes
// the page-keyed IORegion map in memory_bus.go (IntuitionEngine) from fixed
// 0x100-byte pages covering a 16MB space to arbitrary-sized intervals over
// a 64-bit physical address space, since Xenon's device windows range from
// a few registers (the GPU ring-buffer window) to tens of MiB (the NAND
// window) and overlap checking must hold at registration time rather than being
// implied by page granularity.
package mmio

import (
	"fmt"
	"sort"
	"sync"
)

// Device is the capability set every MMIO-mapped peripheral implements
// (spec.md section 6). Devices never hold references to the MMU or other
// devices; they are addressed by the registry's DeviceHandle (spec.md
// section 9, "cyclic object graphs").
type Device interface {
	Name() string
	Read(addr uint64, out []byte) error
	Write(addr uint64, in []byte) error
	MemSet(addr uint64, b byte, n int) error
}

// ConfigSpaceDevice is implemented by devices reachable through PCI
// configuration space accesses (spec.md section 6).
type ConfigSpaceDevice interface {
	Device
	ConfigRead(offset uint8) uint32
	ConfigWrite(offset uint8, val uint32)
}

// DeviceHandle is a stable integer identifying a registered device; the MMU
// and interpreter hold handles, never *Device values (spec.md section 9).
type DeviceHandle int

// ErrUnmappedPhysical is the host-visible recoverable error for §4.1/§7:
// logged, reads return 0xFF per byte, writes are no-ops.
type ErrUnmappedPhysical struct{ Addr uint64 }

func (e ErrUnmappedPhysical) Error() string {
	return fmt.Sprintf("mmio: unmapped physical address 0x%016x", e.Addr)
}

// ErrOverlappingRegion is returned by Register when a new range overlaps an
// already-registered one.
type ErrOverlappingRegion struct {
	New, Existing region
}

func (e ErrOverlappingRegion) Error() string {
	return fmt.Sprintf("mmio: region %s [0x%x,0x%x] overlaps %s [0x%x,0x%x]",
		e.New.name, e.New.start, e.New.end, e.Existing.name, e.Existing.start, e.Existing.end)
}

type region struct {
	name        string
	start, end  uint64 // inclusive
	device      Device
	handle      DeviceHandle
	isSOCDevice bool
}

// Dispatcher is the MMIO address router. All device accesses are forwarded
// without holding the dispatcher's own lock across the call (spec.md
// section 4.1, "the dispatcher itself holds no lock across the forwarded
// call") — each device is responsible for its own internal serialization,
// mirroring the coarse per-device mutex in coprocessor_manager.go's
// CoprocessorManager.HandleRead/HandleWrite.
type Dispatcher struct {
	mu      sync.RWMutex
	regions []region // kept sorted by start for binary-search containment lookup
	next    DeviceHandle
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a device's address range. Overlap with any existing region
// is rejected (spec.md section 4.1, "Overlap is prohibited").
func (d *Dispatcher) Register(name string, start, end uint64, isSOCDevice bool, dev Device) (DeviceHandle, error) {
	if end < start {
		return 0, fmt.Errorf("mmio: region %s has end 0x%x before start 0x%x", name, end, start)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	i := sort.Search(len(d.regions), func(i int) bool { return d.regions[i].start > start })
	if i > 0 && d.regions[i-1].end >= start {
		return 0, ErrOverlappingRegion{New: region{name: name, start: start, end: end}, Existing: d.regions[i-1]}
	}
	if i < len(d.regions) && d.regions[i].start <= end {
		return 0, ErrOverlappingRegion{New: region{name: name, start: start, end: end}, Existing: d.regions[i]}
	}

	d.next++
	handle := d.next
	r := region{name: name, start: start, end: end, device: dev, handle: handle, isSOCDevice: isSOCDevice}
	d.regions = append(d.regions, region{})
	copy(d.regions[i+1:], d.regions[i:])
	d.regions[i] = r
	return handle, nil
}

// find returns the region containing addr via binary search, or false.
func (d *Dispatcher) find(addr uint64) (region, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := sort.Search(len(d.regions), func(i int) bool { return d.regions[i].end >= addr })
	if i < len(d.regions) && d.regions[i].start <= addr {
		return d.regions[i], true
	}
	return region{}, false
}

// Read dispatches a read to the containing device. On a miss it returns
// ErrUnmappedPhysical; callers follow the §7 policy of substituting 0xFF
// per byte and logging.
func (d *Dispatcher) Read(addr uint64, out []byte) error {
	r, ok := d.find(addr)
	if !ok {
		return ErrUnmappedPhysical{Addr: addr}
	}
	return r.device.Read(addr, out)
}

// Write dispatches a write; a miss is a logged no-op per §7.
func (d *Dispatcher) Write(addr uint64, in []byte) error {
	r, ok := d.find(addr)
	if !ok {
		return ErrUnmappedPhysical{Addr: addr}
	}
	return r.device.Write(addr, in)
}

// MemSet dispatches a fill operation across the containing region.
func (d *Dispatcher) MemSet(addr uint64, b byte, n int) error {
	r, ok := d.find(addr)
	if !ok {
		return ErrUnmappedPhysical{Addr: addr}
	}
	return r.device.MemSet(addr, b, n)
}

// DeviceAt returns the device mapped at addr, if any — used by the PCI
// bridge to resolve config-space accesses to a ConfigSpaceDevice.
func (d *Dispatcher) DeviceAt(addr uint64) (Device, bool) {
	r, ok := d.find(addr)
	if !ok {
		return nil, false
	}
	return r.device, true
}
