// Package pci implements the host bridge and PCI configuration-space
// addressing of spec.md section 6, grounded on
// original_source/Xenon/Core/PCI/Bridge/HostBridge.h and PCIBridge.cpp's
// bus/device/function/register decode and device tree. Rendering/audio/
// storage device bodies are out of scope (spec.md section 1); this package
// owns only the bridge's routing and configuration-space surface plus a
// device registry keyed by stable handle (spec.md section 9's "cyclic
// object graphs" note).
package pci

import (
	"fmt"
	"sync"

	"github.com/xenoncore/xenoncore/internal/iic"
	"github.com/xenoncore/xenoncore/internal/mmio"
)

// Address decodes a 64-bit PCI configuration-space physical address into
// bus/device/function/register fields (original_source's device tree
// comment: "BUS0 -Dev 0, Func 0: ...").
type Address struct {
	Bus, Device, Function uint8
	Register              uint8
}

// DecodeConfigAddress follows the type-1 ECAM-style layout the host bridge
// uses: bits [27:20] bus, [19:15] device, [14:12] function, [9:2]
// register (word-addressed, matching HostBridge's 0x1FFFFFF window); bits
// [11:10] are ignored.
func DecodeConfigAddress(addr uint64) Address {
	return Address{
		Bus:      uint8((addr >> 20) & 0xFF),
		Device:   uint8((addr >> 15) & 0x1F),
		Function: uint8((addr >> 12) & 0x7),
		Register: uint8((addr >> 2) & 0xFF),
	}
}

// Priority mirrors the bridge's fixed interrupt-source table (spec.md
// section 3's interrupt-record priority set, routed 1:1 onto iic.Priority).
type Priority = iic.Priority

// routingEntry is one priority's target-CPU/enabled pair, matching
// PCIBridge's PRIO_REG_* shadow registers.
type routingEntry struct {
	targetCPU int
	enabled   bool
}

// Bridge is the host/PCI bridge: configuration-space router plus interrupt
// routing table (original_source's PCIBridge::RouteInterrupt).
type Bridge struct {
	mu       sync.Mutex
	devices  map[uint16]mmio.ConfigSpaceDevice // key: bus<<8|device<<3|function
	routing  [14]routingEntry
	iic      *iic.Controller
}

// NewBridge returns a bridge with every interrupt line routed to thread 0
// and disabled until a device registers interest, matching the reset state
// original_source's PCIBridge constructor establishes for pciBridgeState.
func NewBridge(ic *iic.Controller) *Bridge {
	return &Bridge{devices: make(map[uint16]mmio.ConfigSpaceDevice), iic: ic}
}

func key(bus, device, function uint8) uint16 {
	return uint16(bus)<<8 | uint16(device)<<3 | uint16(function)
}

// RegisterDevice attaches dev at the given bus/device/function slot.
func (b *Bridge) RegisterDevice(bus, device, function uint8, dev mmio.ConfigSpaceDevice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[key(bus, device, function)] = dev
}

// ConfigRead/ConfigWrite resolve a decoded address to a device's config
// space, or return 0xFFFFFFFF (the PCI "no device present" convention) on
// a miss.
func (b *Bridge) ConfigRead(addr uint64) uint32 {
	a := DecodeConfigAddress(addr)
	b.mu.Lock()
	dev, ok := b.devices[key(a.Bus, a.Device, a.Function)]
	b.mu.Unlock()
	if !ok {
		return 0xFFFFFFFF
	}
	return dev.ConfigRead(a.Register)
}

func (b *Bridge) ConfigWrite(addr uint64, val uint32) {
	a := DecodeConfigAddress(addr)
	b.mu.Lock()
	dev, ok := b.devices[key(a.Bus, a.Device, a.Function)]
	b.mu.Unlock()
	if ok {
		dev.ConfigWrite(a.Register, val)
	}
}

// SetRouting configures whether priority is enabled and which hardware
// thread it targets — the software-visible half of PCIBridge's
// PRIO_REG_* registers.
func (b *Bridge) SetRouting(priority Priority, targetCPU int, enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routing[priority] = routingEntry{targetCPU: targetCPU, enabled: enabled}
}

// Name/Read/Write/MemSet let the bridge itself be registered as an
// mmio.Device, so the host CPU's memory-mapped config-space window
// (original_source's HOST_BRIDGE_SIZE) reaches ConfigRead/ConfigWrite
// through the same dispatcher path every other device uses.
func (b *Bridge) Name() string { return "pci-host-bridge" }

func (b *Bridge) Read(addr uint64, out []byte) error {
	v := b.ConfigRead(addr)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return nil
}

func (b *Bridge) Write(addr uint64, in []byte) error {
	var v uint32
	for _, byt := range in {
		v = v<<8 | uint32(byt)
	}
	b.ConfigWrite(addr, v)
	return nil
}

func (b *Bridge) MemSet(addr uint64, val byte, n int) error {
	return fmt.Errorf("pci: memset unsupported on configuration space")
}

// RouteInterrupt asserts priority on its configured target thread if
// routing is enabled (original_source's PCIBridge::RouteInterrupt,
// generalized from a per-priority switch statement to a table lookup).
func (b *Bridge) RouteInterrupt(priority Priority, sourceDevice int) error {
	b.mu.Lock()
	r := b.routing[priority]
	b.mu.Unlock()
	if !r.enabled {
		return fmt.Errorf("pci: priority %d routed but disabled", priority)
	}
	b.iic.Raise(r.targetCPU, priority, sourceDevice)
	return nil
}
