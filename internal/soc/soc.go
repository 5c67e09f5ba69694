// Package soc assembles the six hardware threads (3 cores x 2 threads),
// shared RAM/MMIO/reservation state, and the host bridge/eFuse/device set
// into one bootable machine (spec.md sections 3, 5, 6), and drives their
// lifecycle.
//
// The worker pool shape is grounded on coprocessor_manager.go's
// CoprocWorker: a per-unit stop/done pair started from a central manager.
// This package replaces that bespoke channel bookkeeping with
// golang.org/x/sync/errgroup, since all six threads share one lifetime
// (the whole SOC starts and stops together, unlike IntuitionEngine's
// independently-launched per-ticket coprocessor workers) and errgroup's
// first-error-cancels-context semantics fit that directly.
package soc

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/xenoncore/xenoncore/internal/bus"
	"github.com/xenoncore/xenoncore/internal/devices"
	"github.com/xenoncore/xenoncore/internal/iic"
	"github.com/xenoncore/xenoncore/internal/interp"
	"github.com/xenoncore/xenoncore/internal/jit"
	"github.com/xenoncore/xenoncore/internal/mmio"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/pci"
	"github.com/xenoncore/xenoncore/internal/ppu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
	"github.com/xenoncore/xenoncore/internal/ram"
	"github.com/xenoncore/xenoncore/internal/reservation"
	"github.com/xenoncore/xenoncore/internal/signals"
	"github.com/xenoncore/xenoncore/internal/timebase"
)

// CoreCount and ThreadsPerCore fix the 3x2 topology spec.md section 3
// describes.
const (
	CoreCount      = 3
	ThreadsPerCore = 2
	ThreadCount    = CoreCount * ThreadsPerCore
)

// MMIO layout: RAM occupies [0, RAMSize); everything else lives above it in
// its own fixed window, mirroring original_source's HostBridge placing
// config space and device windows above physical RAM.
const (
	pciConfigBase  = 0xD0000000
	pciConfigSize  = 0x1FFFFFF // HOST_BRIDGE_SIZE, HostBridge.h
	xgpuBase       = 0xE0000000
	xgpuSize       = 0x20
	sfcxBase       = 0xEA000000
)

// Config configures a fresh SOC (spec.md section 1's plain-struct
// configuration, no config-file parser).
type Config struct {
	RAMSize         int
	ResetPC         uint64
	ConsoleRevision uint8
	CPUKeyDigest    uint64
	FuseLocked      bool
	Log             *slog.Logger
}

// SOC is the assembled machine: shared memory/bus/interrupt state plus six
// running hardware threads.
type SOC struct {
	RAM          *ram.RAM
	MMIO         *mmio.Dispatcher
	Bus          *bus.Bus
	IIC          *iic.Controller
	Bridge       *pci.Bridge
	EFuse        *pci.EFuse
	XGPU         *devices.XGPU
	SFCX         *devices.SFCX
	Timebase     *timebase.Timebase
	Signals      *signals.Signals
	CoreStates   [CoreCount]*ppuregs.PPUState
	Threads      [ThreadCount]*ppu.Thread
	Decrementers [ThreadCount]*timebase.Decrementer

	log *slog.Logger
}

func coreOf(threadID int) int { return threadID / ThreadsPerCore }

// New builds a SOC from cfg: RAM, the MMIO dispatcher with the PCI bridge
// and stub devices registered, six per-thread MMUs sharing three per-core
// SLBs, and six ppu.Thread runners (spec.md section 4.7).
func New(cfg Config) (*SOC, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	r := ram.New(0, cfg.RAMSize)
	disp := mmio.NewDispatcher()
	resv := reservation.New(ThreadCount)
	gen := &mmu.Generation{}
	ic := iic.New(ThreadCount)
	tb := timebase.New()
	sig := signals.New()

	s := &SOC{
		RAM: r, MMIO: disp, IIC: ic, Timebase: tb, Signals: sig,
		EFuse: pci.NewEFuse(cfg.ConsoleRevision, cfg.CPUKeyDigest, cfg.FuseLocked),
		log:   log,
	}

	s.Bridge = pci.NewBridge(ic)
	s.Bridge.SetRouting(iic.PriorityGraphics, 0, true)
	s.Bridge.SetRouting(iic.PrioritySFCX, 0, true)
	s.XGPU = devices.NewXGPU(func(ringBase, writePtr uint64) {
		if err := s.Bridge.RouteInterrupt(iic.PriorityGraphics, 0); err != nil {
			s.log.Warn("gpu kick interrupt not routed", "err", err)
		}
	})
	s.SFCX = devices.NewSFCX(devices.NANDWindowSize)

	if _, err := disp.Register("xgpu", xgpuBase, xgpuBase+xgpuSize-1, true, s.XGPU); err != nil {
		return nil, err
	}
	if _, err := disp.Register("sfcx-nand", sfcxBase, sfcxBase+devices.NANDWindowSize-1, true, s.SFCX); err != nil {
		return nil, err
	}
	if _, err := disp.Register("pci-config", pciConfigBase, pciConfigBase+pciConfigSize-1, true, s.Bridge); err != nil {
		return nil, err
	}

	s.Bus = bus.New(r, disp, resv, log)

	ip := interp.New(s.Bus, log)
	jc := jit.NewCache()

	for c := 0; c < CoreCount; c++ {
		s.CoreStates[c] = ppuregs.NewPPUState(c)
	}

	for id := 0; id < ThreadCount; id++ {
		state := s.CoreStates[coreOf(id)]
		regs := ppuregs.NewThreadRegisters(id, cfg.ResetPC)
		m := mmu.New(id, state, r, resv, gen)
		dec := timebase.NewDecrementer()
		s.Decrementers[id] = dec
		s.Threads[id] = ppu.New(regs, m, s.Bus, ip, jc, ic, tb, dec, sig, log)
	}

	s.log.Info("soc initialized", "ram_bytes", r.Size(), "threads", ThreadCount)
	return s, nil
}

// Run starts every hardware thread and blocks until ctx is cancelled or any
// thread returns a non-nil error, at which point the rest are cancelled too
// (errgroup's standard fan-out/fan-in, replacing CoprocWorker's manual
// stop-channel broadcast).
func (s *SOC) Run(ctx context.Context) error {
	s.Signals.Resume()
	g, gctx := errgroup.WithContext(ctx)
	for i := range s.Threads {
		th := s.Threads[i]
		g.Go(func() error { return th.Run(gctx) })
	}
	return g.Wait()
}

// Halt stops every thread by clearing the shared running flag (spec.md
// section 5's "Shutdown" path).
func (s *SOC) Halt() { s.Signals.Stop() }
