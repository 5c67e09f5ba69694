// Package ppu runs one hardware thread's fetch-execute loop (spec.md
// section 4.7): check pending exceptions in priority order, fetch and
// translate the next instruction, interpret or dispatch to the JIT, advance
// the timebase and decrementer, and honor pause/nap/halt suspension.
//
// The overall "for running { check state, step, advance timers }" shape
// follows cpu_ie64.go's CPU64.Execute loop, generalized from one CPU core
// polling its own atomic state to six threads each polling a shared
// signals.Signals and a per-thread iic.Controller queue.
package ppu

import (
	"context"
	"log/slog"

	"github.com/xenoncore/xenoncore/internal/bus"
	"github.com/xenoncore/xenoncore/internal/iic"
	"github.com/xenoncore/xenoncore/internal/interp"
	"github.com/xenoncore/xenoncore/internal/jit"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
	"github.com/xenoncore/xenoncore/internal/signals"
	"github.com/xenoncore/xenoncore/internal/timebase"
)

// Thread owns one hardware thread's architectural state and the shared
// resources it executes against.
type Thread struct {
	Regs *ppuregs.PPUThreadRegisters
	MMU  *mmu.MMU

	bus     *bus.Bus
	interp  *interp.Interpreter
	jit     *jit.Cache
	iic     *iic.Controller
	tb      *timebase.Timebase
	dec     *timebase.Decrementer
	signals *signals.Signals
	log     *slog.Logger

	// hitCounts counts executions at a given CIA; the block is handed to
	// the JIT when the count reaches 2 (spec.md section 4.5: "compiled on
	// its second execution").
	hitCounts map[uint64]int
}

// New builds one hardware thread runner bound to shared machine state.
func New(regs *ppuregs.PPUThreadRegisters, m *mmu.MMU, b *bus.Bus, ip *interp.Interpreter, jc *jit.Cache, ic *iic.Controller, tb *timebase.Timebase, dec *timebase.Decrementer, sig *signals.Signals, log *slog.Logger) *Thread {
	return &Thread{
		Regs: regs, MMU: m, bus: b, interp: ip, jit: jc, iic: ic, tb: tb, dec: dec,
		signals: sig, log: log, hitCounts: make(map[uint64]int),
	}
}

// Run drives the thread until ctx is cancelled or signals.Running() goes
// false (spec.md section 5, "Cancellation / timeouts").
func (th *Thread) Run(ctx context.Context) error {
	for th.signals.Running() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if th.signals.Paused() {
			continue
		}

		if th.Regs.Mode == ppuregs.ModeHalted {
			return nil
		}
		if th.Regs.Mode == ppuregs.ModeNapping {
			select {
			case <-th.iic.WaitChannel(th.Regs.ThreadID):
				th.Regs.Mode = ppuregs.ModeRunning
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if th.checkAndDeliverPendingException() {
			continue
		}

		th.step()
	}
	return nil
}

// step fetches, decodes and executes exactly one instruction, preferring a
// cached JIT block over the interpreter once a PC has been seen twice
// (spec.md section 4.5).
func (th *Thread) step() {
	cia := th.Regs.CIA
	gen := th.MMU.GenerationValue()
	if blk, ok := th.jit.Lookup(cia, gen); ok {
		n := blk.Run(th.Regs, th.MMU, th.bus)
		th.tb.Advance(uint64(n))
		if th.dec.AdvanceBy(uint64(n)) && ppuregs.MSRTest(th.Regs.MSR, ppuregs.MSR_EE) {
			th.Regs.PendingExceptions[ppuregs.ExcDecrementer] = true
		}
		return
	}

	instr, fault := th.bus.FetchInstruction(th.MMU, th.Regs, cia)
	if fault != nil {
		th.deliverFault(fault)
		return
	}

	th.hitCounts[cia]++
	if th.hitCounts[cia] == 2 {
		if _, err := th.jit.Compile(cia, th.bus, th.MMU, th.Regs, gen); err != nil {
			th.log.Debug("jit compile skipped", "cia", cia, "err", err)
		}
	}

	exc := th.interp.Step(th.MMU, th.Regs, instr)
	if exc != nil {
		th.deliverException(exc.Kind, exc.DSISR)
		return
	}
	th.Regs.CIA = th.Regs.NIA
	th.advanceTimers()
}

func (th *Thread) deliverFault(f *mmu.Fault) {
	th.Regs.SPR.DAR = f.EffectiveAddr
	th.Regs.SPR.DSISR = f.DSISR
	th.deliverException(f.Kind, f.DSISR)
}

func (th *Thread) deliverException(kind ppuregs.Exception, dsisr uint32) {
	th.Regs.SPR.DSISR = dsisr
	th.Regs.SPR.SRR0 = th.Regs.CIA
	th.Regs.SPR.SRR1 = th.Regs.MSR
	th.Regs.MSR &^= ppuregs.MSR_MASK_IR | ppuregs.MSR_MASK_DR | ppuregs.MSR_MASK_EE
	th.Regs.CIA = ppuregs.Vector[kind]
	th.Regs.NIA = th.Regs.CIA + 4
}

// checkAndDeliverPendingException implements spec.md section 4.7 step 2:
// an enabled, higher-priority-than-current pending interrupt takes the
// thread to its vector instead of fetching the next instruction. The
// pending set is resolved through ppuregs.HighestPriority so the fixed
// "machine check > system reset > external > decrementer > ..." order
// (spec.md section 4.7) holds even when more than one source is pending at
// the same boundary.
func (th *Thread) checkAndDeliverPendingException() bool {
	if !ppuregs.MSRTest(th.Regs.MSR, ppuregs.MSR_EE) {
		return false
	}
	pending := make(map[ppuregs.Exception]bool, len(th.Regs.PendingExceptions)+1)
	for kind, set := range th.Regs.PendingExceptions {
		if set {
			pending[kind] = true
		}
	}
	if th.iic.Pending(th.Regs.ThreadID) {
		pending[ppuregs.ExcExternal] = true
	}

	kind := ppuregs.HighestPriority(pending)
	if kind == ppuregs.ExcNone {
		return false
	}
	if kind == ppuregs.ExcExternal {
		if _, ok := th.iic.Ack(th.Regs.ThreadID); !ok {
			return false
		}
	} else {
		delete(th.Regs.PendingExceptions, kind)
	}
	th.deliverException(kind, 0)
	return true
}

func (th *Thread) advanceTimers() {
	th.tb.Tick()
	if th.dec.Tick() && ppuregs.MSRTest(th.Regs.MSR, ppuregs.MSR_EE) {
		th.Regs.PendingExceptions[ppuregs.ExcDecrementer] = true
	}
}
