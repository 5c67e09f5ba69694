package interp

import (
	"log/slog"

	"github.com/xenoncore/xenoncore/internal/bus"
	"github.com/xenoncore/xenoncore/internal/metrics"
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
	"github.com/xenoncore/xenoncore/internal/xlog"
)

// Exception is the explicit "ok | raise(exception)" result every handler
// returns, replacing the source's exception-based control flow per spec.md
// section 9's design note. The PPU loop is the only place that acts on a
// non-nil Exception.
type Exception struct {
	Kind  ppuregs.Exception
	DSISR uint32
}

func fromFault(f *mmu.Fault) *Exception {
	if f == nil {
		return nil
	}
	return &Exception{Kind: f.Kind, DSISR: f.DSISR}
}

// Interpreter executes one decoded instruction against a thread's
// registers, routing memory through the shared Bus and thread-private MMU.
type Interpreter struct {
	Bus     *bus.Bus
	Metrics *metrics.Recoverable

	log *slog.Logger
}

// New returns an interpreter bound to the shared memory bus. log may be
// nil, in which case unimplemented-opcode warnings are discarded.
func New(b *bus.Bus, log *slog.Logger) *Interpreter {
	if log == nil {
		log = xlog.Discard()
	}
	return &Interpreter{Bus: b, Metrics: &metrics.Recoverable{}, log: log}
}

// Step decodes and executes the single instruction word instr, observed at
// address t.CIA, against thread t using its per-thread MMU m. It mutates
// t.NIA for the normal fall-through case (spec.md section 3: "NIA is
// speculatively CIA+4 before execution and mutated by branches") and
// returns a non-nil Exception if the instruction faults or traps.
func (ip *Interpreter) Step(m *mmu.MMU, t *ppuregs.PPUThreadRegisters, instr uint32) *Exception {
	t.NIA = t.CIA + 4

	op := opcode(instr)
	switch op {
	case 14, 15: // addi, addis
		return ip.execALUImmediate(t, instr, op)
	case 7: // mulli
		return ip.execMulli(t, instr)
	case 8: // subfic
		return ip.execSubfic(t, instr)
	case 11, 10: // cmpi, cmpli
		return ip.execCompareImmediate(t, instr, op)
	case 28, 29: // andi., andis.
		return ip.execAndImmediate(t, instr, op)
	case 24, 25, 26, 27: // ori, oris, xori, xoris
		return ip.execOrXorImmediate(t, instr, op)
	case 20: // rlwimi
		return ip.execRotateMaskImmediate(t, instr, true)
	case 21: // rlwinm
		return ip.execRotateMaskImmediate(t, instr, false)
	case 31:
		return ip.execExtended(m, t, instr)
	case 32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47:
		return ip.execLoadStoreImmediate(m, t, instr, op)
	case 18: // b, ba, bl, bla
		return ip.execBranch(t, instr)
	case 16: // bc, bca, bcl, bcla
		return ip.execBranchConditional(t, instr)
	case 19:
		return ip.execBranchConditionalLinkage(t, instr)
	case 17: // sc
		if instr&0x2 != 0 {
			return &Exception{Kind: ppuregs.ExcSystemCall}
		}
	case 59, 63:
		return ip.execFPU(t, instr, op)
	}
	// Unimplemented opcode: logged at warning level, counted, and treated
	// as a no-op per spec.md section 7's recoverable-error policy.
	ip.Metrics.IncUnimplementedOpcode()
	ip.log.Warn("unimplemented opcode", "cia", t.CIA, "instr", instr, "opcode", op)
	return nil
}
