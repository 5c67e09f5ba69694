package interp

import "github.com/xenoncore/xenoncore/internal/ppuregs"

// sprNumber decodes the split SPR field used by mfspr/mtspr: the instruction
// packs it as two 5-bit halves with the low bits stored first (spec.md
// section 4.6's SPR access note).
func sprNumber(instr uint32) uint32 {
	return (fieldRB(instr) << 5) | fieldRA(instr)
}

const (
	sprXER  = 1
	sprLR   = 8
	sprCTR  = 9
	sprDSISR = 18
	sprDAR  = 19
	sprDEC  = 22
	sprSDR1 = 25
	sprSRR0 = 26
	sprSRR1 = 27
	sprPIR  = 1023
	sprTBL  = 268
	sprTBU  = 269
)

// execMfspr implements mfspr for the SPR subset spec.md section 3 models
// (SPRBlock); unimplemented SPRs read as zero per spec.md section 7's
// unimplemented-opcode policy.
func (ip *Interpreter) execMfspr(t *ppuregs.PPUThreadRegisters, instr uint32) *Exception {
	rd := fieldRD(instr)
	switch sprNumber(instr) {
	case sprXER:
		t.GPR[rd] = t.SPR.XER
	case sprLR:
		t.GPR[rd] = t.SPR.LR
	case sprCTR:
		t.GPR[rd] = t.SPR.CTR
	case sprDSISR:
		t.GPR[rd] = uint64(t.SPR.DSISR)
	case sprDAR:
		t.GPR[rd] = t.SPR.DAR
	case sprDEC:
		t.GPR[rd] = uint64(t.SPR.DEC)
	case sprSDR1:
		t.GPR[rd] = t.SPR.SDR1
	case sprSRR0:
		t.GPR[rd] = t.SPR.SRR0
	case sprSRR1:
		t.GPR[rd] = t.SPR.SRR1
	case sprPIR:
		t.GPR[rd] = uint64(t.SPR.PIR)
	case sprTBL:
		t.GPR[rd] = uint64(t.SPR.TBL)
	case sprTBU:
		t.GPR[rd] = uint64(t.SPR.TBU)
	default:
		t.GPR[rd] = 0
	}
	return nil
}

func (ip *Interpreter) execMtspr(t *ppuregs.PPUThreadRegisters, instr uint32) *Exception {
	rs := fieldRS(instr)
	v := t.GPR[rs]
	switch sprNumber(instr) {
	case sprXER:
		t.SPR.XER = v
	case sprLR:
		t.SPR.LR = v
	case sprCTR:
		t.SPR.CTR = v
	case sprDSISR:
		t.SPR.DSISR = uint32(v)
	case sprDAR:
		t.SPR.DAR = v
	case sprDEC:
		t.SPR.DEC = uint32(v)
	case sprSDR1:
		t.SPR.SDR1 = v
	case sprSRR0:
		t.SPR.SRR0 = v
	case sprSRR1:
		t.SPR.SRR1 = v
	}
	return nil
}
