package interp

import "github.com/xenoncore/xenoncore/internal/ppuregs"

// setCR writes a 4-bit {LT,GT,EQ,SO} field into CR, following spec.md
// section 4.5's "CR update sequence": compare, produce the 4-bit field
// based on MSR.SF (32 vs 64-bit compare), clear the target field, shift and
// OR. The JIT's emitted compare sequence must agree bit-for-bit with this
// function (spec.md section 8's interpreter/JIT equivalence property).
func setCR(cr *uint32, field uint32, lt, gt, eq bool, so bool) {
	var v uint32
	if lt {
		v |= 1 << (3 - ppuregs.CR_BIT_LT)
	}
	if gt {
		v |= 1 << (3 - ppuregs.CR_BIT_GT)
	}
	if eq {
		v |= 1 << (3 - ppuregs.CR_BIT_EQ)
	}
	if so {
		v |= 1 << (3 - ppuregs.CR_BIT_SO)
	}
	shift := (7 - field) * 4
	mask := uint32(0xF) << shift
	*cr = (*cr &^ mask) | (v << shift)
}

// compareSigned compares lhs/rhs as signed values of the given width (32 or
// 64-bit, selected by MSR.SF for record-form arithmetic, or by the L bit
// for explicit cmp instructions) and writes the result into CR field 0 (for
// Rc-bit instructions) or the given field (for cmpi/cmpw).
func compareSigned64(cr *uint32, field uint32, lhs, rhs int64, so bool) {
	setCR(cr, field, lhs < rhs, lhs > rhs, lhs == rhs, so)
}

func compareSigned32(cr *uint32, field uint32, lhs, rhs int32, so bool) {
	setCR(cr, field, lhs < rhs, lhs > rhs, lhs == rhs, so)
}

func compareUnsigned64(cr *uint32, field uint32, lhs, rhs uint64, so bool) {
	setCR(cr, field, lhs < rhs, lhs > rhs, lhs == rhs, so)
}

func compareUnsigned32(cr *uint32, field uint32, lhs, rhs uint32, so bool) {
	setCR(cr, field, lhs < rhs, lhs > rhs, lhs == rhs, so)
}

// xerSO reports the XER Summary Overflow bit, folded into CR0 per spec.md
// section 4.4: "Arithmetic opcodes that carry the Rc bit compare the result
// against zero and write CR0's LT/GT/EQ bits plus XER.SO into SO."
func xerSO(xer uint64) bool { return xerBit(xer, ppuregs.XER_SO) }
func xerOV(xer uint64) bool { return xerBit(xer, ppuregs.XER_OV) }
func xerCA(xer uint64) bool { return xerBit(xer, ppuregs.XER_CA) }

func xerBit(xer uint64, bitFromMSB int) bool {
	return xer&(1<<(31-uint(bitFromMSB))) != 0
}

func setXERBit(xer *uint64, bitFromMSB int, v bool) {
	mask := uint64(1) << (31 - uint(bitFromMSB))
	if v {
		*xer |= mask
	} else {
		*xer &^= mask
	}
}

// setOverflow updates XER.OV and XER.SO for an OE-tagged arithmetic opcode
// on signed overflow (spec.md section 4.4).
func setOverflow(xer *uint64, overflowed bool) {
	setXERBit(xer, ppuregs.XER_OV, overflowed)
	if overflowed {
		setXERBit(xer, ppuregs.XER_SO, true)
	}
}

// recordCR0 applies the Rc-bit CR0 update for an arithmetic result,
// respecting MSR.SF for 32 vs 64-bit sign comparison.
func recordCR0(t *ppuregs.PPUThreadRegisters, result uint64) {
	so := xerSO(t.SPR.XER)
	if ppuregs.MSRTest(t.MSR, ppuregs.MSR_SF) {
		compareSigned64(&t.CR, 0, int64(result), 0, so)
	} else {
		compareSigned32(&t.CR, 0, int32(uint32(result)), 0, so)
	}
}
