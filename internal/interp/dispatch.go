package interp

import (
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
)

// execExtended dispatches opcode 31's X/XO-form secondary opcodes: register
// arithmetic, logical ops, compares, indexed load/store, and the system
// register/sync instructions (spec.md section 4.4's "extended opcode
// table" and section 4.6's system-register access).
func (ip *Interpreter) execExtended(m *mmu.MMU, t *ppuregs.PPUThreadRegisters, instr uint32) *Exception {
	if exc, handled := ip.execIndexedLoadStore(m, t, instr, xoSecondary(instr)); handled {
		return exc
	}

	rd, ra, rb := fieldRD(instr), fieldRA(instr), fieldRB(instr)
	rc := rcBit(instr)
	oe := oeBit(instr)

	// XO-form arithmetic opcodes carry an OE bit at bit21, so their actual
	// 9-bit secondary opcode (xSecondary, which drops that bit) is the
	// dispatch key; X-form opcodes below have no OE bit and use the full
	// 10-bit field (xoSecondary) instead.
	switch xSecondary(instr) {
	case 266: // add/addo
		ip.execAdd(t, rd, ra, rb, oe, rc)
		return nil
	case 40: // subf/subfo
		ip.execSubf(t, rd, ra, rb, oe, rc)
		return nil
	case 235: // mullw/mullwo
		result := uint64(int64(int32(t.GPR[ra])) * int64(int32(t.GPR[rb])))
		t.GPR[rd] = result
		if oe {
			hi := int64(int32(t.GPR[ra])) * int64(int32(t.GPR[rb]))
			setOverflow(&t.SPR.XER, hi != int64(int32(uint32(hi))))
		}
		if rc {
			recordCR0(t, result)
		}
		return nil
	case 75: // mulhw
		result := (int64(int32(t.GPR[ra])) * int64(int32(t.GPR[rb]))) >> 32
		t.GPR[rd] = uint64(uint32(result))
		if rc {
			recordCR0(t, t.GPR[rd])
		}
		return nil
	case 491: // divw/divwo
		a, b := int32(t.GPR[ra]), int32(t.GPR[rb])
		var result int32
		overflow := b == 0 || (a == -2147483648 && b == -1)
		if !overflow {
			result = a / b
		}
		t.GPR[rd] = uint64(uint32(result))
		if oe {
			setOverflow(&t.SPR.XER, overflow)
		}
		if rc {
			recordCR0(t, t.GPR[rd])
		}
		return nil
	case 459: // divwu/divwuo
		a, b := uint32(t.GPR[ra]), uint32(t.GPR[rb])
		var result uint32
		overflow := b == 0
		if !overflow {
			result = a / b
		}
		t.GPR[rd] = uint64(result)
		if oe {
			setOverflow(&t.SPR.XER, overflow)
		}
		if rc {
			recordCR0(t, t.GPR[rd])
		}
		return nil
	case 104: // neg/nego
		result, _, overflow := addWithCarry(^t.GPR[ra], 1, false)
		t.GPR[rd] = result
		if oe {
			setOverflow(&t.SPR.XER, overflow)
		}
		if rc {
			recordCR0(t, result)
		}
		return nil
	}

	switch xoSecondary(instr) {
	case 28: // and
		ip.execLogical(t, rd, ra, rb, rc, func(a, b uint64) uint64 { return a & b })
		return nil
	case 444: // or (mr is "or rX,rX,rX")
		ip.execLogical(t, rd, ra, rb, rc, func(a, b uint64) uint64 { return a | b })
		return nil
	case 316: // xor
		ip.execLogical(t, rd, ra, rb, rc, func(a, b uint64) uint64 { return a ^ b })
		return nil
	case 476: // nand
		ip.execLogical(t, rd, ra, rb, rc, func(a, b uint64) uint64 { return ^(a & b) })
		return nil
	case 124: // nor
		ip.execLogical(t, rd, ra, rb, rc, func(a, b uint64) uint64 { return ^(a | b) })
		return nil
	case 60: // andc
		ip.execLogical(t, rd, ra, rb, rc, func(a, b uint64) uint64 { return a &^ b })
		return nil
	case 412: // orc
		ip.execLogical(t, rd, ra, rb, rc, func(a, b uint64) uint64 { return a | ^b })
		return nil
	case 284: // eqv
		ip.execLogical(t, rd, ra, rb, rc, func(a, b uint64) uint64 { return ^(a ^ b) })
		return nil
	case 954: // extsb
		result := uint64(int64(int8(t.GPR[rd])))
		t.GPR[ra] = result
		if rc {
			recordCR0(t, result)
		}
		return nil
	case 922: // extsh
		result := uint64(int64(int16(t.GPR[rd])))
		t.GPR[ra] = result
		if rc {
			recordCR0(t, result)
		}
		return nil
	case 986: // extsw
		result := uint64(int64(int32(t.GPR[rd])))
		t.GPR[ra] = result
		if rc {
			recordCR0(t, result)
		}
		return nil
	case 26: // cntlzw
		n := uint32(0)
		v := uint32(t.GPR[rd])
		for n < 32 && v&(1<<(31-n)) == 0 {
			n++
		}
		t.GPR[ra] = uint64(n)
		if rc {
			recordCR0(t, t.GPR[ra])
		}
		return nil
	case 24: // slw
		sh := t.GPR[rb] & 0x3F
		var result uint32
		if sh < 32 {
			result = uint32(t.GPR[rd]) << sh
		}
		t.GPR[ra] = uint64(result)
		if rc {
			recordCR0(t, t.GPR[ra])
		}
		return nil
	case 536: // srw
		sh := t.GPR[rb] & 0x3F
		var result uint32
		if sh < 32 {
			result = uint32(t.GPR[rd]) >> sh
		}
		t.GPR[ra] = uint64(result)
		if rc {
			recordCR0(t, t.GPR[ra])
		}
		return nil
	case 792: // sraw
		sh := t.GPR[rb] & 0x3F
		v := int32(t.GPR[rd])
		var result int32
		var carry bool
		if sh >= 32 {
			if v < 0 {
				result = -1
				carry = true
			}
		} else {
			result = v >> sh
			carry = v < 0 && (uint32(v)<<(32-sh)) != 0
		}
		t.GPR[ra] = uint64(uint32(result))
		setXERBit(&t.SPR.XER, ppuregs.XER_CA, carry)
		if rc {
			recordCR0(t, t.GPR[ra])
		}
		return nil
	case 0: // cmp
		field := fieldCRFD(instr)
		so := xerSO(t.SPR.XER)
		if fieldL(instr) {
			compareSigned64(&t.CR, field, int64(t.GPR[ra]), int64(t.GPR[rb]), so)
		} else {
			compareSigned32(&t.CR, field, int32(uint32(t.GPR[ra])), int32(uint32(t.GPR[rb])), so)
		}
		return nil
	case 32: // cmpl
		field := fieldCRFD(instr)
		so := xerSO(t.SPR.XER)
		if fieldL(instr) {
			compareUnsigned64(&t.CR, field, t.GPR[ra], t.GPR[rb], so)
		} else {
			compareUnsigned32(&t.CR, field, uint32(t.GPR[ra]), uint32(t.GPR[rb]), so)
		}
		return nil
	case 339: // mfspr
		return ip.execMfspr(t, instr)
	case 467: // mtspr
		return ip.execMtspr(t, instr)
	case 19: // mfcr
		t.GPR[rd] = uint64(t.CR)
		return nil
	case 144: // mtcrf
		mask := mtcrfMask(instr)
		t.CR = (t.CR &^ mask) | (uint32(t.GPR[rd]) & mask)
		return nil
	case 146: // mtmsr
		t.MSR = (t.MSR &^ 0xFFFFFFFF) | (t.GPR[rd] & 0xFFFFFFFF)
		return nil
	case 178: // mtmsrd
		t.MSR = t.GPR[rd]
		return nil
	case 83: // mfmsr
		t.GPR[rd] = t.MSR
		return nil
	case 598: // sync
		return nil
	case 854: // eieio
		return nil
	case 306: // tlbie: executes as a no-op; no TLB entry is invalidated and Generation is not bumped
		return nil
	case 4: // tw: trap word
		return ip.execTrap(t, instr, false)
	case 68: // td
		return ip.execTrap(t, instr, true)
	}
	return nil
}

// mtcrfMask expands mtcrf's 8-bit FXM field into the corresponding 32-bit CR
// field mask.
func mtcrfMask(instr uint32) uint32 {
	fxm := (instr >> 12) & 0xFF
	var mask uint32
	for i := uint32(0); i < 8; i++ {
		if fxm&(1<<(7-i)) != 0 {
			mask |= 0xF << ((7 - i) * 4)
		}
	}
	return mask
}

// execTrap implements tw/td: compare RA/RB per the TO field and raise a
// program exception if any selected condition matches (spec.md section
// 4.6's synchronous trap handling).
func (ip *Interpreter) execTrap(t *ppuregs.PPUThreadRegisters, instr uint32, is64 bool) *Exception {
	to := fieldRD(instr) // TO field occupies the same bits as RD
	ra, rb := fieldRA(instr), fieldRB(instr)
	var a, b int64
	if is64 {
		a, b = int64(t.GPR[ra]), int64(t.GPR[rb])
	} else {
		a, b = int64(int32(uint32(t.GPR[ra]))), int64(int32(uint32(t.GPR[rb])))
	}
	fire := (to&0x10 != 0 && a < b) ||
		(to&0x08 != 0 && a > b) ||
		(to&0x04 != 0 && a == b) ||
		(to&0x02 != 0 && uint64(a) < uint64(b)) ||
		(to&0x01 != 0 && uint64(a) > uint64(b))
	if fire {
		return &Exception{Kind: ppuregs.ExcProgram}
	}
	return nil
}
