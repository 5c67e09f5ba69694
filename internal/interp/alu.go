package interp

import "github.com/xenoncore/xenoncore/internal/ppuregs"

// execALUImmediate handles addi/addis (opcodes 14/15). addi with RA=0 is the
// li/lis pseudo-op; PowerPC defines RA=0 as reading the constant zero rather
// than GPR0 for these forms (spec.md section 4.4's "addi/addis: RA=0 means
// literal zero, not GPR0").
func (ip *Interpreter) execALUImmediate(t *ppuregs.PPUThreadRegisters, instr uint32, op uint32) *Exception {
	rd := fieldRD(instr)
	ra := fieldRA(instr)
	var base int64
	if ra != 0 {
		base = int64(t.GPR[ra])
	}
	imm := simm16(instr)
	if op == 15 {
		imm <<= 16
	}
	t.GPR[rd] = uint64(base + imm)
	return nil
}

func (ip *Interpreter) execMulli(t *ppuregs.PPUThreadRegisters, instr uint32) *Exception {
	rd, ra := fieldRD(instr), fieldRA(instr)
	t.GPR[rd] = uint64(int64(t.GPR[ra]) * simm16(instr))
	return nil
}

func (ip *Interpreter) execSubfic(t *ppuregs.PPUThreadRegisters, instr uint32) *Exception {
	rd, ra := fieldRD(instr), fieldRA(instr)
	imm := simm16(instr)
	result := imm - int64(t.GPR[ra])
	t.GPR[rd] = uint64(result)
	setXERBit(&t.SPR.XER, ppuregs.XER_CA, uint64(imm) >= t.GPR[ra])
	return nil
}

// execCompareImmediate handles cmpi (op 11) and cmpli (op 10). The L bit in
// the CRFD field selects 64 vs 32-bit comparison width (spec.md section
// 4.4's compare family).
func (ip *Interpreter) execCompareImmediate(t *ppuregs.PPUThreadRegisters, instr uint32, op uint32) *Exception {
	field := fieldCRFD(instr)
	ra := fieldRA(instr)
	is64 := fieldL(instr)
	so := xerSO(t.SPR.XER)
	if op == 11 { // cmpi: signed
		imm := simm16(instr)
		if is64 {
			compareSigned64(&t.CR, field, int64(t.GPR[ra]), imm, so)
		} else {
			compareSigned32(&t.CR, field, int32(uint32(t.GPR[ra])), int32(imm), so)
		}
	} else { // cmpli: unsigned
		imm := uimm16(instr)
		if is64 {
			compareUnsigned64(&t.CR, field, t.GPR[ra], imm, so)
		} else {
			compareUnsigned32(&t.CR, field, uint32(t.GPR[ra]), uint32(imm), so)
		}
	}
	return nil
}

func (ip *Interpreter) execAndImmediate(t *ppuregs.PPUThreadRegisters, instr uint32, op uint32) *Exception {
	rs, ra := fieldRS(instr), fieldRA(instr)
	imm := uimm16(instr)
	if op == 29 {
		imm <<= 16
	}
	result := t.GPR[rs] & imm
	t.GPR[ra] = result
	recordCR0(t, result) // andi./andis. always set CR0
	return nil
}

// execOrXorImmediate handles ori/oris/xori/xoris (opcodes 24-27), none of
// which touch CR (spec.md section 4.4: unlike andi., these are non-record
// forms).
func (ip *Interpreter) execOrXorImmediate(t *ppuregs.PPUThreadRegisters, instr uint32, op uint32) *Exception {
	rs, ra := fieldRS(instr), fieldRA(instr)
	imm := uimm16(instr)
	if op == 25 || op == 27 {
		imm <<= 16
	}
	switch op {
	case 24, 25:
		t.GPR[ra] = t.GPR[rs] | imm
	case 26, 27:
		t.GPR[ra] = t.GPR[rs] ^ imm
	}
	return nil
}

// execRotateMaskImmediate handles rlwinm (insertForm=false) and rlwimi
// (insertForm=true), both rotate-and-mask forms (spec.md section 4.4's
// rotate/mask family and section 8's "rotate-mask correctness" property).
func (ip *Interpreter) execRotateMaskImmediate(t *ppuregs.PPUThreadRegisters, instr uint32, insertForm bool) *Exception {
	rs, ra := fieldRS(instr), fieldRA(instr)
	sh := shField(instr)
	mb, me := mbME(instr)
	rotated := rotl32(uint32(t.GPR[rs]), sh)
	mask := rotateMask(mb, me)
	var result uint32
	if insertForm {
		result = (rotated & mask) | (uint32(t.GPR[ra]) &^ mask)
	} else {
		result = rotated & mask
	}
	t.GPR[ra] = uint64(result)
	if rcBit(instr) {
		recordCR0(t, uint64(result))
	}
	return nil
}

// addWithCarry implements PowerPC add-with-carry-and-overflow semantics
// shared by add/subf/neg and their OE/Rc variants (spec.md section
// 4.4's arithmetic family).
func addWithCarry(a, b uint64, carryIn bool) (result uint64, carryOut, overflow bool) {
	ci := uint64(0)
	if carryIn {
		ci = 1
	}
	sum := a + b + ci
	carryOut = sum < a || (ci == 1 && sum == a)
	signA, signB, signR := a>>63, b>>63, sum>>63
	overflow = signA == signB && signR != signA
	return sum, carryOut, overflow
}

func (ip *Interpreter) execAdd(t *ppuregs.PPUThreadRegisters, rd, ra, rb uint32, oe, rc bool) {
	result, _, overflow := addWithCarry(t.GPR[ra], t.GPR[rb], false)
	t.GPR[rd] = result
	if oe {
		setOverflow(&t.SPR.XER, overflow)
	}
	if rc {
		recordCR0(t, result)
	}
}

func (ip *Interpreter) execSubf(t *ppuregs.PPUThreadRegisters, rd, ra, rb uint32, oe, rc bool) {
	result, _, overflow := addWithCarry(^t.GPR[ra], t.GPR[rb], true)
	t.GPR[rd] = result
	if oe {
		setOverflow(&t.SPR.XER, overflow)
	}
	if rc {
		recordCR0(t, result)
	}
}

func (ip *Interpreter) execLogical(t *ppuregs.PPUThreadRegisters, rs, ra, rb uint32, rc bool, fn func(a, b uint64) uint64) {
	result := fn(t.GPR[rs], t.GPR[rb])
	t.GPR[ra] = result
	if rc {
		recordCR0(t, result)
	}
}
