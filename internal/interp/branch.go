package interp

import "github.com/xenoncore/xenoncore/internal/ppuregs"

// crBit reads CR bit n (0 = MSB, PowerPC numbering) as used by bc's BI field.
func crBit(cr uint32, n uint32) bool {
	return cr&(1<<(31-n)) != 0
}

// execBranch handles unconditional b/ba/bl/bla (opcode 18). AA selects
// absolute vs CIA-relative target; LK writes the return address into LR
// (spec.md section 4.4's branch family).
func (ip *Interpreter) execBranch(t *ppuregs.PPUThreadRegisters, instr uint32) *Exception {
	li := int64(liField(instr))
	if aaBit(instr) {
		t.NIA = uint64(li)
	} else {
		t.NIA = t.CIA + uint64(li)
	}
	if lkBit(instr) {
		t.SPR.LR = t.CIA + 4
	}
	return nil
}

// decrementCTRAndTest applies the BO-field semantics to the branch decision,
// following the PowerPC "decrement CTR unless BO says not to, then combine
// the CTR and CR conditions" rule (spec.md section 4.4).
func decrementCTRAndTest(t *ppuregs.PPUThreadRegisters, bo, bi uint32) bool {
	ctrOK := true
	if bo&0x04 == 0 { // BO[2]=0: CTR is decremented and tested
		t.SPR.CTR--
		if bo&0x02 == 0 {
			ctrOK = t.SPR.CTR != 0
		} else {
			ctrOK = t.SPR.CTR == 0
		}
	}
	condOK := true
	if bo&0x10 == 0 { // BO[0]=0: condition is tested
		bit := crBit(t.CR, bi)
		if bo&0x08 == 0 {
			condOK = !bit
		} else {
			condOK = bit
		}
	}
	return ctrOK && condOK
}

// execBranchConditional handles bc/bca/bcl/bcla (opcode 16).
func (ip *Interpreter) execBranchConditional(t *ppuregs.PPUThreadRegisters, instr uint32) *Exception {
	bo, bi := boField(instr), biField(instr)
	take := decrementCTRAndTest(t, bo, bi)
	if lkBit(instr) {
		t.SPR.LR = t.CIA + 4
	}
	if !take {
		return nil
	}
	bd := int64(bdField(instr))
	if aaBit(instr) {
		t.NIA = uint64(bd)
	} else {
		t.NIA = t.CIA + uint64(bd)
	}
	return nil
}

// execBranchConditionalLinkage handles opcode 19's bclr/bcctr/isync/rfid
// register-indirect branch forms, keyed by the XO secondary field.
func (ip *Interpreter) execBranchConditionalLinkage(t *ppuregs.PPUThreadRegisters, instr uint32) *Exception {
	sec := xoSecondary(instr)
	switch sec {
	case 16: // bclr/bclrl
		bo, bi := boField(instr), biField(instr)
		take := decrementCTRAndTest(t, bo, bi)
		target := t.SPR.LR
		if lkBit(instr) {
			t.SPR.LR = t.CIA + 4
		}
		if take {
			t.NIA = target &^ 0x3
		}
		return nil
	case 528: // bcctr/bcctrl
		bo, bi := boField(instr), biField(instr)
		condOK := true
		if bo&0x10 == 0 {
			bit := crBit(t.CR, bi)
			if bo&0x08 == 0 {
				condOK = !bit
			} else {
				condOK = bit
			}
		}
		target := t.SPR.CTR
		if lkBit(instr) {
			t.SPR.LR = t.CIA + 4
		}
		if condOK {
			t.NIA = target &^ 0x3
		}
		return nil
	case 18: // rfid: restore MSR/NIA from SRR1/SRR0 (spec.md section 4.7's exception-return path)
		t.MSR = t.SPR.SRR1
		t.NIA = t.SPR.SRR0
		return nil
	case 150: // isync: serializing no-op in this model (spec.md section 5: ordering barriers)
		return nil
	}
	return nil
}
