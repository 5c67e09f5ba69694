package interp

import (
	"github.com/xenoncore/xenoncore/internal/mmu"
	"github.com/xenoncore/xenoncore/internal/ppuregs"
)

// execLoadStoreImmediate handles the D-form load/store opcodes (32-47):
// lwz/lwzu/lbz/lbzu/stw/stwu/stb/stbu/lhz/lhzu/lha/lhau/sth/sthu/lmw/stmw
// (spec.md section 4.4's load-store family). RA=0 means literal zero in the
// effective-address calculation, same rule as addi.
func (ip *Interpreter) execLoadStoreImmediate(m *mmu.MMU, t *ppuregs.PPUThreadRegisters, instr uint32, op uint32) *Exception {
	rd := fieldRD(instr)
	ra := fieldRA(instr)
	var base uint64
	if ra != 0 {
		base = t.GPR[ra]
	}
	ea := base + uint64(simm16(instr))

	update := func(newEA uint64) {
		if ra != 0 {
			t.GPR[ra] = newEA
		}
	}

	switch op {
	case 32, 33: // lwz, lwzu
		v, f := ip.Bus.LoadSize(m, t, ea, 4)
		if f != nil {
			return fromFault(f)
		}
		t.GPR[rd] = v
		if op == 33 {
			update(ea)
		}
	case 34, 35: // lbz, lbzu
		v, f := ip.Bus.LoadSize(m, t, ea, 1)
		if f != nil {
			return fromFault(f)
		}
		t.GPR[rd] = v
		if op == 35 {
			update(ea)
		}
	case 36, 37: // stw, stwu
		if f := ip.Bus.StoreSize(m, t, ea, t.GPR[rd], 4); f != nil {
			return fromFault(f)
		}
		if op == 37 {
			update(ea)
		}
	case 38, 39: // stb, stbu
		if f := ip.Bus.StoreSize(m, t, ea, t.GPR[rd], 1); f != nil {
			return fromFault(f)
		}
		if op == 39 {
			update(ea)
		}
	case 40, 41: // lhz, lhzu
		v, f := ip.Bus.LoadSize(m, t, ea, 2)
		if f != nil {
			return fromFault(f)
		}
		t.GPR[rd] = v
		if op == 41 {
			update(ea)
		}
	case 42, 43: // lha, lhau (sign-extended)
		v, f := ip.Bus.LoadSize(m, t, ea, 2)
		if f != nil {
			return fromFault(f)
		}
		t.GPR[rd] = uint64(int64(int16(uint16(v))))
		if op == 43 {
			update(ea)
		}
	case 44, 45: // sth, sthu
		if f := ip.Bus.StoreSize(m, t, ea, t.GPR[rd], 2); f != nil {
			return fromFault(f)
		}
		if op == 45 {
			update(ea)
		}
	case 46: // lmw: load GPRs rd..31 from consecutive words starting at ea
		addr := ea
		for r := rd; r <= 31; r++ {
			v, f := ip.Bus.LoadSize(m, t, addr, 4)
			if f != nil {
				return fromFault(f)
			}
			t.GPR[r] = v
			addr += 4
		}
	case 47: // stmw
		addr := ea
		for r := rd; r <= 31; r++ {
			if f := ip.Bus.StoreSize(m, t, addr, t.GPR[r], 4); f != nil {
				return fromFault(f)
			}
			addr += 4
		}
	}
	return nil
}

// execIndexedLoadStore handles the X-form indexed load/store secondaries
// reachable through opcode 31 (lwzx, stwx, lbzx, stbx, lhzx, sthx, ldx,
// stdx, lwarx, stwcx., ldarx, stdcx.). The DS-form ld/std (opcodes 58/62)
// are not handled.
func (ip *Interpreter) execIndexedLoadStore(m *mmu.MMU, t *ppuregs.PPUThreadRegisters, instr uint32, sec uint32) (*Exception, bool) {
	rd, ra, rb := fieldRD(instr), fieldRA(instr), fieldRB(instr)
	var base uint64
	if ra != 0 {
		base = t.GPR[ra]
	}
	ea := base + t.GPR[rb]

	switch sec {
	case 23: // lwzx
		v, f := ip.Bus.LoadSize(m, t, ea, 4)
		if f != nil {
			return fromFault(f), true
		}
		t.GPR[rd] = v
		return nil, true
	case 151: // stwx
		if f := ip.Bus.StoreSize(m, t, ea, t.GPR[rd], 4); f != nil {
			return fromFault(f), true
		}
		return nil, true
	case 87: // lbzx
		v, f := ip.Bus.LoadSize(m, t, ea, 1)
		if f != nil {
			return fromFault(f), true
		}
		t.GPR[rd] = v
		return nil, true
	case 215: // stbx
		if f := ip.Bus.StoreSize(m, t, ea, t.GPR[rd], 1); f != nil {
			return fromFault(f), true
		}
		return nil, true
	case 279: // lhzx
		v, f := ip.Bus.LoadSize(m, t, ea, 2)
		if f != nil {
			return fromFault(f), true
		}
		t.GPR[rd] = v
		return nil, true
	case 407: // sthx
		if f := ip.Bus.StoreSize(m, t, ea, t.GPR[rd], 2); f != nil {
			return fromFault(f), true
		}
		return nil, true
	case 21: // ldx
		v, f := ip.Bus.LoadSize(m, t, ea, 8)
		if f != nil {
			return fromFault(f), true
		}
		t.GPR[rd] = v
		return nil, true
	case 149: // stdx
		if f := ip.Bus.StoreSize(m, t, ea, t.GPR[rd], 8); f != nil {
			return fromFault(f), true
		}
		return nil, true
	case 20: // lwarx: reservation-setting load (spec.md section 4.3)
		v, f := ip.Bus.LoadReserved(m, t, ea, 4)
		if f != nil {
			return fromFault(f), true
		}
		t.GPR[rd] = v
		return nil, true
	case 84: // ldarx
		v, f := ip.Bus.LoadReserved(m, t, ea, 8)
		if f != nil {
			return fromFault(f), true
		}
		t.GPR[rd] = v
		return nil, true
	case 150: // stwcx.
		ok, f := ip.Bus.StoreConditional(m, t, ea, t.GPR[rd], 4)
		if f != nil {
			return fromFault(f), true
		}
		so := xerSO(t.SPR.XER)
		setCR(&t.CR, 0, false, false, ok, so)
		return nil, true
	case 214: // stdcx.
		ok, f := ip.Bus.StoreConditional(m, t, ea, t.GPR[rd], 8)
		if f != nil {
			return fromFault(f), true
		}
		so := xerSO(t.SPR.XER)
		setCR(&t.CR, 0, false, false, ok, so)
		return nil, true
	}
	return nil, false
}
