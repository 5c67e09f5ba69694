package ppuregs

// MSR bit positions (PowerPC bit numbering, counted from the left; these
// are the few bits the core actually gates behaviour on — spec.md's
// glossary entry for MSR).
const (
	MSR_SF = 0  // 64-bit mode
	MSR_HV = 3  // hypervisor
	MSR_EE = 48 // external interrupt enable
	MSR_PR = 49 // problem state (userspace)
	MSR_FP = 50 // floating point available
	MSR_FE1 = 52
	MSR_IR = 58 // instruction relocate (translation for fetch)
	MSR_DR = 59 // data relocate (translation for data access)
	MSR_FE0 = 60
	MSR_RI = 62 // recoverable exception
	MSR_LE = 63 // little-endian mode
)

// bit returns a mask for PowerPC bit index b (0 = MSB of a 64-bit word).
func bit(b uint) uint64 { return uint64(1) << (63 - b) }

var (
	MSR_MASK_SF = bit(MSR_SF)
	MSR_MASK_HV = bit(MSR_HV)
	MSR_MASK_EE = bit(MSR_EE)
	MSR_MASK_PR = bit(MSR_PR)
	MSR_MASK_FP = bit(MSR_FP)
	MSR_MASK_IR = bit(MSR_IR)
	MSR_MASK_DR = bit(MSR_DR)
	MSR_MASK_RI = bit(MSR_RI)
	MSR_MASK_LE = bit(MSR_LE)
)

// MSRTest reports whether the given bit is set in msr.
func MSRTest(msr uint64, b uint) bool {
	return msr&bit(b) != 0
}

// CR field bit offsets within a 4-bit CR field (spec.md section 4.5's
// "produce a 4-bit field {LT,GT,EQ,SO}").
const (
	CR_BIT_LT = 0
	CR_BIT_GT = 1
	CR_BIT_EQ = 2
	CR_BIT_SO = 3
)

// XER bit positions relevant to the core (bit 0 = MSB of the 32-bit XER).
const (
	XER_SO = 0
	XER_OV = 1
	XER_CA = 2
)
