package mmu

import "github.com/xenoncore/xenoncore/internal/ppuregs"

// pteGroupSize is the number of PTEs per hash group (spec.md section 4.2:
// "Each group contains 8 PTEs").
const pteGroupSize = 8

// pteBytes is the on-disk size of one PTE: two 64-bit words, loosely
// following the real PowerPC hashed-page-table doubleword layout (AVPN +
// flags in word 0, RPN + protection in word 1). The exact bit packing is an
// implementation detail private to walkPageTable/decodePTE; nothing outside this
// file interprets raw PTE bytes.
const pteBytes = 16

// pte is a decoded page table entry (spec.md section 3).
type pte struct {
	avpn    uint64
	valid   bool
	large   bool
	rpn     uint64
	pp      uint8
	wimg    uint8
	noExec  bool
}

func decodePTE(word0, word1 uint64) pte {
	return pte{
		avpn:   word0 >> 13,
		valid:  word0&1 != 0,
		large:  word0&2 != 0,
		rpn:    word1 &^ 0xFFF,
		pp:     uint8(word1 & 0x3),
		wimg:   uint8((word1 >> 3) & 0xF),
		noExec: word1&(1<<2) != 0,
	}
}

// memReader is the minimal RAM-reading capability the page-table walker
// needs; satisfied by *ram.RAM, which the tests also use.
type memReader interface {
	ReadUint64(addr uint64) (uint64, error)
}

// hashPrimary computes the primary PowerPC hash of a virtual page number
// against a VSID, per spec.md section 4.2 ("walk the hashed page table
// rooted at SDR1 using the PowerPC primary/secondary hash").
func hashPrimary(vsid, pageIndex uint64) uint64 {
	return (vsid ^ pageIndex) & 0x7FFFFFFFFFF
}

func hashSecondary(primary uint64) uint64 {
	return (^primary) & 0x7FFFFFFFFFF
}

// walkPageTable resolves vpn (derived from an SLB-translated VSID and page
// index) against the hashed page table rooted at sdr1. It checks the
// primary group, then the secondary group, matching the virtual-page hash
// tag of each resident PTE (spec.md section 4.2 step 4).
func walkPageTable(mem memReader, sdr1 uint64, vsid, pageIndex uint64, forFetch bool) (pte, bool) {
	htabBase := sdr1 &^ 0x1FF
	htabMask := sdr1 & 0x1FF

	for _, h := range [2]uint64{hashPrimary(vsid, pageIndex), 0} {
		if h == 0 && hashSecondary(hashPrimary(vsid, pageIndex)) == hashPrimary(vsid, pageIndex) {
			continue
		}
		hash := h
		if hash == 0 {
			hash = hashSecondary(hashPrimary(vsid, pageIndex))
		}
		groupIndex := hash & htabMask
		groupAddr := htabBase + groupIndex*pteGroupSize*pteBytes

		for slot := 0; slot < pteGroupSize; slot++ {
			entryAddr := groupAddr + uint64(slot)*pteBytes
			w0, err := mem.ReadUint64(entryAddr)
			if err != nil {
				continue
			}
			w1, err := mem.ReadUint64(entryAddr + 8)
			if err != nil {
				continue
			}
			p := decodePTE(w0, w1)
			if !p.valid {
				continue
			}
			if p.avpn == (vsid<<16 | pageIndex>>12) {
				if forFetch && p.noExec {
					return pte{}, false
				}
				return p, true
			}
		}
	}
	return pte{}, false
}

// toTLBEntry converts a resolved PTE into the software TLB entry format.
func (p pte) toTLBEntry(vpn uint64) ppuregs.TLBEntry {
	size := uint64(4096)
	if p.large {
		size = 16 * 1024 * 1024
	}
	return ppuregs.TLBEntry{
		VPN:      vpn,
		RPN:      p.rpn,
		PageSize: size,
		Valid:    true,
		WIMG:     p.wimg,
		PP:       p.pp,
		NoExec:   p.noExec,
	}
}
