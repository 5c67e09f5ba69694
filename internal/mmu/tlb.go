package mmu

import (
	"math/rand"

	"github.com/xenoncore/xenoncore/internal/ppuregs"
)

// tlbSets and tlbWays give a 256-set, 4-way software TLB: large enough that
// the kernel's working set of pages doesn't thrash it during boot, small
// enough that a linear per-set scan is cheap relative to a real page-table
// walk. spec.md section 3 only requires "direct-mapped N-way
// set-associative; replacement is pseudo-random" — these constants are an
// implementation choice within that envelope.
const (
	tlbSets = 256
	tlbWays = 4
)

// softwareTLB is the per-thread TLB (spec.md section 4.2).
type softwareTLB struct {
	sets [tlbSets][tlbWays]ppuregs.TLBEntry
}

func setIndex(vpn uint64) int {
	return int(vpn % tlbSets)
}

// lookup returns the entry matching vpn, if resident.
func (t *softwareTLB) lookup(vpn uint64) (ppuregs.TLBEntry, bool) {
	set := &t.sets[setIndex(vpn)]
	for i := range set {
		if set[i].Valid && set[i].VPN == vpn {
			return set[i], true
		}
	}
	return ppuregs.TLBEntry{}, false
}

// install inserts e, evicting a pseudo-randomly chosen way (spec.md section
// 4.2, step 4: "installing into TLB (evicting one entry by pseudo-random
// index)").
func (t *softwareTLB) install(e ppuregs.TLBEntry) {
	set := &t.sets[setIndex(e.VPN)]
	for i := range set {
		if !set[i].Valid {
			set[i] = e
			return
		}
	}
	set[rand.Intn(tlbWays)] = e
}

// invalidateAll clears every entry — used on tlbie/slbia-style global
// invalidation (spec.md section 4.2).
func (t *softwareTLB) invalidateAll() {
	for s := range t.sets {
		for w := range t.sets[s] {
			t.sets[s][w] = ppuregs.TLBEntry{}
		}
	}
}

// invalidateVPN clears the entry matching vpn, if present — used for a
// targeted tlbiel.
func (t *softwareTLB) invalidateVPN(vpn uint64) {
	set := &t.sets[setIndex(vpn)]
	for i := range set {
		if set[i].Valid && set[i].VPN == vpn {
			set[i] = ppuregs.TLBEntry{}
		}
	}
}
