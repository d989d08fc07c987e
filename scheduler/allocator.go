package scheduler

import (
	"fmt"
	"sort"

	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/registry"
	"github.com/sarchlab/nrmac/sap"
)

// AccessMode tells how the data region is shared.
type AccessMode uint8

// Access modes. TDMA gives each device whole-band symbols. OFDMA lets the
// devices of a beam share symbols on disjoint RBGs.
const (
	AccessTDMA AccessMode = iota
	AccessOFDMA
)

func (m AccessMode) String() string {
	if m == AccessOFDMA {
		return "ofdma"
	}

	return "tdma"
}

// ParseAccessMode converts "tdma" or "ofdma" into an AccessMode.
func ParseAccessMode(s string) (AccessMode, error) {
	switch s {
	case "tdma", "TDMA":
		return AccessTDMA, nil
	case "ofdma", "OFDMA":
		return AccessOFDMA, nil
	default:
		return AccessTDMA, fmt.Errorf("unknown access mode %q", s)
	}
}

// A candidate is a device competing for new-data resources in one trigger.
type candidate struct {
	dev     *registry.Device
	mcs     []uint8
	need    uint32
	units   int
	tbs     uint32
	unitTbs uint32
	pick    int
	avg     float64
	cur     float64
	granted bool

	symStart uint8
	numSym   uint8
	mask     phymac.RbgMask
}

func (c *candidate) satisfied() bool {
	return c.tbs >= c.need
}

// reset clears everything an assignment wrote into the candidate.
func (c *candidate) reset() {
	c.units = 0
	c.tbs = 0
	c.pick = -1
	c.cur = c.avg
	c.symStart = 0
	c.numSym = 0
	c.mask = nil
}

// region is a range of symbols over a number of RBGs.
type region struct {
	symStart  uint8
	numSym    uint8
	bandwidth int
	backward  bool
}

type allocator struct {
	mode     AccessMode
	rbPerRbg uint32
	tbSize   func(c *candidate, rbSymbols uint32) uint32
}

// assign hands out the units of the region to the candidates and sets the
// resources of every candidate that got at least one unit.
func (a *allocator) assign(cands []*candidate, pol policy, r region) {
	if r.numSym == 0 || r.bandwidth == 0 || len(cands) == 0 {
		return
	}

	if a.mode == AccessOFDMA {
		a.assignOfdma(cands, pol, r)
		return
	}

	a.assignTdma(cands, pol, r)
}

// assignFitting is assign, except that a candidate whose block ends up below
// minTbs gets nothing and the region is handed out again among the others.
func (a *allocator) assignFitting(
	cands []*candidate,
	pol policy,
	r region,
	minTbs uint32,
) {
	active := cands

	for {
		a.assign(active, pol, r)

		var kept []*candidate

		for _, c := range active {
			if c.units > 0 && c.tbs < minTbs {
				c.reset()
				continue
			}

			kept = append(kept, c)
		}

		if len(kept) == len(active) {
			return
		}

		for _, c := range kept {
			c.reset()
		}

		active = kept
	}
}

func best(active []*candidate, pol policy) int {
	b := 0
	for i := 1; i < len(active); i++ {
		if pol.before(active[i], active[b]) {
			b = i
		}
	}

	return b
}

func remove(active []*candidate, i int) []*candidate {
	return append(active[:i], active[i+1:]...)
}

func (a *allocator) assignTdma(cands []*candidate, pol policy, r region) {
	active := append([]*candidate(nil), cands...)
	picks := 0
	rbPerSym := uint32(r.bandwidth) * a.rbPerRbg

	for sym := 0; sym < int(r.numSym) && len(active) > 0; sym++ {
		i := best(active, pol)
		c := active[i]

		c.units++
		if c.pick < 0 {
			c.pick = picks
			picks++
		}

		c.tbs = a.tbSize(c, uint32(c.units)*rbPerSym)
		pol.unitAssigned(c)

		if c.satisfied() {
			active = remove(active, i)
		}
	}

	served := pickOrder(cands)
	cursor := r.symStart

	if r.backward {
		cursor = r.symStart + r.numSym
	}

	for _, c := range served {
		c.numSym = uint8(c.units)
		c.mask = phymac.FullRbgMask(r.bandwidth)

		if r.backward {
			cursor -= c.numSym
			c.symStart = cursor
		} else {
			c.symStart = cursor
			cursor += c.numSym
		}
	}
}

func (a *allocator) assignOfdma(cands []*candidate, pol policy, r region) {
	beams, groups := groupByBeam(cands)
	syms := symbolsPerBeam(beams, groups, r.numSym)
	cursor := r.symStart

	if r.backward {
		cursor = r.symStart + r.numSym
	}

	for _, beam := range beams {
		n := syms[beam]
		if n == 0 {
			continue
		}

		start := cursor
		if r.backward {
			cursor -= n
			start = cursor
		} else {
			cursor += n
		}

		a.assignBeam(groups[beam], pol, start, n, r.bandwidth)
	}
}

func (a *allocator) assignBeam(
	cands []*candidate,
	pol policy,
	symStart, numSym uint8,
	bandwidth int,
) {
	active := append([]*candidate(nil), cands...)
	picks := 0

	for _, c := range cands {
		c.mask = phymac.NewRbgMask(bandwidth)
	}

	for rbg := 0; rbg < bandwidth && len(active) > 0; rbg++ {
		i := best(active, pol)
		c := active[i]

		c.units++
		c.mask.Set(rbg)

		if c.pick < 0 {
			c.pick = picks
			picks++
		}

		c.tbs = a.tbSize(c, uint32(c.units)*a.rbPerRbg*uint32(numSym))
		pol.unitAssigned(c)

		if c.satisfied() {
			active = remove(active, i)
		}
	}

	for _, c := range cands {
		if c.units > 0 {
			c.symStart = symStart
			c.numSym = numSym
		}
	}
}

func groupByBeam(cands []*candidate) ([]sap.BeamID, map[sap.BeamID][]*candidate) {
	groups := make(map[sap.BeamID][]*candidate)

	var beams []sap.BeamID

	for _, c := range cands {
		if _, ok := groups[c.dev.BeamID]; !ok {
			beams = append(beams, c.dev.BeamID)
		}

		groups[c.dev.BeamID] = append(groups[c.dev.BeamID], c)
	}

	sort.Slice(beams, func(i, j int) bool { return beams[i] < beams[j] })

	return beams, groups
}

// symbolsPerBeam splits the symbols in proportion to the bytes each beam
// needs. Leftover symbols go one at a time to the beams that need the most.
func symbolsPerBeam(
	beams []sap.BeamID,
	groups map[sap.BeamID][]*candidate,
	total uint8,
) map[sap.BeamID]uint8 {
	need := make(map[sap.BeamID]uint64)
	sum := uint64(0)

	for _, b := range beams {
		for _, c := range groups[b] {
			need[b] += uint64(c.need)
		}

		sum += need[b]
	}

	out := make(map[sap.BeamID]uint8)
	if sum == 0 {
		return out
	}

	used := uint8(0)
	for _, b := range beams {
		out[b] = uint8(uint64(total) * need[b] / sum)
		used += out[b]
	}

	order := append([]sap.BeamID(nil), beams...)
	sort.SliceStable(order, func(i, j int) bool {
		return need[order[i]] > need[order[j]]
	})

	for i := 0; used < total; i = (i + 1) % len(order) {
		out[order[i]]++
		used++
	}

	return out
}

func pickOrder(cands []*candidate) []*candidate {
	var served []*candidate

	for _, c := range cands {
		if c.units > 0 {
			served = append(served, c)
		}
	}

	sort.Slice(served, func(i, j int) bool { return served[i].pick < served[j].pick })

	return served
}
