package scheduler

import (
	"fmt"
	"math"

	"github.com/sarchlab/nrmac/phymac"
)

// PolicyKind selects how candidates are ranked.
type PolicyKind uint8

// Ranking policies.
const (
	PolicyRoundRobin PolicyKind = iota
	PolicyProportionalFair
)

func (k PolicyKind) String() string {
	if k == PolicyProportionalFair {
		return "pf"
	}

	return "rr"
}

// ParsePolicyKind converts "rr" or "pf" into a PolicyKind.
func ParsePolicyKind(s string) (PolicyKind, error) {
	switch s {
	case "rr", "RR", "round-robin":
		return PolicyRoundRobin, nil
	case "pf", "PF", "proportional-fair":
		return PolicyProportionalFair, nil
	default:
		return PolicyRoundRobin, fmt.Errorf("unknown scheduling policy %q", s)
	}
}

// A policy ranks candidates while resource units are handed out.
type policy interface {
	// before tells if a ranks ahead of b.
	before(a, b *candidate) bool

	// unitAssigned updates the in-slot state of a candidate that just got
	// one more unit.
	unitAssigned(c *candidate)

	// slotDone stores what must survive until the next slot.
	slotDone(cands []*candidate)
}

func newPolicy(
	kind PolicyKind,
	dir phymac.Direction,
	alpha, window float64,
) policy {
	if kind == PolicyProportionalFair {
		return &proportionalFair{dir: dir, alpha: alpha, window: window}
	}

	return &roundRobin{}
}

// roundRobin serves the candidate with the fewest units first. Ties go to the
// device that follows the one served first in the previous slot, in cyclic
// RNTI order.
type roundRobin struct {
	lastServed uint16
}

func (p *roundRobin) distance(rnti uint16) uint16 {
	return rnti - p.lastServed - 1
}

func (p *roundRobin) before(a, b *candidate) bool {
	if a.units != b.units {
		return a.units < b.units
	}

	da, db := p.distance(a.dev.RNTI), p.distance(b.dev.RNTI)
	if da != db {
		return da < db
	}

	return a.dev.RNTI < b.dev.RNTI
}

func (p *roundRobin) unitAssigned(*candidate) {}

func (p *roundRobin) slotDone(cands []*candidate) {
	for _, c := range cands {
		if c.granted && c.pick == 0 {
			p.lastServed = c.dev.RNTI
			return
		}
	}
}

// proportionalFair ranks by potential^alpha / average throughput. The average
// is an exponential moving average over window slots and moves as soon as a
// candidate receives a unit.
type proportionalFair struct {
	dir    phymac.Direction
	alpha  float64
	window float64
}

func (p *proportionalFair) metric(c *candidate) float64 {
	potential := math.Pow(float64(c.unitTbs), p.alpha)
	return potential / math.Max(1e-9, c.cur)
}

func (p *proportionalFair) before(a, b *candidate) bool {
	ma, mb := p.metric(a), p.metric(b)
	if ma != mb {
		return ma > mb
	}

	return a.dev.RNTI < b.dev.RNTI
}

func (p *proportionalFair) update(avg float64, served uint32) float64 {
	return avg*(1-1/p.window) + float64(served)/p.window
}

func (p *proportionalFair) unitAssigned(c *candidate) {
	c.cur = p.update(c.avg, c.tbs)
}

func (p *proportionalFair) slotDone(cands []*candidate) {
	for _, c := range cands {
		served := uint32(0)
		if c.granted {
			served = c.tbs
		}

		avg := p.update(c.avg, served)
		if p.dir == phymac.UL {
			c.dev.UlAvgThroughput = avg
		} else {
			c.dev.DlAvgThroughput = avg
		}
	}
}
