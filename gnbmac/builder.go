package gnbmac

import (
	"log"

	"github.com/sarchlab/nrmac/macce"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sap"
	"github.com/sarchlab/nrmac/scheduler"
	"github.com/sarchlab/nrmac/sim"
)

// A Builder can build MAC components.
type Builder struct {
	engine     sim.Engine
	numerology uint8
	pattern    string
	k0, k1, k2 uint8
	bwpIndex   uint8
	maxSlots   uint64
	sched      scheduler.Builder
	rlc        macce.RlcUser
	phy        PhySap
	rrc        sap.CschedUser
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numerology: 1,
		pattern:    "F",
		k0:         0,
		k1:         2,
		k2:         2,
		sched:      scheduler.MakeBuilder(),
	}
}

// WithEngine sets the engine that drives the slots.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithNumerology sets the numerology. The MAC ticks once per slot.
func (b Builder) WithNumerology(n uint8) Builder {
	b.numerology = n
	return b
}

// WithPattern sets the TDD pattern, for example "DDDSU".
func (b Builder) WithPattern(p string) Builder {
	b.pattern = p
	return b
}

// WithK0 sets how many slots ahead the DL is scheduled.
func (b Builder) WithK0(k uint8) Builder {
	b.k0 = k
	return b
}

// WithK1 sets the delay between a DL transport block and its feedback.
func (b Builder) WithK1(k uint8) Builder {
	b.k1 = k
	return b
}

// WithK2 sets how many slots ahead the UL is scheduled.
func (b Builder) WithK2(k uint8) Builder {
	b.k2 = k
	return b
}

// WithBwpIndex sets the bandwidth part served.
func (b Builder) WithBwpIndex(i uint8) Builder {
	b.bwpIndex = i
	return b
}

// WithNumSlots stops the MAC after n slots. Zero runs forever.
func (b Builder) WithNumSlots(n uint64) Builder {
	b.maxSlots = n
	return b
}

// WithSchedulerBuilder sets how the scheduler is built. The MAC installs
// itself as the scheduler's SchedUser and CschedUser.
func (b Builder) WithSchedulerBuilder(sb scheduler.Builder) Builder {
	b.sched = sb
	return b
}

// WithRlcUser sets the DL RLC.
func (b Builder) WithRlcUser(rlc macce.RlcUser) Builder {
	b.rlc = rlc
	return b
}

// WithPhy sets the PHY.
func (b Builder) WithPhy(phy PhySap) Builder {
	b.phy = phy
	return b
}

// WithRrc sets who receives configuration confirmations.
func (b Builder) WithRrc(rrc sap.CschedUser) Builder {
	b.rrc = rrc
	return b
}

// Build creates a new MAC component.
func (b Builder) Build(name string) *Comp {
	b.parametersMustBeValid()

	pattern, err := ParsePattern(b.pattern)
	if err != nil {
		log.Panic(err)
	}

	c := &Comp{
		phy:      b.phy,
		rrc:      b.rrc,
		pattern:  pattern,
		bwpIndex: b.bwpIndex,
		k0:       b.k0,
		k1:       b.k1,
		k2:       b.k2,
		maxSlots: b.maxSlots,
		slot:     phymac.FromNormalized(0, b.numerology),
		dlPlans:  make(map[phymac.SlotID]pendingDl),
		ulPlans:  make(map[phymac.SlotID]*phymac.SlotAllocationPlan),
	}

	c.TickingComponent = sim.NewSecondaryTickingComponent(
		name, b.engine, sim.SlotFreq(b.numerology), c)

	c.sched = b.sched.
		WithBwpIndex(b.bwpIndex).
		WithSchedUser(c).
		WithCschedUser(c).
		Build(name + ".Scheduler")

	c.assembler = macce.MakeBuilder().
		WithDirection(phymac.DL).
		WithRlcUser(b.rlc).
		WithPhySink(b.phy).
		WithHarqProvider(c.sched.Registry()).
		Build()

	return c
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		log.Panic("engine is not set")
	}

	if b.rlc == nil {
		log.Panic("rlc user is not set")
	}

	if b.phy == nil {
		log.Panic("phy is not set")
	}

	if b.numerology > phymac.MaxNumerology {
		log.Panicf("numerology %d is not supported", b.numerology)
	}

	if b.k2 < b.k0 {
		log.Panic("k2 must not be smaller than k0")
	}
}
