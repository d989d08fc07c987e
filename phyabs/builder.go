package phyabs

import (
	"log"
	"math/rand/v2"

	"github.com/sarchlab/nrmac/amc"
	"github.com/sarchlab/nrmac/phymac"
)

// A Builder can build abstract PHYs.
type Builder struct {
	mac       MacSap
	rlc       *Rlc
	amc       *amc.Amc
	seed      uint64
	k1        uint8
	slope     float64
	harqGain  float64
	cqiPeriod uint64
	srPeriod  uint64
	numHarq   uint8
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		seed:      1,
		k1:        2,
		slope:     1.5,
		harqGain:  3,
		cqiPeriod: 10,
		srPeriod:  10,
		numHarq:   20,
	}
}

// WithMac sets where reports go. The MAC may also be set later with SetMac.
func (b Builder) WithMac(m MacSap) Builder {
	b.mac = m
	return b
}

// WithRlc sets the DL RLC that the traffic sources fill.
func (b Builder) WithRlc(r *Rlc) Builder {
	b.rlc = r
	return b
}

// WithAmc sets the link model used for the BLER curve and CQI.
func (b Builder) WithAmc(a *amc.Amc) Builder {
	b.amc = a
	return b
}

// WithSeed sets the seed of the error draws.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// WithK1 sets the delay, in slots, of DL HARQ feedback.
func (b Builder) WithK1(k uint8) Builder {
	b.k1 = k
	return b
}

// WithBlerCurve sets the steepness, per dB, of the BLER curve and the SINR
// gain of a retransmission.
func (b Builder) WithBlerCurve(slope, harqGainDb float64) Builder {
	b.slope = slope
	b.harqGain = harqGainDb

	return b
}

// WithCqiPeriod sets how often, in slots, the UEs report CQI. Zero disables
// the reports.
func (b Builder) WithCqiPeriod(n uint64) Builder {
	b.cqiPeriod = n
	return b
}

// WithSrPeriod sets how long a UE waits for a grant before asking again.
func (b Builder) WithSrPeriod(n uint64) Builder {
	b.srPeriod = n
	return b
}

// WithNumHarqProcesses sets the UL HARQ processes of each UE.
func (b Builder) WithNumHarqProcesses(n uint8) Builder {
	b.numHarq = n
	return b
}

// Build creates a new Phy.
func (b Builder) Build(name string) *Phy {
	if b.slope <= 0 {
		log.Panic("bler slope must be positive")
	}

	if b.numHarq == 0 {
		log.Panic("ues need at least one harq process")
	}

	p := &Phy{
		name:      name,
		mac:       b.mac,
		rlc:       b.rlc,
		amc:       b.amc,
		rng:       rand.New(rand.NewPCG(b.seed, b.seed^0x9e3779b97f4a7c15)),
		k1:        b.k1,
		slope:     b.slope,
		harqGain:  b.harqGain,
		cqiPeriod: b.cqiPeriod,
		srPeriod:  max(b.srPeriod, 1),
		numHarq:   b.numHarq,
		ues:       make(map[uint16]*Ue),
		dlDcis:    make(map[dciKey]*phymac.Dci),
		feedback:  make(map[phymac.SlotID][]phymac.HarqFeedback),
	}

	if p.amc == nil {
		p.amc = amc.NewNr()
	}

	return p
}
