package scheduler

import (
	"log"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sarchlab/nrmac/amc"
	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/registry"
	"github.com/sarchlab/nrmac/sap"
)

// A Builder can build schedulers.
type Builder struct {
	symbolsPerSlot uint8
	dlCtrlSyms     uint8
	ulCtrlSyms     uint8
	dlBandwidthRbg uint32
	ulBandwidthRbg uint32
	rbPerRbg       uint32
	bwpIndex       uint8

	numHarqProcesses uint8
	numStreams       int
	maxRetx          uint8

	policy   PolicyKind
	pfAlpha  float64
	pfWindow float64
	access   AccessMode

	fixedDlMcs  int
	fixedUlMcs  int
	startDlMcs  uint8
	startUlMcs  uint8
	maxDlMcs    uint8
	maxUlMcs    uint8
	cqiExpiry   uint32
	srGrantSize uint32
	srsPeriod   uint32

	amc        *amc.Amc
	schedUser  sap.SchedUser
	cschedUser sap.CschedUser
	tracer     trace.Tracer
	verbose    bool
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		symbolsPerSlot:   phymac.DefaultSymbolsPerSlot,
		dlCtrlSyms:       1,
		ulCtrlSyms:       1,
		dlBandwidthRbg:   25,
		ulBandwidthRbg:   25,
		rbPerRbg:         4,
		numHarqProcesses: 20,
		numStreams:       1,
		maxRetx:          3,
		policy:           PolicyRoundRobin,
		pfAlpha:          1.0,
		pfWindow:         100,
		access:           AccessTDMA,
		fixedDlMcs:       -1,
		fixedUlMcs:       -1,
		maxDlMcs:         amc.MaxMcs,
		maxUlMcs:         amc.MaxMcs,
		cqiExpiry:        1000,
		srGrantSize:      12,
	}
}

// WithSymbolsPerSlot sets the number of OFDM symbols in a slot.
func (b Builder) WithSymbolsPerSlot(n uint8) Builder {
	b.symbolsPerSlot = n
	return b
}

// WithCtrlSymbols sets the symbols reserved for DL and UL control.
func (b Builder) WithCtrlSymbols(dl, ul uint8) Builder {
	b.dlCtrlSyms = dl
	b.ulCtrlSyms = ul

	return b
}

// WithBandwidth sets the DL and UL bandwidth in RBGs. ConfigureCell may
// change it later.
func (b Builder) WithBandwidth(dlRbg, ulRbg uint32) Builder {
	b.dlBandwidthRbg = dlRbg
	b.ulBandwidthRbg = ulRbg

	return b
}

// WithRbPerRbg sets how many resource blocks form one RBG.
func (b Builder) WithRbPerRbg(n uint32) Builder {
	b.rbPerRbg = n
	return b
}

// WithBwpIndex sets the bandwidth part served.
func (b Builder) WithBwpIndex(i uint8) Builder {
	b.bwpIndex = i
	return b
}

// WithNumHarqProcesses sets the HARQ processes per device and direction.
func (b Builder) WithNumHarqProcesses(n uint8) Builder {
	b.numHarqProcesses = n
	return b
}

// WithNumStreams sets the number of DL spatial streams.
func (b Builder) WithNumStreams(n int) Builder {
	b.numStreams = n
	return b
}

// WithMaxRetx sets the retransmissions allowed per transport block.
func (b Builder) WithMaxRetx(n uint8) Builder {
	b.maxRetx = n
	return b
}

// WithPolicy selects the ranking policy.
func (b Builder) WithPolicy(p PolicyKind) Builder {
	b.policy = p
	return b
}

// WithPfParameters sets the fairness exponent and the averaging window, in
// slots, of the proportional-fair policy.
func (b Builder) WithPfParameters(alpha, window float64) Builder {
	b.pfAlpha = alpha
	b.pfWindow = window

	return b
}

// WithAccessMode selects TDMA or OFDMA.
func (b Builder) WithAccessMode(m AccessMode) Builder {
	b.access = m
	return b
}

// WithFixedMcs makes every grant use the given MCS. A negative value uses the
// reported CQI.
func (b Builder) WithFixedMcs(dl, ul int) Builder {
	b.fixedDlMcs = dl
	b.fixedUlMcs = ul

	return b
}

// WithStartMcs sets the MCS used before the first CQI and after it expires.
func (b Builder) WithStartMcs(dl, ul uint8) Builder {
	b.startDlMcs = dl
	b.startUlMcs = ul

	return b
}

// WithMaxMcs caps the MCS derived from CQI.
func (b Builder) WithMaxMcs(dl, ul uint8) Builder {
	b.maxDlMcs = dl
	b.maxUlMcs = ul

	return b
}

// WithCqiExpiry sets after how many slots a CQI report is forgotten.
func (b Builder) WithCqiExpiry(slots uint32) Builder {
	b.cqiExpiry = slots
	return b
}

// WithSrGrantSize sets the UL bytes assumed after a scheduling request.
func (b Builder) WithSrGrantSize(bytes uint32) Builder {
	b.srGrantSize = bytes
	return b
}

// WithSrsPeriodicity enables one SRS symbol every n slots.
func (b Builder) WithSrsPeriodicity(n uint32) Builder {
	b.srsPeriod = n
	return b
}

// WithAmc sets the link adaptation model.
func (b Builder) WithAmc(a *amc.Amc) Builder {
	b.amc = a
	return b
}

// WithSchedUser sets who receives the plans.
func (b Builder) WithSchedUser(u sap.SchedUser) Builder {
	b.schedUser = u
	return b
}

// WithCschedUser sets who receives configuration confirmations.
func (b Builder) WithCschedUser(u sap.CschedUser) Builder {
	b.cschedUser = u
	return b
}

// WithTracer sets the OpenTelemetry tracer used for one span per trigger.
func (b Builder) WithTracer(t trace.Tracer) Builder {
	b.tracer = t
	return b
}

// WithVerbose logs ignored feedback.
func (b Builder) WithVerbose(v bool) Builder {
	b.verbose = v
	return b
}

// Build creates a new Scheduler.
func (b Builder) Build(name string) *Scheduler {
	b.parametersMustBeValid()

	s := &Scheduler{
		name:           name,
		symbolsPerSlot: b.symbolsPerSlot,
		dlCtrlSyms:     b.dlCtrlSyms,
		ulCtrlSyms:     b.ulCtrlSyms,
		dlBandwidthRbg: b.dlBandwidthRbg,
		ulBandwidthRbg: b.ulBandwidthRbg,
		rbPerRbg:       b.rbPerRbg,
		bwpIndex:       b.bwpIndex,
		access:         b.access,
		fixedDlMcs:     b.fixedDlMcs,
		fixedUlMcs:     b.fixedUlMcs,
		startDlMcs:     b.startDlMcs,
		startUlMcs:     b.startUlMcs,
		maxDlMcs:       b.maxDlMcs,
		maxUlMcs:       b.maxUlMcs,
		cqiExpiry:      b.cqiExpiry,
		srGrantSize:    b.srGrantSize,
		srsPeriod:      b.srsPeriod,
		amc:            b.amc,
		schedUser:      b.schedUser,
		cschedUser:     b.cschedUser,
		tracer:         b.tracer,
		ulStart:        make(map[phymac.SlotID]uint8),
	}

	if s.amc == nil {
		s.amc = amc.NewNr()
	}

	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer(name)
	}

	s.registry = registry.New(registry.Config{
		NumHarqProcesses: b.numHarqProcesses,
		NumStreams:       b.numStreams,
		MaxRetx:          b.maxRetx,
		StartDlMcs:       b.startDlMcs,
		StartUlMcs:       b.startUlMcs,
	})
	s.registry.SetCell(sap.CellConfig{
		DlBandwidthRbg: b.dlBandwidthRbg,
		UlBandwidthRbg: b.ulBandwidthRbg,
	})

	s.harq = harq.NewManager(s.registry)
	s.harq.SetVerbose(b.verbose)

	s.dlPolicy = newPolicy(b.policy, phymac.DL, b.pfAlpha, b.pfWindow)
	s.ulPolicy = newPolicy(b.policy, phymac.UL, b.pfAlpha, b.pfWindow)

	s.alloc = &allocator{
		mode:     b.access,
		rbPerRbg: b.rbPerRbg,
		tbSize:   s.candidateTbSize,
	}

	return s
}

func (b Builder) parametersMustBeValid() {
	if b.symbolsPerSlot == 0 {
		log.Panic("a slot must have at least one symbol")
	}

	if b.dlCtrlSyms == 0 || b.ulCtrlSyms == 0 {
		log.Panic("control regions must have at least one symbol")
	}

	if int(b.dlCtrlSyms)+int(b.ulCtrlSyms) >= int(b.symbolsPerSlot) {
		log.Panic("control regions leave no room for data")
	}

	if b.dlBandwidthRbg == 0 || b.ulBandwidthRbg == 0 || b.rbPerRbg == 0 {
		log.Panic("bandwidth must not be zero")
	}

	if b.fixedDlMcs > amc.MaxMcs || b.fixedUlMcs > amc.MaxMcs {
		log.Panic("fixed mcs out of range")
	}

	if b.maxDlMcs > amc.MaxMcs || b.maxUlMcs > amc.MaxMcs {
		log.Panic("max mcs out of range")
	}

	if b.policy == PolicyProportionalFair && b.pfWindow < 1 {
		log.Panic("proportional fair window must be at least one slot")
	}

	if b.schedUser == nil {
		log.Panic("sched user is not set")
	}
}
