package simulation

import (
	"io"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sarchlab/nrmac/datarecording"
	"github.com/sarchlab/nrmac/gnbmac"
	"github.com/sarchlab/nrmac/metrics"
	"github.com/sarchlab/nrmac/monitoring"
	"github.com/sarchlab/nrmac/phyabs"
	"github.com/sarchlab/nrmac/sap"
	"github.com/sarchlab/nrmac/schedtrace"
	"github.com/sarchlab/nrmac/scheduler"
	"github.com/sarchlab/nrmac/sim"
	"github.com/sarchlab/nrmac/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	numUes     int
	numSlots   uint64
	numerology uint8
	pattern    string
	bandwidth  uint32
	policy     scheduler.PolicyKind
	access     scheduler.AccessMode
	minSinr    float64
	maxSinr    float64
	dlRate     uint32
	ulRate     uint32
	seed       uint64

	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	recordOn       bool
	outputFileName string
	tracerProvider trace.TracerProvider
	eventLog       io.Writer
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		numUes:     4,
		numSlots:   1000,
		numerology: 1,
		pattern:    "F",
		bandwidth:  25,
		policy:     scheduler.PolicyRoundRobin,
		access:     scheduler.AccessTDMA,
		minSinr:    5,
		maxSinr:    25,
		dlRate:     500,
		ulRate:     100,
		seed:       1,
		recordOn:   true,
	}
}

// WithNumUes sets how many UEs are attached to the cell.
func (b Builder) WithNumUes(n int) Builder {
	b.numUes = n
	return b
}

// WithNumSlots sets how many slots are simulated.
func (b Builder) WithNumSlots(n uint64) Builder {
	b.numSlots = n
	return b
}

// WithNumerology sets the numerology of the cell.
func (b Builder) WithNumerology(n uint8) Builder {
	b.numerology = n
	return b
}

// WithPattern sets the TDD pattern.
func (b Builder) WithPattern(p string) Builder {
	b.pattern = p
	return b
}

// WithBandwidth sets the width of both directions, in RBGs.
func (b Builder) WithBandwidth(rbg uint32) Builder {
	b.bandwidth = rbg
	return b
}

// WithPolicy sets the scheduling policy.
func (b Builder) WithPolicy(p scheduler.PolicyKind) Builder {
	b.policy = p
	return b
}

// WithAccessMode sets how the data region is shared.
func (b Builder) WithAccessMode(m scheduler.AccessMode) Builder {
	b.access = m
	return b
}

// WithSinrRange spreads the DL SINR of the UEs evenly between min and max.
// The UL runs 3 dB below the DL.
func (b Builder) WithSinrRange(minDb, maxDb float64) Builder {
	b.minSinr = minDb
	b.maxSinr = maxDb

	return b
}

// WithTraffic sets the constant bit rate of every UE, in bytes per slot.
func (b Builder) WithTraffic(dl, ul uint32) Builder {
	b.dlRate = dl
	b.ulRate = ul

	return b
}

// WithSeed sets the seed of the transport block error draws.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// WithMonitor turns on the monitoring server on the given port. Zero picks
// a random port.
func (b Builder) WithMonitor(port int, openBrowser bool) Builder {
	b.monitorOn = true
	b.monitorPort = port
	b.openBrowser = openBrowser

	return b
}

// WithoutRecording disables the database of scheduling decisions.
func (b Builder) WithoutRecording() Builder {
	b.recordOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithTracerProvider sets where the scheduler spans go.
func (b Builder) WithTracerProvider(tp trace.TracerProvider) Builder {
	b.tracerProvider = tp
	return b
}

// WithEventLog prints every event handled by the engine into w.
func (b Builder) WithEventLog(w io.Writer) Builder {
	b.eventLog = w
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.numUes <= 0 {
		log.Panic("a simulation needs at least one ue")
	}

	if b.numSlots == 0 {
		log.Panic("a simulation needs at least one slot")
	}

	if b.bandwidth == 0 {
		log.Panic("bandwidth cannot be zero")
	}

	if b.minSinr > b.maxSinr {
		log.Panic("min sinr is larger than max sinr")
	}

	if !b.recordOn && b.outputFileName != "" {
		log.Panic("output file name cannot be set when recording is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:         xid.New().String(),
		numerology: b.numerology,
		numSlots:   b.numSlots,
	}

	s.engine = sim.NewSerialEngine()
	s.engine.RegisterSimulationEndHandler(runEnd{s})
	if b.eventLog != nil {
		s.engine.AcceptHook(sim.NewEventLogger(log.New(b.eventLog, "", 0)))
	}

	s.rlc = phyabs.NewRlc()

	s.phy = phyabs.MakeBuilder().
		WithRlc(s.rlc).
		WithSeed(b.seed).
		Build("Cell.Phy")

	tp := b.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	s.mac = gnbmac.MakeBuilder().
		WithEngine(s.engine).
		WithNumerology(b.numerology).
		WithPattern(b.pattern).
		WithNumSlots(b.numSlots).
		WithRlcUser(s.rlc).
		WithPhy(s.phy).
		WithRrc(s).
		WithSchedulerBuilder(scheduler.MakeBuilder().
			WithBandwidth(b.bandwidth, b.bandwidth).
			WithPolicy(b.policy).
			WithAccessMode(b.access).
			WithTracer(tp.Tracer("github.com/sarchlab/nrmac/scheduler"))).
		Build("Cell.MAC")
	s.phy.SetMac(s.mac)

	s.mac.AcceptHook(s)

	b.buildMetrics(s)
	b.buildRecording(s)
	b.buildHarqTrace(s)
	b.attachUes(s)
	b.buildMonitor(s)

	return s
}

func (b Builder) buildMetrics(s *Simulation) {
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		log.Panic(err)
	}

	s.metrics = collector
	s.mac.AcceptHook(collector)
	s.mac.Scheduler().AcceptHook(collector)
	s.phy.AcceptHook(collector)
}

func (b Builder) buildRecording(s *Simulation) {
	if !b.recordOn {
		return
	}

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "nrmac_sim_" + s.id
	}

	s.recorder = datarecording.New(outputPath)
	s.recorder.CreateTable(UeSummaryTableName, UeSummary{})

	s.execRecorder = datarecording.NewExecRecorder(s.recorder)

	s.dbTracer = tracing.NewDBTracer(s.engine, s.recorder)

	s.schedTrace = schedtrace.NewHook(s.engine, s.recorder)
	s.mac.Scheduler().AcceptHook(s.schedTrace)
}

func (b Builder) buildHarqTrace(s *Simulation) {
	s.harqStats = tracing.NewHarqStatsTracer(s.engine, nil)

	tracers := tracing.MultiTracer{s.harqStats}
	if s.dbTracer != nil {
		tracers = append(tracers, s.dbTracer)
	}

	s.harqHook = tracing.CollectTrace(s.mac.Scheduler(), tracers)
}

func (b Builder) attachUes(s *Simulation) {
	s.mac.ConfigureCell(sap.CellConfig{
		DlBandwidthRbg: b.bandwidth,
		UlBandwidthRbg: b.bandwidth,
	})

	for i := 0; i < b.numUes; i++ {
		rnti := uint16(i + 1)

		sinr := b.maxSinr
		if b.numUes > 1 {
			sinr = b.minSinr +
				(b.maxSinr-b.minSinr)*float64(i)/float64(b.numUes-1)
		}

		s.phy.AddUe(phyabs.UeConfig{
			RNTI:     rnti,
			DlSinrDb: sinr,
			UlSinrDb: sinr - 3,
			DlRate:   b.dlRate,
			UlRate:   b.ulRate,
		})

		s.mac.ConfigureDevice(sap.DeviceConfig{RNTI: rnti})
		s.mac.ConfigureLogicalChannel(rnti,
			sap.LogicalChannelConfig{LCID: phyabs.UeLcid}, false)
	}
}

func (b Builder) buildMonitor(s *Simulation) {
	if !b.monitorOn {
		return
	}

	s.monitor = monitoring.NewMonitor().
		WithPortNumber(b.monitorPort).
		WithBrowser(b.openBrowser)
	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterComponent(s.mac)
	s.monitor.RegisterRegistry(s.mac.Scheduler().Registry())
	s.monitor.RegisterMetrics(s.metrics.Handler())
	s.monitor.StartServer()
}
