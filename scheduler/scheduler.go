// Package scheduler decides, once per slot and direction, which devices are
// served on which symbols and RBGs, with which MCS, and whether they get new
// data or a HARQ retransmission.
package scheduler

import (
	"log"

	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/nrmac/amc"
	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/registry"
	"github.com/sarchlab/nrmac/sap"
	"github.com/sarchlab/nrmac/sim"
)

// State is the phase of the scheduler relative to triggers.
type State uint8

// Scheduler states.
const (
	StateIdle State = iota
	StateCollecting
	StateAllocating
)

func (s State) String() string {
	return [...]string{"IDLE", "COLLECTING", "ALLOCATING"}[s]
}

var (
	_ sap.SchedProvider  = (*Scheduler)(nil)
	_ sap.CschedProvider = (*Scheduler)(nil)
)

// Scheduler is the per-bandwidth-part MAC scheduler.
type Scheduler struct {
	sim.HookableBase

	name string

	symbolsPerSlot uint8
	dlCtrlSyms     uint8
	ulCtrlSyms     uint8
	dlBandwidthRbg uint32
	ulBandwidthRbg uint32
	rbPerRbg       uint32
	bwpIndex       uint8
	access         AccessMode
	fixedDlMcs     int
	fixedUlMcs     int
	startDlMcs     uint8
	startUlMcs     uint8
	maxDlMcs       uint8
	maxUlMcs       uint8
	cqiExpiry      uint32
	srGrantSize    uint32
	srsPeriod      uint32

	amc        *amc.Amc
	schedUser  sap.SchedUser
	cschedUser sap.CschedUser
	tracer     trace.Tracer

	registry *registry.Registry
	harq     *harq.Manager
	queue    FeedbackQueue
	state    State
	dlPolicy policy
	ulPolicy policy
	alloc    *allocator

	// ulStart is the first symbol used by the UL plan of a slot.
	ulStart   map[phymac.SlotID]uint8
	srsCursor uint16
}

// Name returns the name of the scheduler.
func (s *Scheduler) Name() string {
	return s.name
}

// Registry returns the device registry.
func (s *Scheduler) Registry() *registry.Registry {
	return s.registry
}

// State returns the current phase.
func (s *Scheduler) State() State {
	return s.state
}

// QueuedFeedback returns how much feedback waits for the next triggers.
func (s *Scheduler) QueuedFeedback() FeedbackCounts {
	return s.queue.Counts()
}

// GetDlCtrlSyms returns the symbols of the DL control region.
func (s *Scheduler) GetDlCtrlSyms() uint8 {
	return s.dlCtrlSyms
}

// GetUlCtrlSyms returns the symbols of the UL control region.
func (s *Scheduler) GetUlCtrlSyms() uint8 {
	return s.ulCtrlSyms
}

func (s *Scheduler) mustNotBeAllocating(op string) {
	if s.state == StateAllocating {
		log.Panicf("%s: %s called during a trigger", s.name, op)
	}
}

func (s *Scheduler) collect() {
	s.mustNotBeAllocating("submit")
	s.state = StateCollecting
}

func (s *Scheduler) enterTrigger() {
	s.mustNotBeAllocating("trigger")
	s.state = StateAllocating
}

func (s *Scheduler) leaveTrigger() {
	s.state = StateIdle
}

func (s *Scheduler) invokeHook(pos *sim.HookPos, item, detail any) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}

func (s *Scheduler) dropFeedback(
	kind FeedbackKind,
	rnti uint16,
	slot phymac.SlotID,
	reason string,
) {
	s.invokeHook(HookPosFeedbackDropped, DroppedFeedback{
		Kind:   kind,
		RNTI:   rnti,
		Slot:   slot,
		Reason: reason,
	}, nil)
}

// SubmitBufferStatus queues the DL RLC buffer state of a channel.
func (s *Scheduler) SubmitBufferStatus(status phymac.RlcBufferStatus) {
	s.collect()
	s.queue.PushRlcBuffer(status)
}

// SubmitDlCqi queues a DL CQI report.
func (s *Scheduler) SubmitDlCqi(report phymac.DlCqiReport) {
	s.collect()
	s.queue.PushDlCqi(report)
}

// SubmitUlCqi queues an UL SINR measurement.
func (s *Scheduler) SubmitUlCqi(report phymac.UlCqiReport) {
	s.collect()
	s.queue.PushUlCqi(report)
}

// SubmitMacControlInfo queues buffer status reports.
func (s *Scheduler) SubmitMacControlInfo(bsrs []phymac.BsrReport) {
	s.collect()
	s.queue.PushBsr(bsrs...)
}

// SubmitSchedulingRequest queues a scheduling request.
func (s *Scheduler) SubmitSchedulingRequest(rnti uint16) {
	s.collect()
	s.queue.PushSr(rnti)
}

// SubmitRachInfo queues random access attempts.
func (s *Scheduler) SubmitRachInfo(rachs []phymac.RachInfo) {
	s.collect()
	s.queue.PushRach(rachs...)
}

// ConfigureCell sets the bandwidth of the cell.
func (s *Scheduler) ConfigureCell(cfg sap.CellConfig) {
	s.mustNotBeAllocating("ConfigureCell")

	result := sap.Success
	if cfg.DlBandwidthRbg == 0 || cfg.UlBandwidthRbg == 0 {
		result = sap.Failure
	} else {
		s.dlBandwidthRbg = cfg.DlBandwidthRbg
		s.ulBandwidthRbg = cfg.UlBandwidthRbg
		s.registry.SetCell(cfg)
	}

	if s.cschedUser != nil {
		s.cschedUser.CellConfigCnf(result)
	}
}

// ConfigureDevice adds a device, or updates it when cfg.Reconfigure is set.
func (s *Scheduler) ConfigureDevice(cfg sap.DeviceConfig) {
	s.mustNotBeAllocating("ConfigureDevice")

	var err error
	if cfg.Reconfigure {
		err = s.registry.UpdateConfiguration(
			cfg.RNTI, cfg.BeamID, cfg.TransmissionMode)
	} else {
		_, err = s.registry.AddDevice(cfg)
	}

	if s.cschedUser != nil {
		s.cschedUser.DeviceConfigCnf(cfg.RNTI, resultOf(err))
	}
}

// ConfigureLogicalChannel adds or replaces a logical channel.
func (s *Scheduler) ConfigureLogicalChannel(
	rnti uint16,
	lc sap.LogicalChannelConfig,
	_ bool,
) {
	s.mustNotBeAllocating("ConfigureLogicalChannel")

	err := s.registry.AddLogicalChannel(rnti, lc)

	if s.cschedUser != nil {
		s.cschedUser.LogicalChannelConfigCnf(rnti, lc.LCID, resultOf(err))
	}
}

// ReleaseLogicalChannel removes a logical channel.
func (s *Scheduler) ReleaseLogicalChannel(rnti uint16, lcid uint8) {
	s.mustNotBeAllocating("ReleaseLogicalChannel")

	err := s.registry.RemoveLogicalChannel(rnti, lcid)

	if s.cschedUser != nil {
		s.cschedUser.LogicalChannelReleaseCnf(rnti, lcid, resultOf(err))
	}
}

// ReleaseDevice removes a device. Releasing an unknown device succeeds.
func (s *Scheduler) ReleaseDevice(rnti uint16) {
	s.mustNotBeAllocating("ReleaseDevice")

	s.registry.RemoveDevice(rnti)

	if s.cschedUser != nil {
		s.cschedUser.DeviceReleaseCnf(rnti, sap.Success)
	}
}

func resultOf(err error) sap.Result {
	if err != nil {
		return sap.Failure
	}

	return sap.Success
}

func (s *Scheduler) ctrlAlloc(
	dir phymac.Direction,
	symStart, numSym uint8,
	bandwidth uint32,
) phymac.VarTtiAlloc {
	return phymac.NewVarTtiAlloc(phymac.MakeDciBuilder().
		WithType(phymac.AllocCtrl).
		WithDirection(dir).
		WithSymbolsPerSlot(s.symbolsPerSlot).
		WithSymbols(symStart, numSym).
		WithRbgMask(phymac.FullRbgMask(int(bandwidth))).
		WithBwpIndex(s.bwpIndex).
		Build())
}

func (s *Scheduler) candidateTbSize(c *candidate, rbSymbols uint32) uint32 {
	var sum uint32
	for _, mcs := range c.mcs {
		sum += s.amc.TbSize(mcs, rbSymbols)
	}

	return sum
}

func (s *Scheduler) newCandidate(
	d *registry.Device,
	mcs []uint8,
	need uint32,
	avg float64,
	unitRbSymbols uint32,
) *candidate {
	c := &candidate{
		dev:  d,
		mcs:  mcs,
		need: need,
		pick: -1,
		avg:  avg,
		cur:  avg,
	}
	c.unitTbs = s.candidateTbSize(c, unitRbSymbols)

	return c
}

// scheduleRetx places one retransmission per device, oldest NACK first, in
// the symbols [start, end). Forward placement fills from start; backward
// placement fills from end. It returns the devices served and the remaining
// free range.
func (s *Scheduler) scheduleRetx(
	plan *phymac.SlotAllocationPlan,
	dir phymac.Direction,
	start, end uint8,
	bandwidth int,
	backward bool,
) (map[uint16]bool, uint8, uint8) {
	served := make(map[uint16]bool)

	for _, d := range s.registry.Devices() {
		pending := d.HarqEntity(dir).PendingRetransmissions()
		if len(pending) == 0 {
			continue
		}

		p := pending[0]
		old := p.Dci()
		numSym := old.NumSym()

		if numSym > end-start || old.NumRbg() > bandwidth {
			continue
		}

		symStart := start
		if backward {
			symStart = end - numSym
		}

		dci := s.retxDci(p, symStart, bandwidth)
		d.HarqEntity(dir).MarkRetransmitted(dci)

		alloc := phymac.NewVarTtiAlloc(dci)
		plan.Add(alloc)
		served[d.RNTI] = true

		if backward {
			end -= numSym
		} else {
			start += numSym
		}
	}

	return served, start, end
}

func (s *Scheduler) retxDci(
	p *harq.Process,
	symStart uint8,
	bandwidth int,
) *phymac.Dci {
	old := p.Dci()
	n := old.NumStreams()

	mcs := make([]uint8, n)
	tbs := make([]uint32, n)
	ndi := make([]uint8, n)
	rv := make([]uint8, n)

	for i := 0; i < n; i++ {
		mcs[i] = old.Mcs(i)
		rv[i] = old.Rv(i)

		if p.Status(i) == harq.StatusNacked {
			tbs[i] = old.TbSize(i)
			rv[i] = harq.NextRv(old.Rv(i))
		}
	}

	mask := phymac.NewRbgMask(bandwidth)
	for i := 0; i < old.NumRbg(); i++ {
		mask.Set(i)
	}

	return phymac.MakeDciBuilder().
		From(old).
		WithSymbolsPerSlot(s.symbolsPerSlot).
		WithSymbols(symStart, old.NumSym()).
		WithRbgMask(mask).
		WithStreams(mcs, tbs, ndi, rv).
		Build()
}

func (s *Scheduler) mustNotDoubleBook(plan *phymac.SlotAllocationPlan) {
	if err := plan.CheckNoDoubleBooking(); err != nil {
		log.Panicf("%s: %v", s.name, err)
	}
}
