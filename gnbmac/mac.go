// Package gnbmac is the MAC of a cell. Once per slot it hands the collected
// feedback to the scheduler, triggers the UL and DL decisions, builds the
// transport blocks and passes everything to the PHY.
package gnbmac

import (
	"log"

	"github.com/sarchlab/nrmac/macce"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sap"
	"github.com/sarchlab/nrmac/scheduler"
	"github.com/sarchlab/nrmac/sim"
)

// PhySap is the PHY as seen from the MAC.
type PhySap interface {
	macce.PhySink

	// ProcessSlot is called once everything of the slot has been sent.
	ProcessSlot(slot phymac.SlotID, plan *phymac.SlotAllocationPlan)
}

// HookPosSlotDone marks the end of a slot. Item is a SlotItem.
var HookPosSlotDone = &sim.HookPos{Name: "SlotDone"}

// SlotItem describes what the MAC sent in one slot.
type SlotItem struct {
	Slot     phymac.SlotID
	SlotType phymac.SlotType
	Plan     *phymac.SlotAllocationPlan
	Pdus     []*macce.MacPdu
}

type pendingDl struct {
	plan *phymac.SlotAllocationPlan
	rars []phymac.RarElement
}

var (
	_ sap.SchedUser  = (*Comp)(nil)
	_ sap.CschedUser = (*Comp)(nil)
)

// Comp is the MAC component of a cell.
type Comp struct {
	*sim.TickingComponent

	sched     *scheduler.Scheduler
	assembler *macce.Assembler
	phy       PhySap
	rrc       sap.CschedUser

	pattern  Pattern
	bwpIndex uint8
	k0       uint8
	k1       uint8
	k2       uint8

	inbox    inbox
	slot     phymac.SlotID
	numSlots uint64
	maxSlots uint64
	nextRnti uint16

	dlPlans map[phymac.SlotID]pendingDl
	ulPlans map[phymac.SlotID]*phymac.SlotAllocationPlan
}

// Scheduler returns the scheduler of the cell.
func (c *Comp) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// Pattern returns the TDD pattern.
func (c *Comp) Pattern() Pattern {
	return c.pattern
}

// K1 returns the delay, in slots, between a DL transport block and its HARQ
// feedback.
func (c *Comp) K1() uint8 {
	return c.k1
}

// CurrentSlot returns the next slot to be processed.
func (c *Comp) CurrentSlot() phymac.SlotID {
	return c.slot
}

// NumSlots returns how many slots have been processed.
func (c *Comp) NumSlots() uint64 {
	return c.numSlots
}

// Pending returns the number of requests waiting for the next slot.
func (c *Comp) Pending() int {
	return c.inbox.len()
}

// Start schedules the first slot.
func (c *Comp) Start() {
	c.TickNow()
}

// ConfigureCell queues a cell configuration.
func (c *Comp) ConfigureCell(cfg sap.CellConfig) {
	c.inbox.pushConfig(cfg)
}

// ConfigureDevice queues a device configuration.
func (c *Comp) ConfigureDevice(cfg sap.DeviceConfig) {
	c.inbox.pushConfig(cfg)
}

// ConfigureLogicalChannel queues a logical channel configuration.
func (c *Comp) ConfigureLogicalChannel(
	rnti uint16,
	lc sap.LogicalChannelConfig,
	reconfigure bool,
) {
	c.inbox.pushConfig(lcConfigReq{rnti: rnti, cfg: lc, reconfigure: reconfigure})
}

// ReleaseLogicalChannel queues the release of a logical channel.
func (c *Comp) ReleaseLogicalChannel(rnti uint16, lcid uint8) {
	c.inbox.pushConfig(lcReleaseReq{rnti: rnti, lcid: lcid})
}

// ReleaseDevice queues the release of a device.
func (c *Comp) ReleaseDevice(rnti uint16) {
	c.inbox.pushConfig(deviceReleaseReq{rnti: rnti})
}

// ReceiveDlCqi queues a DL CQI report.
func (c *Comp) ReceiveDlCqi(r phymac.DlCqiReport) {
	c.inbox.pushReport(r)
}

// ReceiveUlCqi queues an UL SINR measurement.
func (c *Comp) ReceiveUlCqi(r phymac.UlCqiReport) {
	c.inbox.pushReport(r)
}

// ReceiveRlcBufferStatus queues the DL buffer state of a channel.
func (c *Comp) ReceiveRlcBufferStatus(s phymac.RlcBufferStatus) {
	c.inbox.pushReport(s)
}

// ReceiveHarqFeedback queues HARQ feedback of either direction.
func (c *Comp) ReceiveHarqFeedback(fb phymac.HarqFeedback) {
	c.inbox.pushReport(fb)
}

// ReceiveSchedulingRequest queues a scheduling request.
func (c *Comp) ReceiveSchedulingRequest(rnti uint16) {
	c.inbox.pushReport(srReq{rnti: rnti})
}

// ReceiveRach queues a random access preamble.
func (c *Comp) ReceiveRach(preambleID uint8, estimatedSize uint32) {
	c.inbox.pushReport(rachReq{preambleID: preambleID, estimatedSize: estimatedSize})
}

// ReceiveUlMacPdu queues a decoded UL transport block. Only its control
// elements are used by the MAC.
func (c *Comp) ReceiveUlMacPdu(pdu *macce.MacPdu) {
	c.inbox.pushReport(pdu)
}

// Tick processes one slot.
func (c *Comp) Tick() bool {
	if c.maxSlots > 0 && c.numSlots >= c.maxSlots {
		return false
	}

	slot := c.slot

	dlFb, ulFb := c.processInbox()

	ulSlot := slot.Add(uint64(c.k2))
	c.sched.TriggerUlSlot(ulSlot, ulFb, c.pattern.SlotType(ulSlot))

	dlSlot := slot.Add(uint64(c.k0))
	c.sched.TriggerDlSlot(dlSlot, dlFb, c.pattern.SlotType(dlSlot))

	plan, rars := c.slotPlan(slot)
	if len(rars) > 0 {
		c.phy.SendControlMessage(&macce.RarMessage{Slot: slot, Rars: rars})
	}

	pdus := c.assembler.Assemble(plan)
	c.phy.ProcessSlot(slot, plan)

	if c.NumHooks() > 0 {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosSlotDone,
			Item: SlotItem{
				Slot:     slot,
				SlotType: c.pattern.SlotType(slot),
				Plan:     plan,
				Pdus:     pdus,
			},
		})
	}

	c.slot = slot.Next()
	c.numSlots++

	return c.maxSlots == 0 || c.numSlots < c.maxSlots
}

func (c *Comp) processInbox() (dlFb, ulFb []phymac.HarqFeedback) {
	configs, reports := c.inbox.drain()

	for _, req := range configs {
		c.applyConfig(req)
	}

	var bsrs []phymac.BsrReport

	var rachs []phymac.RachInfo

	for _, req := range reports {
		switch r := req.(type) {
		case phymac.DlCqiReport:
			c.sched.SubmitDlCqi(r)
		case phymac.UlCqiReport:
			c.sched.SubmitUlCqi(r)
		case phymac.RlcBufferStatus:
			c.sched.SubmitBufferStatus(r)
		case phymac.HarqFeedback:
			if r.Direction == phymac.UL {
				ulFb = append(ulFb, r)
			} else {
				dlFb = append(dlFb, r)
			}
		case srReq:
			c.sched.SubmitSchedulingRequest(r.rnti)
		case rachReq:
			rachs = append(rachs, phymac.RachInfo{
				RNTI:          c.allocateRnti(),
				PreambleID:    r.preambleID,
				EstimatedSize: r.estimatedSize,
			})
		case *macce.MacPdu:
			if r.Bsr != nil {
				bsrs = append(bsrs, r.Bsr.Report(r.RNTI))
			}
		default:
			log.Panicf("%s: unknown report %T", c.Name(), req)
		}
	}

	if len(bsrs) > 0 {
		c.sched.SubmitMacControlInfo(bsrs)
	}

	if len(rachs) > 0 {
		c.sched.SubmitRachInfo(rachs)
	}

	return dlFb, ulFb
}

func (c *Comp) applyConfig(req any) {
	switch r := req.(type) {
	case sap.CellConfig:
		c.sched.ConfigureCell(r)
	case sap.DeviceConfig:
		if r.RNTI >= c.nextRnti {
			c.nextRnti = r.RNTI + 1
		}

		c.sched.ConfigureDevice(r)
	case lcConfigReq:
		c.sched.ConfigureLogicalChannel(r.rnti, r.cfg, r.reconfigure)
	case lcReleaseReq:
		c.sched.ReleaseLogicalChannel(r.rnti, r.lcid)
	case deviceReleaseReq:
		c.sched.ReleaseDevice(r.rnti)
		c.dropPendingGrants(r.rnti)
	default:
		log.Panicf("%s: unknown configuration %T", c.Name(), req)
	}
}

// dropPendingGrants removes the grants of a released device from the plans
// that were decided but not yet sent. Its HARQ entities are gone, so there is
// nothing left to build the transport blocks from.
func (c *Comp) dropPendingGrants(rnti uint16) {
	n := 0

	for _, p := range c.dlPlans {
		n += p.plan.RemoveRnti(rnti)
	}

	for _, p := range c.ulPlans {
		n += p.RemoveRnti(rnti)
	}

	if n > 0 {
		log.Printf("%s: dropped %d pending grants of released rnti %d",
			c.Name(), n, rnti)
	}
}

func (c *Comp) allocateRnti() uint16 {
	if c.nextRnti == 0 {
		c.nextRnti = 1
	}

	rnti := c.nextRnti
	c.nextRnti++

	return rnti
}

// slotPlan returns the DL plan of the slot with the UL plan of the same slot
// merged into it.
func (c *Comp) slotPlan(
	slot phymac.SlotID,
) (*phymac.SlotAllocationPlan, []phymac.RarElement) {
	dl, hasDl := c.dlPlans[slot]
	ul, hasUl := c.ulPlans[slot]
	delete(c.dlPlans, slot)
	delete(c.ulPlans, slot)

	switch {
	case hasDl && hasUl:
		dl.plan.Merge(ul)
		return dl.plan, dl.rars
	case hasDl:
		return dl.plan, dl.rars
	case hasUl:
		return ul, nil
	default:
		return phymac.NewSlotAllocationPlan(slot, c.bwpIndex), nil
	}
}

// DlConfigInd stores the DL plan until its slot comes.
func (c *Comp) DlConfigInd(p sap.DlConfigIndParams) {
	c.dlPlans[p.Slot] = pendingDl{plan: p.Plan, rars: p.Rars}
}

// UlConfigInd stores the UL plan until its slot comes.
func (c *Comp) UlConfigInd(p sap.UlConfigIndParams) {
	c.ulPlans[p.Slot] = p.Plan
}

func (c *Comp) confirm(what string, rnti uint16, result sap.Result) {
	if result == sap.Failure {
		log.Printf("%s: %s of rnti %d failed", c.Name(), what, rnti)
	}
}

// CellConfigCnf forwards the confirmation to the RRC.
func (c *Comp) CellConfigCnf(result sap.Result) {
	c.confirm("cell configuration", 0, result)

	if c.rrc != nil {
		c.rrc.CellConfigCnf(result)
	}
}

// DeviceConfigCnf forwards the confirmation to the RRC.
func (c *Comp) DeviceConfigCnf(rnti uint16, result sap.Result) {
	c.confirm("device configuration", rnti, result)

	if c.rrc != nil {
		c.rrc.DeviceConfigCnf(rnti, result)
	}
}

// LogicalChannelConfigCnf forwards the confirmation to the RRC.
func (c *Comp) LogicalChannelConfigCnf(
	rnti uint16,
	lcid uint8,
	result sap.Result,
) {
	c.confirm("logical channel configuration", rnti, result)

	if c.rrc != nil {
		c.rrc.LogicalChannelConfigCnf(rnti, lcid, result)
	}
}

// LogicalChannelReleaseCnf forwards the confirmation to the RRC.
func (c *Comp) LogicalChannelReleaseCnf(
	rnti uint16,
	lcid uint8,
	result sap.Result,
) {
	c.confirm("logical channel release", rnti, result)

	if c.rrc != nil {
		c.rrc.LogicalChannelReleaseCnf(rnti, lcid, result)
	}
}

// DeviceReleaseCnf forwards the confirmation to the RRC.
func (c *Comp) DeviceReleaseCnf(rnti uint16, result sap.Result) {
	if c.rrc != nil {
		c.rrc.DeviceReleaseCnf(rnti, result)
	}
}
