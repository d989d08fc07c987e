package scheduler

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/nrmac/macce"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sap"
)

// TriggerUlSlot computes the UL plan of a slot and delivers it to the
// SchedUser before returning. DL and S slots get an empty plan; the UL
// control symbol of an S slot travels in the DL plan.
func (s *Scheduler) TriggerUlSlot(
	slot phymac.SlotID,
	feedback []phymac.HarqFeedback,
	slotType phymac.SlotType,
) {
	s.enterTrigger()
	defer s.leaveTrigger()

	_, span := s.tracer.Start(context.Background(), "scheduler.TriggerUlSlot",
		trace.WithAttributes(
			attribute.String("scheduler", s.name),
			attribute.Int64("slot", int64(slot.Normalized())),
			attribute.String("slot_type", slotType.String()),
		))
	defer span.End()

	s.queue.PushHarq(feedback...)
	s.invokeHook(HookPosFeedbackDrained, s.ulCounts(), phymac.UL)

	s.processUlCqi(slot)
	s.processBsr(slot)
	s.processSr(slot)
	s.refreshUlCqi()
	s.processHarqFeedback(slot, s.queue.DrainUlHarq(), FeedbackUlHarq)
	s.ageHarq(phymac.UL)

	plan := s.planUl(slot, slotType)

	s.mustNotDoubleBook(plan)

	span.SetAttributes(
		attribute.Int("entries", len(plan.Entries)),
		attribute.Int("symbols", plan.NumSymAlloc()),
	)

	s.invokeHook(HookPosUlScheduled,
		ScheduledItem{Plan: plan, SlotType: slotType}, nil)
	s.schedUser.UlConfigInd(sap.UlConfigIndParams{Slot: slot, Plan: plan})
}

func (s *Scheduler) ulCounts() FeedbackCounts {
	c := s.queue.Counts()

	return FeedbackCounts{
		UlCqi:  c.UlCqi,
		Bsr:    c.Bsr,
		Sr:     c.Sr,
		UlHarq: c.UlHarq,
	}
}

func (s *Scheduler) processUlCqi(slot phymac.SlotID) {
	for _, r := range s.queue.DrainUlCqi() {
		d, ok := s.registry.Device(r.RNTI)
		if !ok {
			s.dropFeedback(FeedbackUlCqi, r.RNTI, slot, "unknown rnti")
			continue
		}

		cqi, mcs := s.amc.FromSinr(r.SinrDb)
		d.Ul.Cqi[0] = cqi
		d.Ul.Mcs[0] = min(mcs, s.maxUlMcs)
		d.Ul.CqiTimer = s.cqiExpiry
	}
}

func (s *Scheduler) processBsr(slot phymac.SlotID) {
	for _, r := range s.queue.DrainBsr() {
		d, ok := s.registry.Device(r.RNTI)
		if !ok {
			s.dropFeedback(FeedbackBsr, r.RNTI, slot, "unknown rnti")
			continue
		}

		ce := macce.ShortBsrCe{Levels: r.Levels}
		d.UlLcgBytes = ce.Bytes()
	}
}

func (s *Scheduler) processSr(slot phymac.SlotID) {
	for _, rnti := range s.queue.DrainSr() {
		d, ok := s.registry.Device(rnti)
		if !ok {
			s.dropFeedback(FeedbackSr, rnti, slot, "unknown rnti")
			continue
		}

		if d.UlBuffered() == 0 {
			d.UlLcgBytes[0] = s.srGrantSize
		}
	}
}

func (s *Scheduler) refreshUlCqi() {
	for _, d := range s.registry.Devices() {
		d.Ul.Age(s.startUlMcs)
	}
}

func (s *Scheduler) planUl(
	slot phymac.SlotID,
	slotType phymac.SlotType,
) *phymac.SlotAllocationPlan {
	plan := phymac.NewSlotAllocationPlan(slot, s.bwpIndex)
	if slotType == phymac.SlotDL || slotType == phymac.SlotS {
		return plan
	}

	end := s.symbolsPerSlot - s.ulCtrlSyms
	plan.Add(s.ctrlAlloc(phymac.UL, end, s.ulCtrlSyms, s.ulBandwidthRbg))

	if end-1 > s.dlCtrlSyms {
		if srs, ok := s.srsAlloc(slot, end-1); ok {
			plan.Add(srs)
			end--
		}
	}

	bandwidth := int(s.ulBandwidthRbg)
	served, start, end := s.scheduleRetx(
		plan, phymac.UL, s.dlCtrlSyms, end, bandwidth, true)

	cands := s.ulCandidates(served)
	s.alloc.assignFitting(cands, s.ulPolicy, region{
		symStart:  start,
		numSym:    end - start,
		bandwidth: bandwidth,
		backward:  true,
	}, minTbSize)

	for _, c := range cands {
		if c.units == 0 {
			continue
		}

		s.grantUl(plan, c)
	}

	s.ulPolicy.slotDone(cands)

	s.ulStart[slot] = firstSymbol(plan)

	return plan
}

func firstSymbol(plan *phymac.SlotAllocationPlan) uint8 {
	return plan.Entries[0].Dci.SymStart()
}

// srsAlloc picks the next device, in cyclic RNTI order, to sound at symbol.
func (s *Scheduler) srsAlloc(
	slot phymac.SlotID,
	symbol uint8,
) (phymac.VarTtiAlloc, bool) {
	if s.srsPeriod == 0 || slot.Normalized()%uint64(s.srsPeriod) != 0 {
		return phymac.VarTtiAlloc{}, false
	}

	devices := s.registry.Devices()
	if len(devices) == 0 {
		return phymac.VarTtiAlloc{}, false
	}

	next := devices[0]
	for _, d := range devices {
		if d.RNTI > s.srsCursor {
			next = d
			break
		}
	}

	s.srsCursor = next.RNTI

	return phymac.NewVarTtiAlloc(phymac.MakeDciBuilder().
		WithRNTI(next.RNTI).
		WithType(phymac.AllocSrs).
		WithDirection(phymac.UL).
		WithSymbolsPerSlot(s.symbolsPerSlot).
		WithSymbols(symbol, 1).
		WithRbgMask(phymac.FullRbgMask(int(s.ulBandwidthRbg))).
		WithBwpIndex(s.bwpIndex).
		Build()), true
}

func (s *Scheduler) ulMcs(mcs uint8) uint8 {
	if s.fixedUlMcs >= 0 {
		return uint8(s.fixedUlMcs)
	}

	return mcs
}

func (s *Scheduler) ulCandidates(excluded map[uint16]bool) []*candidate {
	var cands []*candidate

	unit := s.rbPerRbg
	if s.access == AccessTDMA {
		unit *= s.ulBandwidthRbg
	}

	for _, d := range s.registry.Devices() {
		if excluded[d.RNTI] || d.UlBuffered() == 0 {
			continue
		}

		if _, ok := d.UlHarq.NextFree(); !ok {
			continue
		}

		need := d.UlBuffered() +
			uint32(len(d.ActiveUlGroups()))*macce.SubheaderSize

		cands = append(cands, s.newCandidate(
			d, []uint8{s.ulMcs(d.Ul.Mcs[0])}, need, d.UlAvgThroughput, unit))
	}

	return cands
}

func (s *Scheduler) grantUl(plan *phymac.SlotAllocationPlan, c *candidate) {
	d := c.dev
	pid, _ := d.UlHarq.NextFree()
	rbSymbols := uint32(c.mask.Count()) * s.rbPerRbg * uint32(c.numSym)
	mcs := c.mcs[0]
	tbs := s.amc.TbSize(mcs, rbSymbols)

	dci := phymac.MakeDciBuilder().
		WithRNTI(d.RNTI).
		WithDirection(phymac.UL).
		WithSymbolsPerSlot(s.symbolsPerSlot).
		WithSymbols(c.symStart, c.numSym).
		WithRbgMask(c.mask).
		WithHarqProcess(pid).
		WithBwpIndex(s.bwpIndex).
		WithStream(mcs, tbs, 1, 0).
		Build()

	if err := d.UlHarq.AssignNewData(dci, nil); err != nil {
		log.Panicf("%s: rnti %d: %v", s.name, d.RNTI, err)
	}

	d.DrainUl(tbs)
	c.granted = true

	plan.Add(phymac.NewVarTtiAlloc(dci))
}
