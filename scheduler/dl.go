package scheduler

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/nrmac/amc"
	"github.com/sarchlab/nrmac/macce"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sap"
)

// TriggerDlSlot computes the DL plan of a slot and delivers it, together with
// the random access responses, to the SchedUser before returning.
func (s *Scheduler) TriggerDlSlot(
	slot phymac.SlotID,
	feedback []phymac.HarqFeedback,
	slotType phymac.SlotType,
) {
	s.enterTrigger()
	defer s.leaveTrigger()

	_, span := s.tracer.Start(context.Background(), "scheduler.TriggerDlSlot",
		trace.WithAttributes(
			attribute.String("scheduler", s.name),
			attribute.Int64("slot", int64(slot.Normalized())),
			attribute.String("slot_type", slotType.String()),
		))
	defer span.End()

	s.queue.PushHarq(feedback...)
	s.invokeHook(HookPosFeedbackDrained, s.dlCounts(), phymac.DL)

	s.processDlCqi(slot)
	s.processRlcBuffers(slot)
	s.refreshDlCqi()
	s.processHarqFeedback(slot, s.queue.DrainDlHarq(), FeedbackDlHarq)
	s.ageHarq(phymac.DL)

	rars := s.processRach(slot)
	plan := s.planDl(slot, slotType)

	s.mustNotDoubleBook(plan)

	span.SetAttributes(
		attribute.Int("entries", len(plan.Entries)),
		attribute.Int("symbols", plan.NumSymAlloc()),
	)

	s.invokeHook(HookPosDlScheduled,
		ScheduledItem{Plan: plan, SlotType: slotType, Rars: rars}, nil)
	s.schedUser.DlConfigInd(sap.DlConfigIndParams{
		Slot: slot,
		Plan: plan,
		Rars: rars,
	})
}

func (s *Scheduler) dlCounts() FeedbackCounts {
	c := s.queue.Counts()

	return FeedbackCounts{
		DlCqi:     c.DlCqi,
		Rach:      c.Rach,
		RlcBuffer: c.RlcBuffer,
		DlHarq:    c.DlHarq,
	}
}

func (s *Scheduler) processDlCqi(slot phymac.SlotID) {
	for _, r := range s.queue.DrainDlCqi() {
		d, ok := s.registry.Device(r.RNTI)
		if !ok {
			s.dropFeedback(FeedbackDlCqi, r.RNTI, slot, "unknown rnti")
			continue
		}

		for i := 0; i < len(d.Dl.Cqi) && i < len(r.WidebandCqi); i++ {
			cqi := min(r.WidebandCqi[i], amc.MaxCqi)
			d.Dl.Cqi[i] = cqi
			d.Dl.Mcs[i] = min(amc.McsFromCqi(cqi), s.maxDlMcs)
		}

		if r.Rank > 0 {
			d.Dl.Rank = r.Rank
		}

		d.Dl.CqiTimer = s.cqiExpiry
	}
}

func (s *Scheduler) processRlcBuffers(slot phymac.SlotID) {
	for _, st := range s.queue.DrainRlcBuffer() {
		d, ok := s.registry.Device(st.RNTI)
		if !ok {
			s.dropFeedback(FeedbackRlcBuffer, st.RNTI, slot, "unknown rnti")
			continue
		}

		if err := d.UpdateDlBuffer(st); err != nil {
			s.dropFeedback(FeedbackRlcBuffer, st.RNTI, slot, err.Error())
		}
	}
}

func (s *Scheduler) refreshDlCqi() {
	for _, d := range s.registry.Devices() {
		d.Dl.Age(s.startDlMcs)
	}
}

func (s *Scheduler) processHarqFeedback(
	slot phymac.SlotID,
	fbs []phymac.HarqFeedback,
	kind FeedbackKind,
) {
	for _, out := range s.harq.OnFeedbackList(fbs) {
		s.invokeHook(HookPosHarqFeedback, out, slot)

		if out.Result.IsIgnored() {
			s.dropFeedback(kind, out.Feedback.RNTI, slot, out.Result.String())
		}
	}
}

func (s *Scheduler) ageHarq(dir phymac.Direction) {
	for _, d := range s.registry.Devices() {
		for _, pid := range d.HarqEntity(dir).AgeTimers() {
			log.Printf("%s: %s harq process %d of rnti %d timed out",
				s.name, dir, pid, d.RNTI)
		}
	}
}

func (s *Scheduler) processRach(slot phymac.SlotID) []phymac.RarElement {
	var rars []phymac.RarElement

	for _, r := range s.queue.DrainRach() {
		rars = append(rars, phymac.RarElement{
			RNTI:       r.RNTI,
			PreambleID: r.PreambleID,
			Slot:       slot,
		})
	}

	return rars
}

// dlDataEnd returns one past the last symbol DL data may use.
func (s *Scheduler) dlDataEnd(
	slot phymac.SlotID,
	slotType phymac.SlotType,
) uint8 {
	end := s.symbolsPerSlot

	ulStart, ok := s.ulStart[slot]
	delete(s.ulStart, slot)

	for other := range s.ulStart {
		if other.Less(slot) {
			delete(s.ulStart, other)
		}
	}

	switch slotType {
	case phymac.SlotS:
		end -= s.ulCtrlSyms
	case phymac.SlotF:
		if ok {
			end = ulStart
		} else {
			end -= s.ulCtrlSyms
		}
	}

	return end
}

func (s *Scheduler) planDl(
	slot phymac.SlotID,
	slotType phymac.SlotType,
) *phymac.SlotAllocationPlan {
	plan := phymac.NewSlotAllocationPlan(slot, s.bwpIndex)
	plan.Add(s.ctrlAlloc(phymac.DL, 0, s.dlCtrlSyms, s.dlBandwidthRbg))

	end := s.dlDataEnd(slot, slotType)

	if slotType == phymac.SlotS {
		plan.Add(s.ctrlAlloc(phymac.UL, end, s.ulCtrlSyms, s.ulBandwidthRbg))
	}

	if !slotType.HasDl() || end <= s.dlCtrlSyms {
		return plan
	}

	bandwidth := int(s.dlBandwidthRbg)
	served, start, end := s.scheduleRetx(
		plan, phymac.DL, s.dlCtrlSyms, end, bandwidth, false)

	cands := s.dlCandidates(served)
	s.alloc.assignFitting(cands, s.dlPolicy, region{
		symStart:  start,
		numSym:    end - start,
		bandwidth: bandwidth,
	}, minTbSize)

	for _, c := range cands {
		if c.units == 0 {
			continue
		}

		s.grantDl(plan, c)
	}

	s.dlPolicy.slotDone(cands)

	return plan
}

func (s *Scheduler) dlMcs(mcs uint8) uint8 {
	if s.fixedDlMcs >= 0 {
		return uint8(s.fixedDlMcs)
	}

	return mcs
}

func (s *Scheduler) dlCandidates(excluded map[uint16]bool) []*candidate {
	var cands []*candidate

	unit := s.rbPerRbg
	if s.access == AccessTDMA {
		unit *= s.dlBandwidthRbg
	}

	for _, d := range s.registry.Devices() {
		if excluded[d.RNTI] || d.DlBuffered() == 0 {
			continue
		}

		if _, ok := d.DlHarq.NextFree(); !ok {
			continue
		}

		mcs := make([]uint8, len(d.Dl.Mcs))
		for i, m := range d.Dl.Mcs {
			mcs[i] = s.dlMcs(m)
		}

		need := d.DlBuffered() +
			uint32(len(d.ActiveDlChannels()))*macce.SubheaderSize

		cands = append(cands,
			s.newCandidate(d, mcs, need, d.DlAvgThroughput, unit))
	}

	return cands
}

func (s *Scheduler) grantDl(plan *phymac.SlotAllocationPlan, c *candidate) {
	d := c.dev
	pid, _ := d.DlHarq.NextFree()
	rbSymbols := uint32(c.mask.Count()) * s.rbPerRbg * uint32(c.numSym)

	b := phymac.MakeDciBuilder().
		WithRNTI(d.RNTI).
		WithDirection(phymac.DL).
		WithSymbolsPerSlot(s.symbolsPerSlot).
		WithSymbols(c.symStart, c.numSym).
		WithRbgMask(c.mask).
		WithHarqProcess(pid).
		WithBwpIndex(s.bwpIndex)

	for _, mcs := range c.mcs {
		b = b.WithStream(mcs, s.amc.TbSize(mcs, rbSymbols), 1, 0)
	}

	dci := b.Build()
	alloc := phymac.NewVarTtiAlloc(dci)

	lcids := make(map[uint8]bool)

	var lcidList []uint8

	for stream := 0; stream < dci.NumStreams(); stream++ {
		ops := splitTxOpportunities(dci.TbSize(stream), d.ActiveDlChannels())
		alloc.RlcPdus[stream] = ops

		for _, op := range ops {
			lc, _ := d.LogicalChannel(op.LCID)
			lc.Drain(op.Size)

			if !lcids[op.LCID] {
				lcids[op.LCID] = true
				lcidList = append(lcidList, op.LCID)
			}
		}
	}

	if err := d.DlHarq.AssignNewData(dci, lcidList); err != nil {
		log.Panicf("%s: rnti %d: %v", s.name, d.RNTI, err)
	}

	c.granted = true

	plan.Add(alloc)
}
