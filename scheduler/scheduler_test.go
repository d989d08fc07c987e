package scheduler

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sap"
	"github.com/sarchlab/nrmac/sim"
)

var _ = Describe("Scheduler", func() {
	var (
		rec  *planRecorder
		s    *Scheduler
		slot phymac.SlotID
	)

	BeforeEach(func() {
		rec = &planRecorder{}
		s = MakeBuilder().WithSchedUser(rec).Build("Sched")
		slot = phymac.NewSlotID(0, 0, 0, 1)
	})

	It("should panic without a sched user", func() {
		Expect(func() { MakeBuilder().Build("Sched") }).To(Panic())
	})

	Context("with one idle device", func() {
		It("should produce only the control region", func() {
			attach(s, 5, 0)

			s.TriggerDlSlot(slot, nil, phymac.SlotDL)

			plan := rec.lastDl()
			Expect(plan.Entries).To(HaveLen(1))
			Expect(countType(plan, phymac.AllocCtrl)).To(Equal(1))
			Expect(plan.ContainsDataAllocation()).To(BeFalse())
			Expect(s.State()).To(Equal(StateIdle))
		})
	})

	Context("with two devices and a 20-RBG data region", func() {
		BeforeEach(func() {
			s = MakeBuilder().
				WithSchedUser(rec).
				WithSymbolsPerSlot(3).
				WithCtrlSymbols(1, 1).
				WithBandwidth(10, 10).
				WithRbPerRbg(4).
				WithPolicy(PolicyRoundRobin).
				Build("Sched")

			attach(s, 1, 0)
			attach(s, 2, 0)
			dlData(s, 1, 1000, 15)
			dlData(s, 2, 1000, 15)
		})

		It("should split it into two 10-RBG grants", func() {
			s.TriggerDlSlot(slot, nil, phymac.SlotDL)

			data := rec.lastDl().DataAllocations(phymac.DL)
			Expect(data).To(HaveLen(2))

			a, b := data[0].Dci, data[1].Dci
			Expect(a.RNTI()).To(Equal(uint16(1)))
			Expect(b.RNTI()).To(Equal(uint16(2)))
			Expect(a.NumRbg()).To(Equal(10))
			Expect(b.NumRbg()).To(Equal(10))
			Expect(a.OverlapsSymbols(b)).To(BeFalse())
			Expect(rec.lastDl().CheckNoDoubleBooking()).To(Succeed())
		})

		It("should rotate the first device between slots", func() {
			s.TriggerDlSlot(slot, nil, phymac.SlotDL)
			s.TriggerDlSlot(slot.Next(), nil, phymac.SlotDL)

			data := rec.lastDl().DataAllocations(phymac.DL)
			Expect(data).To(HaveLen(2))
			Expect(data[0].Dci.RNTI()).To(Equal(uint16(2)))
		})

		It("should split the block among RLC channels", func() {
			s.TriggerDlSlot(slot, nil, phymac.SlotDL)

			alloc := rec.lastDl().DataAllocations(phymac.DL)[0]
			Expect(alloc.RlcPdus[0]).To(HaveLen(1))
			Expect(alloc.RlcPdus[0][0].Size).
				To(Equal(alloc.Dci.TbSize(0) - 3))

			d := s.Registry().MustDevice(1)
			Expect(d.DlBuffered()).To(Equal(1000 - alloc.RlcPdus[0][0].Size))
		})
	})

	Context("with HARQ", func() {
		ackFor := func(pid uint8, status phymac.HarqStatus) []phymac.HarqFeedback {
			return []phymac.HarqFeedback{{
				RNTI:      7,
				Direction: phymac.DL,
				ProcessID: pid,
				Streams:   []phymac.HarqStatus{status},
			}}
		}

		BeforeEach(func() {
			attach(s, 7, 0)
			dlData(s, 7, 100000, 15)
		})

		It("should retransmit a NACKed process with the next RV", func() {
			s.TriggerDlSlot(slot, nil, phymac.SlotDL)
			for pid := uint8(0); pid < 3; pid++ {
				slot = slot.Next()
				s.TriggerDlSlot(slot, ackFor(pid, phymac.HarqAck), phymac.SlotDL)
			}

			data := rec.lastDl().DataAllocations(phymac.DL)
			Expect(data).To(HaveLen(1))

			first := data[0].Dci
			Expect(first.HarqProcess()).To(Equal(uint8(3)))
			Expect(first.Ndi(0)).To(Equal(uint8(1)))
			Expect(first.Rv(0)).To(Equal(uint8(0)))

			slot = slot.Next()
			s.TriggerDlSlot(slot, ackFor(3, phymac.HarqNack), phymac.SlotDL)

			data = rec.lastDl().DataAllocations(phymac.DL)
			Expect(data).To(HaveLen(1))

			retx := data[0].Dci
			Expect(retx.RNTI()).To(Equal(uint16(7)))
			Expect(retx.HarqProcess()).To(Equal(uint8(3)))
			Expect(retx.Ndi(0)).To(Equal(uint8(0)))
			Expect(retx.Rv(0)).To(Equal(uint8(2)))
			Expect(retx.Mcs(0)).To(Equal(first.Mcs(0)))
			Expect(retx.TbSize(0)).To(Equal(first.TbSize(0)))
			Expect(retx.NumRbg()).To(Equal(first.NumRbg()))
			Expect(retx.NumSym()).To(Equal(first.NumSym()))
		})

		It("should report stale feedback", func() {
			var dropped []DroppedFeedback
			var outcomes []harq.FeedbackOutcome

			s.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
				switch ctx.Pos {
				case HookPosFeedbackDropped:
					dropped = append(dropped, ctx.Item.(DroppedFeedback))
				case HookPosHarqFeedback:
					outcomes = append(outcomes, ctx.Item.(harq.FeedbackOutcome))
				}
			}))

			s.TriggerDlSlot(slot, ackFor(5, phymac.HarqAck), phymac.SlotDL)

			Expect(outcomes).To(HaveLen(1))
			Expect(outcomes[0].Result).To(Equal(harq.ResultStale))
			Expect(dropped).To(ConsistOf(DroppedFeedback{
				Kind:   FeedbackDlHarq,
				RNTI:   7,
				Slot:   slot,
				Reason: "STALE",
			}))
		})

		It("should keep every process accounted for", func() {
			for i := 0; i < 30; i++ {
				var fb []phymac.HarqFeedback

				if len(rec.dl) > 0 {
					for _, a := range rec.lastDl().DataAllocations(phymac.DL) {
						status := phymac.HarqAck
						if i%3 == 0 {
							status = phymac.HarqNack
						}

						fb = append(fb, ackFor(a.Dci.HarqProcess(), status)...)
					}
				}

				s.TriggerDlSlot(slot, fb, phymac.SlotDL)
				slot = slot.Next()

				e := s.Registry().MustDevice(7).DlHarq
				Expect(e.Counts(0).Total()).To(Equal(e.NumProcesses()))
			}
		})
	})

	Context("when collecting feedback", func() {
		It("should drain every DL CQI report exactly once", func() {
			var drained []FeedbackCounts
			s.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
				if ctx.Pos == HookPosFeedbackDrained {
					drained = append(drained, ctx.Item.(FeedbackCounts))
				}
			}))

			attach(s, 5, 0)
			for i := 0; i < 3; i++ {
				s.SubmitDlCqi(phymac.DlCqiReport{RNTI: 5, WidebandCqi: []uint8{9}})
			}

			Expect(s.State()).To(Equal(StateCollecting))
			Expect(s.QueuedFeedback().DlCqi).To(Equal(3))

			s.TriggerDlSlot(slot, nil, phymac.SlotDL)
			Expect(s.QueuedFeedback().DlCqi).To(Equal(0))

			s.TriggerDlSlot(slot, nil, phymac.SlotDL)
			plan := rec.lastDl()
			Expect(plan.Entries).To(HaveLen(1))
			Expect(plan.ContainsDataAllocation()).To(BeFalse())

			Expect(drained).To(HaveLen(2))
			Expect(drained[0].DlCqi).To(Equal(3))
			Expect(drained[1].DlCqi).To(Equal(0))
		})

		It("should drop reports of unknown devices", func() {
			var dropped []DroppedFeedback
			s.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
				if ctx.Pos == HookPosFeedbackDropped {
					dropped = append(dropped, ctx.Item.(DroppedFeedback))
				}
			}))

			s.SubmitDlCqi(phymac.DlCqiReport{RNTI: 9, WidebandCqi: []uint8{9}})
			s.SubmitMacControlInfo([]phymac.BsrReport{{RNTI: 9}})
			s.SubmitSchedulingRequest(9)

			s.TriggerDlSlot(slot, nil, phymac.SlotDL)
			s.TriggerUlSlot(slot, nil, phymac.SlotUL)

			Expect(dropped).To(HaveLen(3))
			Expect(dropped[0].Kind).To(Equal(FeedbackDlCqi))
			Expect(dropped[1].Kind).To(Equal(FeedbackBsr))
			Expect(dropped[2].Kind).To(Equal(FeedbackSr))
		})

		It("should derive the MCS from CQI, capped", func() {
			s = MakeBuilder().WithSchedUser(rec).WithMaxMcs(20, 28).Build("Sched")
			attach(s, 5, 0)
			dlData(s, 5, 500, 15)

			s.TriggerDlSlot(slot, nil, phymac.SlotDL)

			Expect(s.Registry().MustDevice(5).Dl.Mcs[0]).To(Equal(uint8(20)))
			Expect(rec.lastDl().DataAllocations(phymac.DL)[0].Dci.Mcs(0)).
				To(Equal(uint8(20)))
		})

		It("should use a fixed MCS", func() {
			s = MakeBuilder().WithSchedUser(rec).WithFixedMcs(5, 5).Build("Sched")
			attach(s, 5, 0)
			dlData(s, 5, 500, 15)

			s.TriggerDlSlot(slot, nil, phymac.SlotDL)

			Expect(rec.lastDl().DataAllocations(phymac.DL)[0].Dci.Mcs(0)).
				To(Equal(uint8(5)))
		})
	})

	Context("with TDD slots", func() {
		BeforeEach(func() {
			attach(s, 5, 0)
			dlData(s, 5, 100000, 15)
		})

		It("should end an S slot with UL control", func() {
			s.TriggerUlSlot(slot, nil, phymac.SlotS)
			Expect(rec.lastUl().IsEmpty()).To(BeTrue())

			s.TriggerDlSlot(slot, nil, phymac.SlotS)

			plan := rec.lastDl()
			Expect(plan.ContainsUlCtrlAllocation()).To(BeTrue())
			Expect(plan.Kind()).To(Equal(phymac.AllocBoth))

			last := plan.Entries[len(plan.Entries)-1].Dci
			Expect(last.Direction()).To(Equal(phymac.UL))
			Expect(last.SymStart()).To(Equal(uint8(13)))

			for _, a := range plan.DataAllocations(phymac.DL) {
				Expect(a.Dci.SymEnd()).To(BeNumerically("<=", 13))
			}
		})

		It("should only carry DL control in a UL slot", func() {
			s.TriggerDlSlot(slot, nil, phymac.SlotUL)

			plan := rec.lastDl()
			Expect(plan.Entries).To(HaveLen(1))
			Expect(plan.ContainsDlCtrlAllocation()).To(BeTrue())
		})

		It("should give an empty UL plan in a DL slot", func() {
			s.TriggerUlSlot(slot, nil, phymac.SlotDL)
			Expect(rec.lastUl().IsEmpty()).To(BeTrue())
		})

		It("should share an F slot between UL and DL", func() {
			s.SubmitMacControlInfo([]phymac.BsrReport{{
				RNTI: 5, Levels: [phymac.NumLcgs]uint8{0, 8, 0, 0},
			}})

			s.TriggerUlSlot(slot, nil, phymac.SlotF)
			ul := rec.lastUl()
			Expect(ul.DataAllocations(phymac.UL)).To(HaveLen(1))
			ulStart := ul.Entries[0].Dci.SymStart()

			s.TriggerDlSlot(slot, nil, phymac.SlotF)
			dl := rec.lastDl()
			Expect(dl.DataAllocations(phymac.DL)).NotTo(BeEmpty())

			for _, a := range dl.DataAllocations(phymac.DL) {
				Expect(a.Dci.SymEnd()).To(BeNumerically("<=", ulStart))
			}

			dl.Merge(ul)
			Expect(dl.CheckNoDoubleBooking()).To(Succeed())
			Expect(dl.Kind()).To(Equal(phymac.AllocBoth))
		})
	})

	Context("in the UL", func() {
		BeforeEach(func() {
			attach(s, 5, 0)
		})

		It("should grant a scheduling request", func() {
			s.SubmitSchedulingRequest(5)
			s.TriggerUlSlot(slot, nil, phymac.SlotUL)

			plan := rec.lastUl()
			data := plan.DataAllocations(phymac.UL)
			Expect(data).To(HaveLen(1))
			Expect(data[0].Dci.RNTI()).To(Equal(uint16(5)))
			Expect(data[0].Dci.SymStart()).To(Equal(uint8(12)))
			Expect(data[0].Dci.NumSym()).To(Equal(uint8(1)))
			Expect(data[0].Dci.TbSize(0)).To(BeNumerically(">=", 15))
			Expect(plan.ContainsUlCtrlAllocation()).To(BeTrue())
			Expect(s.Registry().MustDevice(5).UlBuffered()).To(BeZero())
		})

		It("should allocate UL data backward from the end", func() {
			attach(s, 6, 0)
			s.SubmitMacControlInfo([]phymac.BsrReport{
				{RNTI: 5, Levels: [phymac.NumLcgs]uint8{10, 0, 0, 0}},
				{RNTI: 6, Levels: [phymac.NumLcgs]uint8{10, 0, 0, 0}},
			})
			s.TriggerUlSlot(slot, nil, phymac.SlotUL)

			data := rec.lastUl().DataAllocations(phymac.UL)
			Expect(data).To(HaveLen(2))
			Expect(data[1].Dci.RNTI()).To(Equal(uint16(5)))
			Expect(data[1].Dci.SymEnd()).To(Equal(uint8(13)))
			Expect(data[0].Dci.SymEnd()).To(Equal(data[1].Dci.SymStart()))
		})

		It("should sound one device per period", func() {
			s = MakeBuilder().WithSchedUser(rec).WithSrsPeriodicity(2).Build("Sched")
			attach(s, 5, 0)
			attach(s, 6, 0)

			s.TriggerUlSlot(slot, nil, phymac.SlotUL)
			Expect(countType(rec.lastUl(), phymac.AllocSrs)).To(Equal(1))
			Expect(rec.lastUl().Entries[0].Dci.RNTI()).To(Equal(uint16(5)))

			s.TriggerUlSlot(slot.Next(), nil, phymac.SlotUL)
			Expect(countType(rec.lastUl(), phymac.AllocSrs)).To(Equal(0))

			s.TriggerUlSlot(slot.Add(2), nil, phymac.SlotUL)
			Expect(rec.lastUl().Entries[0].Dci.RNTI()).To(Equal(uint16(6)))
		})
	})

	Context("with a mocked user", func() {
		var (
			mockCtrl   *gomock.Controller
			schedUser  *MockSchedUser
			cschedUser *MockCschedUser
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			schedUser = NewMockSchedUser(mockCtrl)
			cschedUser = NewMockCschedUser(mockCtrl)
			s = MakeBuilder().
				WithSchedUser(schedUser).
				WithCschedUser(cschedUser).
				Build("Sched")
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should confirm configuration after applying it", func() {
			cschedUser.EXPECT().CellConfigCnf(sap.Success)
			cschedUser.EXPECT().
				DeviceConfigCnf(uint16(3), sap.Success).
				Do(func(uint16, sap.Result) {
					_, ok := s.Registry().Device(3)
					Expect(ok).To(BeTrue())
				})
			cschedUser.EXPECT().DeviceConfigCnf(uint16(3), sap.Failure)
			cschedUser.EXPECT().LogicalChannelConfigCnf(uint16(4), uint8(1), sap.Failure)
			cschedUser.EXPECT().LogicalChannelReleaseCnf(uint16(3), uint8(1), sap.Failure)
			cschedUser.EXPECT().DeviceReleaseCnf(uint16(3), sap.Success)
			cschedUser.EXPECT().DeviceReleaseCnf(uint16(3), sap.Success)

			s.ConfigureCell(sap.CellConfig{DlBandwidthRbg: 10, UlBandwidthRbg: 10})
			s.ConfigureDevice(sap.DeviceConfig{RNTI: 3})
			s.ConfigureDevice(sap.DeviceConfig{RNTI: 3})
			s.ConfigureLogicalChannel(4, sap.LogicalChannelConfig{LCID: 1}, false)
			s.ReleaseLogicalChannel(3, 1)
			s.ReleaseDevice(3)
			s.ReleaseDevice(3)

			Expect(s.Registry().Len()).To(Equal(0))
		})

		It("should deliver the plan before the trigger returns", func() {
			delivered := false
			schedUser.EXPECT().
				DlConfigInd(gomock.Any()).
				Do(func(p sap.DlConfigIndParams) {
					Expect(p.Slot).To(Equal(slot))
					Expect(s.State()).To(Equal(StateAllocating))
					delivered = true
				})

			s.TriggerDlSlot(slot, nil, phymac.SlotDL)

			Expect(delivered).To(BeTrue())
			Expect(s.State()).To(Equal(StateIdle))
		})

		It("should panic on a re-entrant trigger", func() {
			schedUser.EXPECT().
				DlConfigInd(gomock.Any()).
				Do(func(sap.DlConfigIndParams) {
					s.TriggerDlSlot(slot.Next(), nil, phymac.SlotDL)
				})

			Expect(func() {
				s.TriggerDlSlot(slot, nil, phymac.SlotDL)
			}).To(Panic())
		})

		It("should answer random access", func() {
			schedUser.EXPECT().
				DlConfigInd(gomock.Any()).
				Do(func(p sap.DlConfigIndParams) {
					Expect(p.Rars).To(ConsistOf(phymac.RarElement{
						RNTI: 11, PreambleID: 4, Slot: slot,
					}))
				})

			s.SubmitRachInfo([]phymac.RachInfo{{RNTI: 11, PreambleID: 4}})
			s.TriggerDlSlot(slot, nil, phymac.SlotDL)
		})
	})
})
