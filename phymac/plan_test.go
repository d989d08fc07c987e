package phymac

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func dataAlloc(
	rnti uint16,
	dir Direction,
	start, num uint8,
	mask RbgMask,
) VarTtiAlloc {
	return NewVarTtiAlloc(MakeDciBuilder().
		WithRNTI(rnti).
		WithDirection(dir).
		WithSymbols(start, num).
		WithRbgMask(mask).
		WithStream(5, 100, 1, 0).
		Build())
}

func ctrlAlloc(dir Direction, start uint8) VarTtiAlloc {
	return NewVarTtiAlloc(MakeDciBuilder().
		WithType(AllocCtrl).
		WithDirection(dir).
		WithSymbols(start, 1).
		WithRbgMask(FullRbgMask(4)).
		Build())
}

var _ = Describe("SlotAllocationPlan", func() {
	var (
		slot SlotID
		plan *SlotAllocationPlan
	)

	BeforeEach(func() {
		slot = NewSlotID(0, 0, 0, 1)
		plan = NewSlotAllocationPlan(slot, 0)
	})

	It("should keep entries sorted by starting symbol", func() {
		plan.Add(dataAlloc(1, DL, 5, 2, FullRbgMask(4)))
		plan.Add(ctrlAlloc(DL, 0))
		plan.Add(dataAlloc(2, DL, 1, 4, FullRbgMask(4)))
		plan.Add(dataAlloc(3, DL, 1, 4, FullRbgMask(4)))

		Expect(plan.Entries).To(HaveLen(4))
		Expect(plan.Entries[0].Dci.Type()).To(Equal(AllocCtrl))
		Expect(plan.Entries[1].Dci.RNTI()).To(Equal(uint16(2)))
		Expect(plan.Entries[2].Dci.RNTI()).To(Equal(uint16(3)))
		Expect(plan.Entries[3].Dci.RNTI()).To(Equal(uint16(1)))
	})

	It("should count the union of occupied symbols", func() {
		plan.Add(ctrlAlloc(DL, 0))
		plan.Add(dataAlloc(1, DL, 1, 4, RbgMaskFromIndices(4, 0, 1)))
		plan.Add(dataAlloc(2, DL, 1, 4, RbgMaskFromIndices(4, 2, 3)))

		Expect(plan.NumSymAlloc()).To(Equal(5))
	})

	It("should report only control for a control-only plan", func() {
		plan.Add(ctrlAlloc(DL, 0))

		Expect(plan.Kind()).To(Equal(AllocDLOnly))
		Expect(plan.ContainsDlCtrlAllocation()).To(BeTrue())
		Expect(plan.ContainsUlCtrlAllocation()).To(BeFalse())
		Expect(plan.ContainsDataAllocation()).To(BeFalse())
	})

	It("should merge plans of the same slot", func() {
		plan.Add(ctrlAlloc(DL, 0))
		plan.Add(dataAlloc(1, DL, 1, 4, FullRbgMask(4)))

		ul := NewSlotAllocationPlan(slot, 0)
		ul.Add(ctrlAlloc(UL, 13))
		ul.Add(dataAlloc(2, UL, 10, 3, FullRbgMask(4)))

		plan.Merge(ul)

		Expect(plan.Kind()).To(Equal(AllocBoth))
		Expect(plan.Entries).To(HaveLen(4))
		Expect(plan.Entries[3].Dci.SymStart()).To(Equal(uint8(13)))
		Expect(plan.DataAllocations(UL)).To(HaveLen(1))
		Expect(plan.ContainsUlCtrlAllocation()).To(BeTrue())
	})

	It("should remove the data allocations of one rnti", func() {
		plan.Add(ctrlAlloc(DL, 0))
		plan.Add(dataAlloc(1, DL, 1, 4, RbgMaskFromIndices(4, 0, 1)))
		plan.Add(dataAlloc(2, DL, 1, 4, RbgMaskFromIndices(4, 2, 3)))
		plan.Add(dataAlloc(1, UL, 10, 3, FullRbgMask(4)))

		Expect(plan.RemoveRnti(1)).To(Equal(2))
		Expect(plan.Entries).To(HaveLen(2))
		Expect(plan.Entries[0].Dci.Type()).To(Equal(AllocCtrl))
		Expect(plan.Entries[1].Dci.RNTI()).To(Equal(uint16(2)))
		Expect(plan.RemoveRnti(9)).To(BeZero())
	})

	It("should panic when merging plans of different slots", func() {
		other := NewSlotAllocationPlan(slot.Next(), 0)
		Expect(func() { plan.Merge(other) }).To(Panic())
	})

	It("should accept disjoint allocations", func() {
		plan.Add(dataAlloc(1, DL, 1, 4, RbgMaskFromIndices(4, 0, 1)))
		plan.Add(dataAlloc(2, DL, 1, 4, RbgMaskFromIndices(4, 2, 3)))
		plan.Add(dataAlloc(3, DL, 5, 2, FullRbgMask(4)))
		plan.Add(dataAlloc(4, UL, 1, 4, FullRbgMask(4)))

		Expect(plan.CheckNoDoubleBooking()).To(Succeed())
	})

	It("should detect double booking", func() {
		plan.Add(dataAlloc(1, DL, 1, 4, RbgMaskFromIndices(4, 0, 1)))
		plan.Add(dataAlloc(2, DL, 4, 2, RbgMaskFromIndices(4, 1, 2)))

		Expect(plan.CheckNoDoubleBooking()).NotTo(Succeed())
	})
})
