package phymac

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SlotID", func() {
	It("should normalize", func() {
		s := NewSlotID(2, 3, 1, 1)
		Expect(s.Normalized()).To(Equal(uint64((2*10+3)*2 + 1)))
		Expect(FromNormalized(s.Normalized(), 1)).To(Equal(s))
	})

	It("should carry over subframes and frames", func() {
		s := NewSlotID(0, 9, 1, 1)
		Expect(s.Next()).To(Equal(NewSlotID(1, 0, 0, 1)))
		Expect(s.Add(3)).To(Equal(NewSlotID(1, 1, 0, 1)))
	})

	It("should panic on out of range slot", func() {
		Expect(func() { NewSlotID(0, 0, 2, 1) }).To(Panic())
		Expect(func() { NewSlotID(0, 10, 0, 0) }).To(Panic())
		Expect(func() { NewSlotID(0, 0, 0, 7) }).To(Panic())
	})

	It("should compare across numerologies", func() {
		mu0 := NewSlotID(0, 1, 0, 0)
		mu1a := NewSlotID(0, 0, 1, 1)
		mu1b := NewSlotID(0, 1, 0, 1)
		mu1c := NewSlotID(0, 1, 1, 1)

		Expect(mu1a.Compare(mu0)).To(Equal(-1))
		Expect(mu0.Compare(mu1b)).To(Equal(-1))
		Expect(mu1c.Compare(mu0)).To(Equal(1))
		Expect(mu0.Compare(mu0)).To(Equal(0))
		Expect(mu1a.Less(mu1b)).To(BeTrue())
	})

	It("should convert to and from time", func() {
		s := NewSlotID(1, 2, 1, 1)
		Expect(float64(s.Duration())).To(BeNumerically("~", 0.0005, 1e-12))
		Expect(float64(s.StartTime())).To(BeNumerically("~", 0.0125, 1e-12))
		Expect(SlotAt(s.StartTime(), 1)).To(Equal(s))
	})
})
