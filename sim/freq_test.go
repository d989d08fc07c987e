package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should get period", func() {
		var f = 1 * GHz
		Expect(f.Period()).To(BeNumerically("==", 1e-9))
	})

	It("should get this tick", func() {
		var f = 1 * Hz
		Expect(f.ThisTick(1)).To(BeNumerically("~", 1, 1e-12))
	})

	It("should get the next tick", func() {
		var f = 1 * GHz
		Expect(f.NextTick(102.000000001)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get the next tick, if currTime is not on a tick", func() {
		var f = 1 * GHz
		Expect(f.NextTick(102.0000000011)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get the n cycles later", func() {
		var f = 1 * GHz
		Expect(f.NCyclesLater(12, 102.000000001)).To(
			BeNumerically("~", 102.000000013, 1e-12))
	})

	It("should count cycles", func() {
		f := SlotFreq(0)
		Expect(f.Cycle(0.005)).To(Equal(uint64(5)))
	})

	DescribeTable("slot frequency per numerology",
		func(numerology uint8, period float64) {
			Expect(float64(SlotFreq(numerology).Period())).
				To(BeNumerically("~", period, 1e-12))
		},
		Entry("mu 0", uint8(0), 1e-3),
		Entry("mu 1", uint8(1), 0.5e-3),
		Entry("mu 3", uint8(3), 0.125e-3),
		Entry("mu 6", uint8(6), 1.5625e-5),
	)

	It("should double the slot rate per numerology step", func() {
		Expect(SlotFreq(2)).To(Equal(4 * KHz))
		Expect(SlotFreq(6)).To(Equal(64 * KHz))
	})

	It("should refuse unsupported numerology", func() {
		Expect(func() { SlotFreq(7) }).To(Panic())
	})
})
