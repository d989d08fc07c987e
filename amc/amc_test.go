package amc

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tables", func() {
	DescribeTable("McsFromCqi",
		func(cqi, mcs uint8) {
			Expect(McsFromCqi(cqi)).To(Equal(mcs))
		},
		Entry("no link", uint8(0), uint8(0)),
		Entry("lowest", uint8(1), uint8(0)),
		Entry("cqi 2", uint8(2), uint8(2)),
		Entry("cqi 7", uint8(7), uint8(12)),
		Entry("highest", uint8(15), uint8(28)),
	)

	It("should be monotonic in CQI", func() {
		prev := uint8(0)
		for cqi := uint8(0); cqi <= MaxCqi; cqi++ {
			mcs := McsFromCqi(cqi)
			Expect(mcs).To(BeNumerically(">=", prev))
			prev = mcs
		}
	})

	It("should map spectral efficiency strictly", func() {
		Expect(CqiFromSpectralEfficiency(0.15)).To(Equal(uint8(0)))
		Expect(CqiFromSpectralEfficiency(0.16)).To(Equal(uint8(1)))
		Expect(CqiFromSpectralEfficiency(100)).To(Equal(uint8(MaxCqi)))
		Expect(McsFromSpectralEfficiency(0.19)).To(Equal(uint8(0)))
		Expect(McsFromSpectralEfficiency(100)).To(Equal(uint8(MaxMcs)))
	})

	It("should panic outside the tables", func() {
		Expect(func() { McsSpectralEfficiency(29) }).To(Panic())
		Expect(func() { CqiSpectralEfficiency(16) }).To(Panic())
	})
})

var _ = Describe("Amc", func() {
	var a *Amc

	BeforeEach(func() {
		a = NewNr()
	})

	It("should degrade to the lowest MCS without a usable link", func() {
		cqi, mcs := a.FromSinr(nil)
		Expect(cqi).To(Equal(uint8(0)))
		Expect(mcs).To(Equal(uint8(0)))

		cqi, mcs = a.FromSinr([]float64{math.NaN(), math.Inf(-1)})
		Expect(cqi).To(Equal(uint8(0)))
		Expect(mcs).To(Equal(uint8(0)))
	})

	It("should give the highest CQI on a strong link", func() {
		cqi, mcs := a.FromSinr([]float64{40, 40, 40})
		Expect(cqi).To(Equal(uint8(MaxCqi)))
		Expect(mcs).To(Equal(uint8(MaxMcs)))
	})

	It("should increase with SINR", func() {
		cqiLow, mcsLow := a.FromSinr([]float64{0})
		cqiHigh, mcsHigh := a.FromSinr([]float64{15})

		Expect(cqiHigh).To(BeNumerically(">", cqiLow))
		Expect(mcsHigh).To(BeNumerically(">", mcsLow))
	})

	It("should compute the payload", func() {
		// 11 useful subcarriers, 40 RB symbols, 5.55 bits per RE.
		Expect(a.PayloadSize(28, 40)).To(Equal(uint32(305)))
		Expect(a.TbSize(28, 40)).To(Equal(uint32(302)))
	})

	It("should return zero when the payload cannot carry the CRC", func() {
		Expect(a.TbSize(0, 1)).To(Equal(uint32(0)))
	})

	It("should remove one CRC per code block", func() {
		// 11 * 1400 * 5.55 / 8 = 10683 bytes, 11 code blocks.
		Expect(a.PayloadSize(28, 1400)).To(Equal(uint32(10683)))
		Expect(a.TbSize(28, 1400)).To(Equal(uint32(10683 - 11*3)))
	})

	It("should panic on an unusable BER", func() {
		Expect(func() { New(0, 1) }).To(Panic())
		Expect(func() { New(BerLte, 12) }).To(Panic())
	})

	It("should invert the Shannon model", func() {
		for mcs := uint8(0); mcs <= MaxMcs; mcs++ {
			db := a.RequiredSinrDb(mcs)
			se := a.SpectralEfficiency(math.Pow(10, db/10))
			Expect(se).To(BeNumerically("~", McsSpectralEfficiency(mcs), 1e-9))
		}

		Expect(a.RequiredSinrDb(20)).To(BeNumerically(">", a.RequiredSinrDb(10)))
	})
})
