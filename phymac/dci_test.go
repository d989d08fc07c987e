package phymac

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Dci", func() {
	var builder DciBuilder

	BeforeEach(func() {
		builder = MakeDciBuilder().
			WithRNTI(7).
			WithDirection(DL).
			WithSymbols(1, 4).
			WithRbgMask(RbgMaskFromIndices(4, 0, 1)).
			WithHarqProcess(3)
	})

	It("should build a data DCI", func() {
		d := builder.WithStream(10, 500, 1, 0).Build()

		Expect(d.RNTI()).To(Equal(uint16(7)))
		Expect(d.SymEnd()).To(Equal(uint8(5)))
		Expect(d.NumRbg()).To(Equal(2))
		Expect(d.NumStreams()).To(Equal(1))
		Expect(d.IsNewData(0)).To(BeTrue())
		Expect(d.TotalTbSize()).To(Equal(uint32(500)))
	})

	It("should not share state with the builder", func() {
		mask := RbgMaskFromIndices(4, 0)
		b := builder.WithRbgMask(mask).WithStream(1, 10, 1, 0)
		d := b.Build()

		mask.Set(3)
		_ = b.WithStream(2, 20, 1, 0)

		Expect(d.NumRbg()).To(Equal(1))
		Expect(d.NumStreams()).To(Equal(1))
	})

	It("should panic if the symbols exceed the slot", func() {
		Expect(func() {
			builder.WithSymbols(12, 3).WithStream(1, 10, 1, 0).Build()
		}).To(Panic())
	})

	It("should panic on zero symbols", func() {
		Expect(func() {
			builder.WithSymbols(0, 0).WithStream(1, 10, 1, 0).Build()
		}).To(Panic())
	})

	It("should panic on a data DCI without streams", func() {
		Expect(func() { builder.Build() }).To(Panic())
	})

	It("should panic on mismatched stream fields", func() {
		Expect(func() {
			builder.WithStreams(
				[]uint8{1, 2}, []uint32{10}, []uint8{1, 1}, []uint8{0, 0})
		}).To(Panic())
	})

	It("should give control DCIs a single empty stream", func() {
		d := builder.WithType(AllocCtrl).Build()

		Expect(d.NumStreams()).To(Equal(1))
		Expect(d.TbSize(0)).To(Equal(uint32(0)))
	})

	It("should derive a retransmission", func() {
		d := builder.WithStream(10, 500, 1, 0).Build()
		r := MakeDciBuilder().From(d).WithSymbols(6, 4).WithStreamRetx(0, 2).Build()

		Expect(r.Mcs(0)).To(Equal(d.Mcs(0)))
		Expect(r.TbSize(0)).To(Equal(d.TbSize(0)))
		Expect(r.Ndi(0)).To(Equal(uint8(0)))
		Expect(r.Rv(0)).To(Equal(uint8(2)))
		Expect(r.HarqProcess()).To(Equal(uint8(3)))
		Expect(d.Rv(0)).To(Equal(uint8(0)))
	})
})
