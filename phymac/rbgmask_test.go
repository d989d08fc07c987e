package phymac

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RbgMask", func() {
	It("should count and list used RBGs", func() {
		m := RbgMaskFromIndices(6, 1, 4)
		m.Set(5)

		Expect(m.Count()).To(Equal(3))
		Expect(m.Indices()).To(Equal([]int{1, 4, 5}))
		Expect(m.String()).To(Equal("010011"))
	})

	It("should detect overlap", func() {
		a := RbgMaskFromIndices(4, 0, 1)
		b := RbgMaskFromIndices(4, 2, 3)

		Expect(a.Overlaps(b)).To(BeFalse())
		Expect(a.Overlaps(FullRbgMask(4))).To(BeTrue())
	})
})
