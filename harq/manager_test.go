package harq

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/nrmac/phymac"
)

var _ = Describe("Manager", func() {
	var (
		mockCtrl *gomock.Controller
		provider *MockEntityProvider
		entity   *Entity
		m        *Manager
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		provider = NewMockEntityProvider(mockCtrl)
		entity = NewEntity(phymac.UL, 4, 1, 3)
		m = NewManager(provider)
		m.SetVerbose(true)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should route feedback to the entity", func() {
		Expect(entity.AssignNewData(newDataDci(2, 100), nil)).To(Succeed())
		provider.EXPECT().HarqEntity(uint16(7), phymac.UL).Return(entity, true)

		out := m.OnFeedback(phymac.HarqFeedback{
			RNTI:      7,
			Direction: phymac.UL,
			ProcessID: 2,
			Streams:   ack(1),
		})

		Expect(out.Result).To(Equal(ResultApplied))
		Expect(entity.Counts(0).Empty).To(Equal(4))
	})

	It("should report feedback for unknown devices", func() {
		provider.EXPECT().HarqEntity(uint16(9), phymac.UL).Return(nil, false)

		outs := m.OnFeedbackList([]phymac.HarqFeedback{{
			RNTI:      9,
			Direction: phymac.UL,
			Streams:   nack(1),
		}})

		Expect(outs).To(HaveLen(1))
		Expect(outs[0].Result).To(Equal(ResultUnknownRNTI))
		Expect(outs[0].Result.IsIgnored()).To(BeTrue())
	})
})
