package harq

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nrmac/phymac"
)

func newDataDci(pid uint8, tbs ...uint32) *phymac.Dci {
	b := phymac.MakeDciBuilder().
		WithRNTI(7).
		WithSymbols(1, 4).
		WithRbgMask(phymac.FullRbgMask(4)).
		WithHarqProcess(pid)

	for _, t := range tbs {
		b = b.WithStream(10, t, 1, 0)
	}

	return b.Build()
}

func ack(n int) []phymac.HarqStatus {
	s := make([]phymac.HarqStatus, n)
	for i := range s {
		s[i] = phymac.HarqAck
	}

	return s
}

func nack(n int) []phymac.HarqStatus {
	s := make([]phymac.HarqStatus, n)
	for i := range s {
		s[i] = phymac.HarqNack
	}

	return s
}

var _ = Describe("NextRv", func() {
	It("should cycle 0, 2, 3, 1", func() {
		Expect(NextRv(0)).To(Equal(uint8(2)))
		Expect(NextRv(2)).To(Equal(uint8(3)))
		Expect(NextRv(3)).To(Equal(uint8(1)))
		Expect(NextRv(1)).To(Equal(uint8(0)))
	})
})

var _ = Describe("Entity", func() {
	var e *Entity

	BeforeEach(func() {
		e = NewEntity(phymac.DL, 4, 1, 2)
	})

	conserved := func() {
		Expect(e.Counts(0).Total()).To(Equal(e.NumProcesses()))
	}

	It("should hand out processes in round-robin order", func() {
		for i := uint8(0); i < 4; i++ {
			pid, ok := e.NextFree()
			Expect(ok).To(BeTrue())
			Expect(pid).To(Equal(i))
			Expect(e.AssignNewData(newDataDci(pid, 100), []uint8{1})).To(Succeed())
			conserved()
		}

		_, ok := e.NextFree()
		Expect(ok).To(BeFalse())

		Expect(e.OnFeedback(1, ack(1))).To(Equal(ResultApplied))
		Expect(e.OnFeedback(0, ack(1))).To(Equal(ResultApplied))

		pid, ok := e.NextFree()
		Expect(ok).To(BeTrue())
		Expect(pid).To(Equal(uint8(0)))
		conserved()
	})

	It("should reuse the process after the most recent one first", func() {
		Expect(e.AssignNewData(newDataDci(0, 100), nil)).To(Succeed())
		Expect(e.OnFeedback(0, ack(1))).To(Equal(ResultApplied))

		pid, _ := e.NextFree()
		Expect(pid).To(Equal(uint8(1)))
	})

	It("should refuse new data on a busy process", func() {
		Expect(e.AssignNewData(newDataDci(2, 100), nil)).To(Succeed())
		Expect(e.AssignNewData(newDataDci(2, 100), nil)).
			To(MatchError(ErrProcessBusy))
	})

	It("should release the payload on ACK", func() {
		Expect(e.AssignNewData(newDataDci(0, 100), []uint8{3})).To(Succeed())
		e.SetPayload(0, 0, "tb")
		Expect(e.Payload(0, 0)).To(Equal("tb"))

		e.OnFeedback(0, ack(1))

		p, _ := e.Process(0)
		Expect(p.Status(0)).To(Equal(StatusEmpty))
		Expect(p.Dci()).To(BeNil())
		Expect(e.Payload(0, 0)).To(BeNil())
	})

	It("should keep the payload on NACK and retransmit", func() {
		d := newDataDci(0, 100)
		Expect(e.AssignNewData(d, []uint8{3})).To(Succeed())
		e.SetPayload(0, 0, "tb")

		Expect(e.OnFeedback(0, nack(1))).To(Equal(ResultApplied))
		conserved()

		pending := e.PendingRetransmissions()
		Expect(pending).To(HaveLen(1))
		Expect(pending[0].Dci()).To(BeIdenticalTo(d))
		Expect(e.Payload(0, 0)).To(Equal("tb"))

		retx := phymac.MakeDciBuilder().From(d).WithStreamRetx(0, NextRv(0)).Build()
		e.MarkRetransmitted(retx)

		p, _ := e.Process(0)
		Expect(p.Status(0)).To(Equal(StatusAwaitingFeedback))
		Expect(p.Retx(0)).To(Equal(uint8(1)))
		Expect(p.Dci().Rv(0)).To(Equal(uint8(2)))
		Expect(e.PendingRetransmissions()).To(BeEmpty())
	})

	It("should drop the block after the maximum retransmissions", func() {
		d := newDataDci(0, 100)
		Expect(e.AssignNewData(d, nil)).To(Succeed())

		for i := 0; i < 2; i++ {
			Expect(e.OnFeedback(0, nack(1))).To(Equal(ResultApplied))
			e.MarkRetransmitted(d)
		}

		Expect(e.OnFeedback(0, nack(1))).To(Equal(ResultDropped))

		p, _ := e.Process(0)
		Expect(p.IsEmpty()).To(BeTrue())
		Expect(e.NumDropped()).To(Equal(uint64(1)))
		conserved()
	})

	It("should list retransmissions oldest NACK first", func() {
		for pid := uint8(0); pid < 3; pid++ {
			Expect(e.AssignNewData(newDataDci(pid, 100), nil)).To(Succeed())
		}

		e.OnFeedback(2, nack(1))
		e.OnFeedback(0, nack(1))
		e.OnFeedback(1, nack(1))

		pending := e.PendingRetransmissions()
		Expect(pending).To(HaveLen(3))
		Expect(pending[0].ID()).To(Equal(uint8(2)))
		Expect(pending[1].ID()).To(Equal(uint8(0)))
		Expect(pending[2].ID()).To(Equal(uint8(1)))
	})

	It("should ignore stale and out of range feedback", func() {
		Expect(e.OnFeedback(1, ack(1))).To(Equal(ResultStale))
		Expect(e.OnFeedback(9, ack(1))).To(Equal(ResultOutOfRange))

		Expect(e.AssignNewData(newDataDci(1, 100), nil)).To(Succeed())
		e.OnFeedback(1, nack(1))

		Expect(e.OnFeedback(1, nack(1))).To(Equal(ResultStale))
		Expect(e.Counts(0)).To(Equal(Counts{Empty: 3, Nacked: 1}))
	})

	It("should never move an empty process to NACKED", func() {
		Expect(e.OnFeedback(0, nack(1))).To(Equal(ResultStale))

		p, _ := e.Process(0)
		Expect(p.Status(0)).To(Equal(StatusEmpty))
	})

	It("should leave state unchanged on NONE", func() {
		Expect(e.AssignNewData(newDataDci(0, 100), nil)).To(Succeed())
		Expect(e.OnFeedback(0, []phymac.HarqStatus{phymac.HarqNone})).
			To(Equal(ResultApplied))

		p, _ := e.Process(0)
		Expect(p.Status(0)).To(Equal(StatusAwaitingFeedback))
	})

	It("should release processes that never get feedback", func() {
		Expect(e.AssignNewData(newDataDci(0, 100), nil)).To(Succeed())

		for i := 0; i < 3; i++ {
			Expect(e.AgeTimers()).To(BeEmpty())
		}

		Expect(e.AgeTimers()).To(Equal([]uint8{0}))
		Expect(e.NumTimedOut()).To(Equal(uint64(1)))
		conserved()
	})

	Context("with two streams", func() {
		BeforeEach(func() {
			e = NewEntity(phymac.DL, 2, 2, 3)
		})

		It("should track streams independently", func() {
			Expect(e.AssignNewData(newDataDci(0, 100, 80), nil)).To(Succeed())

			e.OnFeedback(0, []phymac.HarqStatus{phymac.HarqAck, phymac.HarqNack})

			p, _ := e.Process(0)
			Expect(p.Status(0)).To(Equal(StatusEmpty))
			Expect(p.Status(1)).To(Equal(StatusNacked))
			Expect(e.Counts(0).Total()).To(Equal(2))
			Expect(e.Counts(1).Total()).To(Equal(2))

			_, ok := e.NextFree()
			Expect(ok).To(BeTrue())
		})

		It("should leave a zero-size stream empty", func() {
			Expect(e.AssignNewData(newDataDci(1, 100, 0), nil)).To(Succeed())

			p, _ := e.Process(1)
			Expect(p.Status(0)).To(Equal(StatusAwaitingFeedback))
			Expect(p.Status(1)).To(Equal(StatusEmpty))
		})
	})
})
