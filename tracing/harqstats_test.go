package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nrmac/sim"
)

var _ = Describe("HarqStatsTracer", func() {
	var (
		c *clock
		t *HarqStatsTracer
	)

	BeforeEach(func() {
		c = &clock{}
		t = NewHarqStatsTracer(c, func(t Task) bool {
			return t.Kind == KindDlHarq
		})
	})

	It("should average latency per kind", func() {
		t.StartTask(Task{ID: "a", Kind: KindDlHarq})
		t.StartTask(Task{ID: "b", Kind: KindUlHarq})
		c.now = 2
		t.StartTask(Task{ID: "c", Kind: KindDlHarq})
		c.now = 4
		t.EndTask(Task{ID: "a", What: WhatAcked})
		t.EndTask(Task{ID: "b", What: WhatAcked})
		t.EndTask(Task{ID: "c", What: WhatDropped})

		s := t.Stats(KindDlHarq)
		Expect(s.Completed).To(Equal(uint64(2)))
		Expect(s.AverageTime).To(Equal(sim.VTimeInSec(3)))
		Expect(s.MaxTime).To(Equal(sim.VTimeInSec(4)))
		Expect(s.Outcomes[WhatAcked]).To(Equal(uint64(1)))
		Expect(s.Outcomes[WhatDropped]).To(Equal(uint64(1)))
		Expect(t.Stats(KindUlHarq).Completed).To(BeZero())
		Expect(t.NumInflight()).To(BeZero())
	})

	It("should count each retransmitted task once", func() {
		t.StartTask(Task{ID: "a", Kind: KindDlHarq})
		t.StepTask(Task{ID: "a", Steps: []TaskStep{{What: StepNack}}})
		t.StepTask(Task{ID: "a", Steps: []TaskStep{{What: StepRetx}}})
		t.StepTask(Task{ID: "a", Steps: []TaskStep{{What: StepNack}}})
		t.StepTask(Task{ID: "a", Steps: []TaskStep{{What: StepRetx}}})
		t.StepTask(Task{ID: "gone", Steps: []TaskStep{{What: StepNack}}})

		s := t.Stats(KindDlHarq)
		Expect(s.Steps[StepNack]).To(Equal(uint64(2)))
		Expect(s.Retransmitted()).To(Equal(uint64(1)))
		Expect(t.NumInflight()).To(Equal(1))
	})

	It("should hand out copies", func() {
		t.StartTask(Task{ID: "a", Kind: KindDlHarq})
		t.EndTask(Task{ID: "a", What: WhatAcked})

		s := t.Stats(KindDlHarq)
		s.Outcomes[WhatAcked] = 10

		Expect(t.Stats(KindDlHarq).Outcomes[WhatAcked]).To(Equal(uint64(1)))
	})
})

var _ = Describe("MultiTracer", func() {
	It("should forward to every tracer", func() {
		c := &clock{}
		a := NewHarqStatsTracer(c, nil)
		b := NewHarqStatsTracer(c, nil)
		m := MultiTracer{a, b}

		m.StartTask(Task{ID: "x", Kind: KindUlHarq})
		m.StepTask(Task{ID: "x", Steps: []TaskStep{{What: StepNack}}})
		c.now = 1
		m.EndTask(Task{ID: "x", What: WhatFlushed})

		for _, tr := range []*HarqStatsTracer{a, b} {
			s := tr.Stats(KindUlHarq)
			Expect(s.Completed).To(Equal(uint64(1)))
			Expect(s.Steps[StepNack]).To(Equal(uint64(1)))
			Expect(s.Outcomes[WhatFlushed]).To(Equal(uint64(1)))
		}
	})
})
