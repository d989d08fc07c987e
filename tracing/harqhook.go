package tracing

import (
	"fmt"

	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/scheduler"
	"github.com/sarchlab/nrmac/sim"
)

// Task kinds and steps.
const (
	KindDlHarq = "harq_dl"
	KindUlHarq = "harq_ul"

	StepRetx = "retx"
	StepNack = "nack"
)

// Task outcomes, carried in What once a task ends.
const (
	WhatAcked   = "acked"
	WhatDropped = "dropped"
	WhatFlushed = "flushed"
)

type processKey struct {
	rnti uint16
	dir  phymac.Direction
	pid  uint8
}

// HarqHook turns the grants and the HARQ feedback published by a scheduler
// into tasks. A task starts with a new-data grant, gains a step per NACK and
// per retransmission, and ends with the ACK, the drop, or the next new-data
// grant on the same process.
type HarqHook struct {
	tracer   Tracer
	location string
	inflight map[processKey]Task
	nextID   uint64
}

// NewHarqHook creates a hook that reports to the tracer.
func NewHarqHook(tracer Tracer) *HarqHook {
	return &HarqHook{
		tracer:   tracer,
		inflight: make(map[processKey]Task),
	}
}

// CollectTrace lets the tracer collect HARQ tasks from a scheduler.
func CollectTrace(sched *scheduler.Scheduler, tracer Tracer) *HarqHook {
	h := NewHarqHook(tracer)
	h.location = sched.Name()
	sched.AcceptHook(h)

	return h
}

// NumInflight returns the number of tasks that have not ended.
func (h *HarqHook) NumInflight() int {
	return len(h.inflight)
}

// Func dispatches scheduler hook events.
func (h *HarqHook) Func(ctx sim.HookCtx) {
	if h.location == "" {
		if named, ok := ctx.Domain.(sim.Named); ok {
			h.location = named.Name()
		}
	}

	switch ctx.Pos {
	case scheduler.HookPosDlScheduled:
		h.grants(ctx.Item.(scheduler.ScheduledItem), phymac.DL)
	case scheduler.HookPosUlScheduled:
		h.grants(ctx.Item.(scheduler.ScheduledItem), phymac.UL)
	case scheduler.HookPosHarqFeedback:
		h.feedback(ctx.Item.(harq.FeedbackOutcome))
	}
}

func (h *HarqHook) grants(item scheduler.ScheduledItem, dir phymac.Direction) {
	for _, a := range item.Plan.DataAllocations(dir) {
		dci := a.Dci
		key := processKey{dci.RNTI(), dir, dci.HarqProcess()}

		if !dci.IsNewData(0) {
			h.step(key, StepRetx)
			continue
		}

		if _, ok := h.inflight[key]; ok {
			h.end(key, WhatFlushed)
		}

		h.start(key, dci)
	}
}

func (h *HarqHook) feedback(out harq.FeedbackOutcome) {
	fb := out.Feedback
	key := processKey{fb.RNTI, fb.Direction, fb.ProcessID}

	switch {
	case out.Result == harq.ResultDropped:
		h.end(key, WhatDropped)
	case out.Result != harq.ResultApplied:
	case fb.IsReceivedOk():
		h.end(key, WhatAcked)
	default:
		h.step(key, StepNack)
	}
}

func (h *HarqHook) start(key processKey, dci *phymac.Dci) {
	h.nextID++

	kind := KindDlHarq
	if key.dir == phymac.UL {
		kind = KindUlHarq
	}

	task := Task{
		ID:       fmt.Sprintf("%s-%d-%d-%d", kind, key.rnti, key.pid, h.nextID),
		ParentID: fmt.Sprintf("rnti-%d", key.rnti),
		Kind:     kind,
		What:     "newtx",
		Location: h.location,
		Detail:   dci,
	}

	h.inflight[key] = task
	h.tracer.StartTask(task)
}

func (h *HarqHook) step(key processKey, what string) {
	task, ok := h.inflight[key]
	if !ok {
		return
	}

	h.tracer.StepTask(Task{
		ID:    task.ID,
		Kind:  task.Kind,
		Steps: []TaskStep{{What: what}},
	})
}

func (h *HarqHook) end(key processKey, what string) {
	task, ok := h.inflight[key]
	if !ok {
		return
	}

	delete(h.inflight, key)

	task.What = what
	h.tracer.EndTask(task)
}
