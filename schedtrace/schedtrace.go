// Package schedtrace records every allocation that a scheduler decides into
// a DataRecorder table, one row per DCI, plus one row per dropped feedback.
package schedtrace

import (
	"github.com/sarchlab/nrmac/datarecording"
	"github.com/sarchlab/nrmac/scheduler"
	"github.com/sarchlab/nrmac/sim"
)

// Table names.
const (
	DciTableName  = "dci"
	DropTableName = "dropped_feedback"
)

// DciEntry is one row of the DCI table.
type DciEntry struct {
	Time      float64
	Slot      uint64
	SlotType  string
	Direction string
	Type      string
	RNTI      uint16
	SymStart  uint8
	NumSym    uint8
	RbgMask   string
	NumRbg    int
	Harq      uint8
	Mcs       uint8
	TbSize    uint32
	Ndi       uint8
	Rv        uint8
}

// DropEntry is one row of the dropped feedback table.
type DropEntry struct {
	Time   float64
	Slot   uint64
	Kind   string
	RNTI   uint16
	Reason string
}

// Hook writes scheduler decisions into a recorder.
type Hook struct {
	timeTeller sim.TimeTeller
	recorder   datarecording.DataRecorder
	numRows    uint64
}

// NewHook creates the tables and returns a hook that fills them.
func NewHook(
	timeTeller sim.TimeTeller,
	recorder datarecording.DataRecorder,
) *Hook {
	recorder.CreateTable(DciTableName, DciEntry{})
	recorder.CreateTable(DropTableName, DropEntry{})

	return &Hook{
		timeTeller: timeTeller,
		recorder:   recorder,
	}
}

// NumRows returns how many DCI rows were written.
func (h *Hook) NumRows() uint64 {
	return h.numRows
}

// Func records the plans and the dropped feedback.
func (h *Hook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case scheduler.HookPosDlScheduled, scheduler.HookPosUlScheduled:
		h.recordPlan(ctx.Item.(scheduler.ScheduledItem))
	case scheduler.HookPosFeedbackDropped:
		h.recordDrop(ctx.Item.(scheduler.DroppedFeedback))
	}
}

func (h *Hook) recordPlan(item scheduler.ScheduledItem) {
	now := float64(h.timeTeller.CurrentTime())
	slot := item.Plan.Slot.Normalized()

	for _, a := range item.Plan.Entries {
		d := a.Dci
		for s := 0; s < d.NumStreams(); s++ {
			h.recorder.InsertData(DciTableName, DciEntry{
				Time:      now,
				Slot:      slot,
				SlotType:  item.SlotType.String(),
				Direction: d.Direction().String(),
				Type:      d.Type().String(),
				RNTI:      d.RNTI(),
				SymStart:  d.SymStart(),
				NumSym:    d.NumSym(),
				RbgMask:   d.RbgMask().String(),
				NumRbg:    d.NumRbg(),
				Harq:      d.HarqProcess(),
				Mcs:       d.Mcs(s),
				TbSize:    d.TbSize(s),
				Ndi:       d.Ndi(s),
				Rv:        d.Rv(s),
			})
			h.numRows++
		}
	}
}

func (h *Hook) recordDrop(drop scheduler.DroppedFeedback) {
	h.recorder.InsertData(DropTableName, DropEntry{
		Time:   float64(h.timeTeller.CurrentTime()),
		Slot:   drop.Slot.Normalized(),
		Kind:   string(drop.Kind),
		RNTI:   drop.RNTI,
		Reason: drop.Reason,
	})
}
