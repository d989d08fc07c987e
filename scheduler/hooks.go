package scheduler

import (
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sim"
)

// HookPosDlScheduled marks a finished DL trigger. Item is a ScheduledItem.
var HookPosDlScheduled = &sim.HookPos{Name: "DlScheduled"}

// HookPosUlScheduled marks a finished UL trigger. Item is a ScheduledItem.
var HookPosUlScheduled = &sim.HookPos{Name: "UlScheduled"}

// HookPosHarqFeedback marks applied HARQ feedback. Item is a
// harq.FeedbackOutcome.
var HookPosHarqFeedback = &sim.HookPos{Name: "HarqFeedback"}

// HookPosFeedbackDropped marks feedback that could not be used. Item is a
// DroppedFeedback.
var HookPosFeedbackDropped = &sim.HookPos{Name: "FeedbackDropped"}

// HookPosFeedbackDrained marks the start of a trigger. Item is the
// FeedbackCounts the trigger consumes; Detail is the direction.
var HookPosFeedbackDrained = &sim.HookPos{Name: "FeedbackDrained"}

// FeedbackKind names a feedback category.
type FeedbackKind string

// Feedback categories.
const (
	FeedbackDlCqi     FeedbackKind = "dl_cqi"
	FeedbackUlCqi     FeedbackKind = "ul_cqi"
	FeedbackBsr       FeedbackKind = "bsr"
	FeedbackSr        FeedbackKind = "sr"
	FeedbackRlcBuffer FeedbackKind = "rlc_buffer"
	FeedbackDlHarq    FeedbackKind = "dl_harq"
	FeedbackUlHarq    FeedbackKind = "ul_harq"
)

// DroppedFeedback describes a feedback record that was ignored.
type DroppedFeedback struct {
	Kind   FeedbackKind
	RNTI   uint16
	Slot   phymac.SlotID
	Reason string
}

// ScheduledItem is the result of one trigger.
type ScheduledItem struct {
	Plan     *phymac.SlotAllocationPlan
	SlotType phymac.SlotType
	Rars     []phymac.RarElement
}
