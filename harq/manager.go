package harq

import (
	"log"

	"github.com/sarchlab/nrmac/phymac"
)

// EntityProvider finds the HARQ entity of a device.
type EntityProvider interface {
	HarqEntity(rnti uint16, dir phymac.Direction) (*Entity, bool)
}

// FeedbackOutcome tells what happened to one piece of feedback.
type FeedbackOutcome struct {
	Feedback phymac.HarqFeedback
	Result   Result
}

// A Manager routes HARQ feedback to the entity of each device. Feedback that
// does not match any process in flight is logged and ignored.
type Manager struct {
	provider EntityProvider
	verbose  bool
}

// NewManager creates a manager that looks entities up in provider.
func NewManager(provider EntityProvider) *Manager {
	return &Manager{provider: provider}
}

// SetVerbose turns logging of ignored feedback on or off.
func (m *Manager) SetVerbose(v bool) {
	m.verbose = v
}

// OnFeedback applies one piece of feedback.
func (m *Manager) OnFeedback(fb phymac.HarqFeedback) FeedbackOutcome {
	out := FeedbackOutcome{Feedback: fb}

	e, ok := m.provider.HarqEntity(fb.RNTI, fb.Direction)
	if !ok {
		out.Result = ResultUnknownRNTI
	} else {
		out.Result = e.OnFeedback(fb.ProcessID, fb.Streams)
	}

	if out.Result.IsIgnored() && m.verbose {
		log.Printf("harq: ignoring %s feedback rnti %d process %d: %s",
			fb.Direction, fb.RNTI, fb.ProcessID, out.Result)
	}

	return out
}

// OnFeedbackList applies feedback in order.
func (m *Manager) OnFeedbackList(fbs []phymac.HarqFeedback) []FeedbackOutcome {
	outs := make([]FeedbackOutcome, 0, len(fbs))
	for _, fb := range fbs {
		outs = append(outs, m.OnFeedback(fb))
	}

	return outs
}
