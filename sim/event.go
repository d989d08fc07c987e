package sim

// VTimeInSec is simulated time in seconds. Slot boundaries fall on multiples
// of the slot period.
type VTimeInSec float64

// An Event is work scheduled for a handler at a simulated time.
type Event interface {
	Time() VTimeInSec
	Handler() Handler

	// IsSecondary tells if the event waits for every primary event of the
	// same time. A MAC ticking on secondary events sees all reports that
	// arrived in its slot.
	IsSecondary() bool
}

// EventBase implements the Event getters. Concrete events embed it.
type EventBase struct {
	ID        string
	time      VTimeInSec
	handler   Handler
	secondary bool
}

// NewEventBase creates a primary EventBase with a fresh ID.
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	return &EventBase{
		ID:      GetIDGenerator().Generate(),
		time:    t,
		handler: handler,
	}
}

// Time returns when the event happens.
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns who handles the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary tells if the event is a secondary event.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// A Handler handles the events scheduled for it. An event only changes the
// state of its own handler; anything else is reached through a SAP call.
type Handler interface {
	Handle(e Event) error
}
