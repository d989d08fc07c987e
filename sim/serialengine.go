package sim

import (
	"log"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
)

// A SerialEngine dispatches events one at a time in time order. At equal
// times, primary events go before secondary events, so a secondary tick sees
// everything that happened in its slot.
type SerialEngine struct {
	HookableBase

	now     atomic.Uint64
	handled atomic.Uint64

	primary   EventQueue
	secondary EventQueue

	// gate is held while an event is handled and for as long as the engine
	// is paused.
	gate      sync.Mutex
	pauseMu   sync.Mutex
	paused    bool
	runningMu sync.Mutex

	endHandlers []SimulationEndHandler
}

// NewSerialEngine creates a SerialEngine with empty queues at time 0.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		primary:   NewEventQueue(),
		secondary: NewEventQueue(),
	}
}

// CurrentTime returns the time of the event that is being handled.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	return VTimeInSec(math.Float64frombits(e.now.Load()))
}

func (e *SerialEngine) advanceTo(evt Event) {
	if evt.Time() < e.CurrentTime() {
		log.Panicf("event %s @ %.10f is in the past, now %.10f",
			reflect.TypeOf(evt), evt.Time(), e.CurrentTime())
	}

	e.now.Store(math.Float64bits(float64(evt.Time())))
}

// NumEventsHandled returns how many events the engine has dispatched.
func (e *SerialEngine) NumEventsHandled() uint64 {
	return e.handled.Load()
}

// Schedule queues an event. Events cannot be scheduled in the past.
func (e *SerialEngine) Schedule(evt Event) {
	if evt.Time() < e.CurrentTime() {
		log.Panicf("cannot schedule %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), e.CurrentTime())
	}

	if evt.IsSecondary() {
		e.secondary.Push(evt)
	} else {
		e.primary.Push(evt)
	}
}

// Run dispatches events until both queues are empty or a handler fails.
func (e *SerialEngine) Run() error {
	e.runningMu.Lock()
	defer e.runningMu.Unlock()

	for {
		evt := e.pop()
		if evt == nil {
			return nil
		}

		if err := e.dispatch(evt); err != nil {
			return err
		}
	}
}

func (e *SerialEngine) dispatch(evt Event) error {
	e.gate.Lock()
	defer e.gate.Unlock()

	e.advanceTo(evt)

	ctx := HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
	e.InvokeHook(ctx)

	err := evt.Handler().Handle(evt)
	e.handled.Add(1)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)

	return err
}

func (e *SerialEngine) pop() Event {
	switch {
	case e.primary.Len() == 0 && e.secondary.Len() == 0:
		return nil
	case e.primary.Len() == 0:
		return e.secondary.Pop()
	case e.secondary.Len() == 0:
		return e.primary.Pop()
	case e.primary.Peek().Time() <= e.secondary.Peek().Time():
		return e.primary.Pop()
	default:
		return e.secondary.Pop()
	}
}

// Pause blocks the dispatch of further events. The event being handled
// finishes first.
func (e *SerialEngine) Pause() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()

	if !e.paused {
		e.gate.Lock()
		e.paused = true
	}
}

// Continue resumes a paused engine.
func (e *SerialEngine) Continue() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()

	if e.paused {
		e.paused = false
		e.gate.Unlock()
	}
}

// RegisterSimulationEndHandler registers a handler that is called by
// Finished.
func (e *SerialEngine) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	e.endHandlers = append(e.endHandlers, handler)
}

// Finished calls the end handlers in registration order.
func (e *SerialEngine) Finished() {
	now := e.CurrentTime()
	for _, h := range e.endHandlers {
		h.Handle(now)
	}
}
