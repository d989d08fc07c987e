package sim

import (
	"sync"
)

// TickEvent asks a ticking component to run one more cycle.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a primary TickEvent for the handler.
func MakeTickEvent(handler Handler, time VTimeInSec) TickEvent {
	return TickEvent{EventBase: *NewEventBase(time, handler)}
}

// A Ticker is an object that updates states with ticks. Tick reports whether
// the ticker made progress and wants to tick again on the next cycle.
type Ticker interface {
	Tick() bool
}

// TickScheduler keeps at most one pending tick per cycle for a handler.
type TickScheduler struct {
	handler   Handler
	engine    Engine
	freq      Freq
	secondary bool

	lock    sync.Mutex
	pending VTimeInSec
}

func newTickScheduler(
	handler Handler,
	engine Engine,
	freq Freq,
	secondary bool,
) *TickScheduler {
	return &TickScheduler{
		handler:   handler,
		engine:    engine,
		freq:      freq,
		secondary: secondary,
		pending:   -1,
	}
}

// TickNow makes sure a tick happens in the current cycle.
func (t *TickScheduler) TickNow() {
	t.tickAt(t.freq.ThisTick)
}

// TickLater makes sure a tick happens in the next cycle.
func (t *TickScheduler) TickLater() {
	t.tickAt(t.freq.NextTick)
}

func (t *TickScheduler) tickAt(when func(now VTimeInSec) VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	at := when(t.engine.CurrentTime())
	if t.pending >= at {
		return
	}

	t.pending = at

	evt := MakeTickEvent(t.handler, at)
	evt.secondary = t.secondary
	t.engine.Schedule(evt)
}

// CurrentTime returns the current time of the engine.
func (t *TickScheduler) CurrentTime() VTimeInSec {
	return t.engine.CurrentTime()
}

// TickingComponent is a component driven by a Ticker. It keeps ticking every
// cycle for as long as the ticker makes progress and sleeps otherwise until
// someone calls TickNow or TickLater.
type TickingComponent struct {
	*ComponentBase
	*TickScheduler

	ticker Ticker
}

// Handle runs one tick.
func (c *TickingComponent) Handle(_ Event) error {
	if c.ticker.Tick() {
		c.TickLater()
	}

	return nil
}

// NewTickingComponent creates a ticking component with primary ticks.
func NewTickingComponent(
	name string,
	engine Engine,
	freq Freq,
	ticker Ticker,
) *TickingComponent {
	return newTickingComponent(name, engine, freq, ticker, false)
}

// NewSecondaryTickingComponent creates a ticking component whose ticks run
// after all the primary events of the same time.
func NewSecondaryTickingComponent(
	name string,
	engine Engine,
	freq Freq,
	ticker Ticker,
) *TickingComponent {
	return newTickingComponent(name, engine, freq, ticker, true)
}

func newTickingComponent(
	name string,
	engine Engine,
	freq Freq,
	ticker Ticker,
	secondary bool,
) *TickingComponent {
	tc := &TickingComponent{
		ComponentBase: NewComponentBase(name),
		ticker:        ticker,
	}
	tc.TickScheduler = newTickScheduler(tc, engine, freq, secondary)

	return tc
}
