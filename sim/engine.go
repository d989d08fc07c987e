package sim

// A TimeTeller reports the simulated time. Tracers and the PHY use it to
// stamp what they record.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// An EventScheduler accepts events at or after the current time.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler wraps up once the last slot has been handled, for
// example by writing run summaries.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine drives the cell: it owns the simulated clock and dispatches the
// slot ticks and every other event in time order.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run dispatches events until none are left or a handler fails.
	Run() error

	// Pause holds the dispatch, for example while the monitor inspects the
	// MAC. Continue releases it.
	Pause()
	Continue()

	// RegisterSimulationEndHandler adds a handler for Finished.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished calls the end handlers with the final time.
	Finished()
}
