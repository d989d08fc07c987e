package sim

// HookPos names a point where a hookable object reports what it is doing,
// for example a slot that was just sent or HARQ feedback that was applied.
type HookPos struct {
	Name string
}

// HookCtx is what a hook receives. Domain is the object that invoked the
// hook; the meaning of Item and Detail is documented next to each HookPos.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable objects let observers such as tracers, metric collectors and
// recorders attach to them.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
}

// HookPosBeforeEvent is invoked by the engine before an event is handled.
// Item is the event.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is invoked by the engine after an event is handled.
// Item is the event.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// A Hook observes a hookable object. Hooks must not change the state of the
// object that invokes them.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc lets a plain function be used as a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase keeps the hooks of an object and invokes them in the order
// they were accepted.
type HookableBase struct {
	Hooks []Hook
}

// AcceptHook adds a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

// NumHooks returns the number of hooks. Callers check it to skip building a
// HookCtx nobody reads.
func (h *HookableBase) NumHooks() int {
	return len(h.Hooks)
}

// InvokeHook passes ctx to every hook.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}
