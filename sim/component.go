package sim

// Named objects are listed by name, for example in the monitor.
type Named interface {
	Name() string
}

// A Component is a simulated block of the cell, such as the MAC. It handles
// its own events and can be observed through hooks.
type Component interface {
	Named
	Handler
	Hookable
}

// ComponentBase holds the name and the hooks of a component.
type ComponentBase struct {
	HookableBase

	name string
}

// NewComponentBase creates a ComponentBase. Names are dot-separated paths
// such as "Cell.MAC".
func NewComponentBase(name string) *ComponentBase {
	return &ComponentBase{name: name}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}
