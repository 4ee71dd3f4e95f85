package statemachine

// Cell is the exclusive owner of the user context value for the lifetime of an engine.
// Every hook receives Ptr(). It holds no lock: callers must not use a pointer obtained
// from Ptr while a hook of the same engine is running.
type Cell[C any] struct {
	value C
}

// NewCell takes ownership of initial.
func NewCell[C any](initial C) *Cell[C] {
	return &Cell[C]{value: initial}
}

// Get returns a shallow copy of the context value.
func (c *Cell[C]) Get() C {
	return c.value
}

// Ptr returns the context value for in-place mutation.
func (c *Cell[C]) Ptr() *C {
	return &c.value
}
