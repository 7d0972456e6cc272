package script

// Arguments captures the positional arguments passed to execute() or
// postorder() at the moment they are given, so they can be re-pushed onto
// whichever coroutine eventually runs the corresponding build action
// (spec §4.4, grounded on the original Arguments::Arguments /
// push_arguments: values are ref'd into the Lua registry on construction
// and rawgeti'd back out, possibly onto a different lua_State, when the
// action finally runs).
type Arguments struct {
	registry *Registry
	handles  []int64
	released bool
}

// NewArguments pins every value in values, preserving order.
func NewArguments(registry *Registry, values []interface{}) *Arguments {
	handles := make([]int64, len(values))
	for i, v := range values {
		handles[i] = registry.Pin(v)
	}
	return &Arguments{registry: registry, handles: handles}
}

// Values re-materializes the pinned arguments in original order. Safe to
// call from any coroutine since the Registry is shared across all of
// them.
func (a *Arguments) Values() []interface{} {
	out := make([]interface{}, 0, len(a.handles))
	for _, h := range a.handles {
		if v, ok := a.registry.Get(h); ok {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of pinned arguments.
func (a *Arguments) Len() int { return len(a.handles) }

// Release unpins every argument. Safe to call more than once.
func (a *Arguments) Release() {
	if a.released {
		return
	}
	for _, h := range a.handles {
		a.registry.Release(h)
	}
	a.released = true
}
