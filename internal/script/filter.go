package script

// Filter holds a reference to a script-side callback so it survives
// garbage collection between the time a Scanner pattern is registered and
// the time it actually matches a line (spec §4.5, grounded on the original
// Filter class: "hold a reference to a function in Lua so that it doesn't
// get garbage collected").
type Filter struct {
	registry *Registry
	handle   int64
	released bool
}

// NewFilter pins callback in registry and returns a Filter owning that
// pin. The scheduler pins scanner.MatchFunc callbacks supplied by a build
// script's execute() call.
func NewFilter(registry *Registry, callback interface{}) *Filter {
	return &Filter{registry: registry, handle: registry.Pin(callback)}
}

// Callback resolves the pinned function, or returns ok=false if the
// Filter has already been released.
func (f *Filter) Callback() (interface{}, bool) {
	if f.released {
		return nil, false
	}
	return f.registry.Get(f.handle)
}

// Release unpins the callback. Safe to call more than once; only the
// first call has an effect.
func (f *Filter) Release() {
	if f.released {
		return
	}
	f.registry.Release(f.handle)
	f.released = true
}
