package script

import "sync"

// Registry pins Go values behind small integer handles so script-side code
// can hold a stable reference to a value across coroutine switches without
// the interpreter keeping it alive by accident (spec §4.4 "Filter" and
// "Arguments": both are opaque script handles pinned at creation and
// released exactly once). This stands in for luaL_ref/luaL_unref against
// the Lua registry in the original implementation.
type Registry struct {
	mu     sync.Mutex
	next   int64
	values map[int64]interface{}
}

// NewRegistry constructs an empty handle registry. One Registry is shared
// by every coroutine a Bridge creates, mirroring LUA_REGISTRYINDEX being
// shared across all coroutines of one Lua state.
func NewRegistry() *Registry {
	return &Registry{values: make(map[int64]interface{})}
}

// Pin stores value and returns a handle that can be passed around and
// later resolved with Get, regardless of which coroutine resolves it.
func (r *Registry) Pin(value interface{}) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	handle := r.next
	r.values[handle] = value
	return handle
}

// Get resolves a handle previously returned by Pin. ok is false if the
// handle was never issued or has already been released.
func (r *Registry) Get(handle int64) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[handle]
	return v, ok
}

// Release unpins handle. Releasing an already-released or unknown handle
// is a no-op, matching luaL_unref's tolerance of LUA_NOREF/LUA_REFNIL.
func (r *Registry) Release(handle int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, handle)
}
