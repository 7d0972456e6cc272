package graph

import "time"

// TargetPrototype is a named template identifying a class of targets
// (spec §3 "TargetPrototype"). Prototypes are owned by the Graph and
// created lazily the first time a script references an id.
type TargetPrototype struct {
	ID string
}

// Target is a node in the dependency graph, identified by a canonical
// path (spec §3 "Target"). All fields are owned by the Graph; script-side
// handles are non-owning references validated on each use by the
// scripting bridge, not by Target itself.
type Target struct {
	Path      string
	Prototype *TargetPrototype

	explicit []*Target
	implicit []*Target

	// Bindings. LastWriteTime is the "last known built" stamp; Timestamp
	// is the newest mtime observed for Filenames during the most recent
	// Bind. Both are round-tripped through Save/Load, and Bind refreshes
	// Timestamp. A target is outdated when Timestamp is newer than the
	// persisted LastWriteTime; MarkBuilt advances LastWriteTime to
	// Timestamp once a build action has run successfully.
	Filenames     []string
	Timestamp     time.Time
	LastWriteTime time.Time
	Outdated      bool

	WorkingDirectory *Target

	Referenced bool // referenced-by-script flag
	Visited    bool
	Visiting   bool
	Height     int

	boundAt      traversalID
	implicitSeen map[string]struct{}
	implicitAt   traversalID
}

// NewTarget constructs a bare target for path that no Graph owns.
// FindOrCreateTarget uses it to create new nodes; persistence rebuilds
// targets through FindOrCreateTarget.
func NewTarget(path string) *Target {
	return &Target{Path: path}
}

// ExplicitDependencies returns the ordered sequence of explicit
// dependencies. The returned slice must not be mutated by callers.
func (t *Target) ExplicitDependencies() []*Target { return t.explicit }

// ImplicitDependencies returns the ordered sequence of implicit
// dependencies discovered by dependency filters.
func (t *Target) ImplicitDependencies() []*Target { return t.implicit }

// AddExplicitDependency appends dep to the explicit dependency sequence.
func (t *Target) AddExplicitDependency(dep *Target) {
	t.explicit = append(t.explicit, dep)
}

// RemoveExplicitDependency removes the first occurrence of dep, if any.
func (t *Target) RemoveExplicitDependency(dep *Target) {
	t.explicit = removeTarget(t.explicit, dep)
}

// ClearExplicitDependencies empties the explicit dependency sequence.
func (t *Target) ClearExplicitDependencies() { t.explicit = nil }

// AddImplicitDependency appends dep to the implicit dependency sequence,
// deduplicating against targets already added during the current
// traversal (spec §4.2: "Deduplication of implicit dependencies is O(n)
// per add, using a transient per-target set valid only during a
// traversal"). The set is reset whenever a new traversal id is observed.
func (t *Target) AddImplicitDependency(id traversalID, dep *Target) {
	if t.implicitAt != id {
		t.implicitSeen = make(map[string]struct{})
		t.implicitAt = id
	}
	if _, seen := t.implicitSeen[dep.Path]; seen {
		return
	}
	t.implicitSeen[dep.Path] = struct{}{}
	t.implicit = append(t.implicit, dep)
}

// ClearImplicitDependencies empties the implicit dependency sequence and
// its dedup set. Bind does not call it; implicit edges stay in place until
// a caller clears them.
func (t *Target) ClearImplicitDependencies() {
	t.implicit = nil
	t.implicitSeen = nil
	t.implicitAt = 0
}

// SetFilename resizes the filename vector as needed and assigns path at
// index i. Filename 0 is the canonical output (spec §4.2).
func (t *Target) SetFilename(i int, path string) {
	for len(t.Filenames) <= i {
		t.Filenames = append(t.Filenames, "")
	}
	t.Filenames[i] = path
}

// Filename returns the filename at index i, or "" if unset.
func (t *Target) Filename(i int) string {
	if i < 0 || i >= len(t.Filenames) {
		return ""
	}
	return t.Filenames[i]
}

func removeTarget(list []*Target, dep *Target) []*Target {
	for i, d := range list {
		if d == dep {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
