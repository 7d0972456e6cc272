// Package graph implements the persistent dependency graph: target
// identity, prototypes, and timestamp-based staleness (spec §3, §4.1).
package graph

import (
	"sort"
	"time"

	"github.com/cwbaker/forge/internal/eventsink"
	"github.com/cwbaker/forge/internal/system"
	"github.com/cwbaker/forge/pkg/forgeerrors"
)

// TraversalID guards idempotent bind/postorder passes (spec §4.1 "guarded
// by a monotonic traversal-id") and detects RecursiveTraversal. The
// Scheduler holds one for the lifetime of an entire postorder call (bind
// plus dispatch), not just the bind sub-step.
type TraversalID uint64

type traversalID = TraversalID

// Graph owns all Targets and TargetPrototypes and the root Target
// (spec §3 "Graph"). A Graph is not safe for concurrent use; all mutation
// happens on the scheduler thread (spec §5).
type Graph struct {
	sys  system.System
	sink eventsink.Sink

	targets    map[string]*Target
	prototypes map[string]*TargetPrototype
	root       *Target

	nextTraversal traversalID
	active        bool
}

// New constructs an empty Graph.
func New(sys system.System, sink eventsink.Sink) *Graph {
	if sink == nil {
		sink = eventsink.Discard{}
	}
	return &Graph{
		sys:        sys,
		sink:       sink,
		targets:    make(map[string]*Target),
		prototypes: make(map[string]*TargetPrototype),
	}
}

// Root returns the graph's root target, creating it lazily at "" the
// first time it is requested.
func (g *Graph) Root() *Target {
	if g.root == nil {
		g.root, _ = g.FindOrCreateTarget("", nil)
		g.root.Referenced = true
	}
	return g.root
}

// FindOrCreatePrototype returns the prototype for id, creating it if this
// is the first reference (spec §3 "created lazily on first reference
// from script").
func (g *Graph) FindOrCreatePrototype(id string) *TargetPrototype {
	if proto, ok := g.prototypes[id]; ok {
		return proto
	}
	proto := &TargetPrototype{ID: id}
	g.prototypes[id] = proto
	return proto
}

// FindOrCreateTarget returns the existing node for path or inserts a fresh
// one (spec §4.1). path is used exactly as given: it is not normalized or
// resolved against any working directory. Prototype, if provided, is assigned
// iff the node has none; reassigning a different prototype fails with
// PrototypeConflict.
func (g *Graph) FindOrCreateTarget(path string, prototype *TargetPrototype) (*Target, error) {
	target, existed := g.targets[path]
	if !existed {
		target = NewTarget(path)
		g.targets[path] = target
	}
	if prototype != nil {
		if target.Prototype == nil {
			target.Prototype = prototype
		} else if target.Prototype != prototype {
			return nil, &forgeerrors.PrototypeConflict{
				Path:     path,
				Existing: target.Prototype.ID,
				Wanted:   prototype.ID,
			}
		}
	}
	return target, nil
}

// FindTarget returns the node at path if present.
func (g *Graph) FindTarget(path string) (*Target, bool) {
	target, ok := g.targets[path]
	return target, ok
}

// Targets returns every target currently owned by the graph, in
// unspecified order. Used by persistence and Clear.
func (g *Graph) Targets() []*Target {
	out := make([]*Target, 0, len(g.targets))
	for _, t := range g.targets {
		out = append(out, t)
	}
	return out
}

// BeginTraversal guards against postorder/bind being invoked while a
// traversal is already active (spec §4.7 "Reentrancy"). The Scheduler
// calls this once at the start of postorder and holds the returned id for
// the whole traversal, including the dispatch loop after bind returns.
func (g *Graph) BeginTraversal(operation string) (TraversalID, error) {
	if g.active {
		return 0, &forgeerrors.RecursiveTraversal{Operation: operation}
	}
	g.active = true
	g.nextTraversal++
	return g.nextTraversal, nil
}

// EndTraversal releases the reentrancy guard taken by BeginTraversal.
func (g *Graph) EndTraversal() {
	g.active = false
}

// Bind walks the subgraph rooted at root in postorder, updating file
// timestamps, computing Outdated, and propagating the outdated flag
// upward (spec §4.1). It returns the number of outdated targets found.
// Idempotent per traversal: calling Bind twice with no filesystem change
// between calls produces identical outdated sets (spec §8 "Idempotent
// bind"). Bind manages its own traversal guard; use BindWithTraversal
// when bind is one step of a larger guarded traversal (as the Scheduler
// does for postorder).
func (g *Graph) Bind(root *Target) (int, error) {
	id, err := g.BeginTraversal("bind")
	if err != nil {
		return 0, err
	}
	defer g.EndTraversal()
	return g.BindWithTraversal(id, root)
}

// BindWithTraversal runs the same postorder pass as Bind but against an
// already-open traversal id, so the caller controls when the reentrancy
// guard is released.
func (g *Graph) BindWithTraversal(id TraversalID, root *Target) (int, error) {
	outdated := 0
	var stack []string

	var visit func(t *Target) error
	visit = func(t *Target) error {
		if t.boundAt == id {
			return nil
		}
		if t.Visiting {
			idx := indexOf(stack, t.Path)
			cycle := append([]string{}, stack[idx:]...)
			cycle = append(cycle, t.Path)
			return &forgeerrors.CycleDetected{Path: t.Path, Cycle: cycle}
		}

		t.Visiting = true
		stack = append(stack, t.Path)

		maxDepHeight := 0
		anyDepOutdated := false
		for _, dep := range t.explicit {
			if err := visit(dep); err != nil {
				return err
			}
			if dep.Height > maxDepHeight {
				maxDepHeight = dep.Height
			}
			if dep.Outdated {
				anyDepOutdated = true
			}
		}
		for _, dep := range t.implicit {
			if err := visit(dep); err != nil {
				return err
			}
			if dep.Height > maxDepHeight {
				maxDepHeight = dep.Height
			}
			if dep.Outdated {
				anyDepOutdated = true
			}
		}

		t.Height = maxDepHeight + 1
		t.Outdated = g.isOutdated(t) || anyDepOutdated
		t.boundAt = id
		t.Visiting = false
		stack = stack[:len(stack)-1]

		if t.Outdated {
			outdated++
		}
		return nil
	}

	if err := visit(root); err != nil {
		return 0, err
	}
	return outdated, nil
}

// isOutdated implements spec §3's outdated predicate for a single target,
// ignoring dependency propagation (handled by the caller): no filename
// exists on disk, or a filename is newer than the target's persisted
// last-write-time. It also refreshes Target.Timestamp to the newest
// observed mtime among Filenames, satisfying spec §4.1's "binding" of a
// target's timestamp to its current on-disk filenames.
func (g *Graph) isOutdated(t *Target) bool {
	if len(t.Filenames) == 0 {
		return false
	}

	outdated := false
	var newest time.Time
	for _, filename := range t.Filenames {
		if filename == "" {
			continue
		}
		modTime, exists := g.sys.LastWriteTime(filename)
		if !exists {
			outdated = true
			continue
		}
		if modTime.After(newest) {
			newest = modTime
		}
		if t.LastWriteTime.IsZero() || modTime.After(t.LastWriteTime) {
			outdated = true
		}
	}
	t.Timestamp = newest
	return outdated
}

// MarkBuilt advances a target's persisted LastWriteTime to its most
// recently observed Timestamp. The Scheduler calls this once a Job
// completes successfully (spec §4.7 step 6), modeling the fact that the
// visit function's execute() calls are assumed to have brought Filenames
// up to date.
func (g *Graph) MarkBuilt(t *Target) {
	if t.Timestamp.IsZero() {
		for _, filename := range t.Filenames {
			if filename == "" {
				continue
			}
			if modTime, exists := g.sys.LastWriteTime(filename); exists && modTime.After(t.Timestamp) {
				t.Timestamp = modTime
			}
		}
	}
	t.LastWriteTime = t.Timestamp
	t.Outdated = false
}

func indexOf(stack []string, path string) int {
	for i, p := range stack {
		if p == path {
			return i
		}
	}
	return 0
}

// Clear drops targets that are not referenced by script and have no
// inbound explicit edges (spec §4.1 "clear()").
func (g *Graph) Clear() {
	inbound := make(map[string]bool, len(g.targets))
	for _, t := range g.targets {
		for _, dep := range t.explicit {
			inbound[dep.Path] = true
		}
	}

	paths := make([]string, 0, len(g.targets))
	for path := range g.targets {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		t := g.targets[path]
		if !t.Referenced && !inbound[path] {
			delete(g.targets, path)
		}
	}
}
