package graph

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSystem is an in-memory system.System used to drive bind() without
// touching the real filesystem.
type fakeSystem struct {
	mtimes map[string]time.Time
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{mtimes: make(map[string]time.Time)}
}

func (f *fakeSystem) Exists(path string) bool {
	_, ok := f.mtimes[path]
	return ok
}

func (f *fakeSystem) LastWriteTime(path string) (time.Time, bool) {
	t, ok := f.mtimes[path]
	return t, ok
}

func (f *fakeSystem) Now() time.Time { return time.Now() }

func (f *fakeSystem) Absolute(dir, path string) string { return dir + "/" + path }

func (f *fakeSystem) Command(name string, args []string, dir string, env []string) *exec.Cmd {
	return exec.Command(name, args...)
}

func (f *fakeSystem) Environ() []string { return nil }

func (f *fakeSystem) touch(path string, at time.Time) {
	f.mtimes[path] = at
}

func TestFindOrCreateTargetIsIdempotent(t *testing.T) {
	g := New(newFakeSystem(), nil)

	a1, err := g.FindOrCreateTarget("/src/a.o", nil)
	require.NoError(t, err)
	a2, err := g.FindOrCreateTarget("/src/a.o", nil)
	require.NoError(t, err)

	assert.Same(t, a1, a2)

	a1.Referenced = true
	assert.True(t, a2.Referenced, "attributes persist across lookups of the same node")
}

func TestFindOrCreateTargetPrototypeConflict(t *testing.T) {
	g := New(newFakeSystem(), nil)
	p1 := g.FindOrCreatePrototype("Object")
	p2 := g.FindOrCreatePrototype("Library")

	_, err := g.FindOrCreateTarget("/src/a.o", p1)
	require.NoError(t, err)

	_, err = g.FindOrCreateTarget("/src/a.o", p2)
	require.Error(t, err)
}

func TestBindDetectsCycle(t *testing.T) {
	g := New(newFakeSystem(), nil)
	a, _ := g.FindOrCreateTarget("a", nil)
	b, _ := g.FindOrCreateTarget("b", nil)
	a.AddExplicitDependency(b)
	b.AddExplicitDependency(a)

	_, err := g.Bind(a)
	require.Error(t, err)
	assert.ErrorContains(t, err, "cycle detected")
}

func TestBindHeightAndOutdatedPropagation(t *testing.T) {
	sys := newFakeSystem()
	g := New(sys, nil)

	// diamond: a -> {b, c} -> d
	a, _ := g.FindOrCreateTarget("a", nil)
	b, _ := g.FindOrCreateTarget("b", nil)
	c, _ := g.FindOrCreateTarget("c", nil)
	d, _ := g.FindOrCreateTarget("d", nil)
	a.AddExplicitDependency(b)
	a.AddExplicitDependency(c)
	b.AddExplicitDependency(d)
	c.AddExplicitDependency(d)

	d.SetFilename(0, "d.txt")
	sys.touch("d.txt", time.Now())

	outdated, err := g.Bind(a)
	require.NoError(t, err)

	assert.Equal(t, 1, d.Height)
	assert.Equal(t, 2, b.Height)
	assert.Equal(t, 2, c.Height)
	assert.Equal(t, 3, a.Height)

	assert.True(t, d.Outdated, "d has no prior last-write-time so it is outdated")
	assert.Equal(t, 4, outdated, "only d is outdated by itself; b, c and a inherit it through their dependency on d")
	_ = b
	_ = c
}

func TestBindIsIdempotentPerTraversal(t *testing.T) {
	sys := newFakeSystem()
	g := New(sys, nil)
	a, _ := g.FindOrCreateTarget("a", nil)
	a.SetFilename(0, "a.out")
	sys.touch("a.out", time.Now())

	first, err := g.Bind(a)
	require.NoError(t, err)
	second, err := g.Bind(a)
	require.NoError(t, err)

	assert.Equal(t, first, second, "bind called twice with no filesystem change produces the same outdated count")
}

func TestMarkBuiltClearsOutdated(t *testing.T) {
	sys := newFakeSystem()
	g := New(sys, nil)
	a, _ := g.FindOrCreateTarget("a", nil)
	a.SetFilename(0, "a.out")
	sys.touch("a.out", time.Now())

	_, err := g.Bind(a)
	require.NoError(t, err)
	require.True(t, a.Outdated)

	g.MarkBuilt(a)
	assert.False(t, a.Outdated)
	assert.Equal(t, a.Timestamp, a.LastWriteTime)

	_, err = g.Bind(a)
	require.NoError(t, err)
	assert.False(t, a.Outdated, "re-binding after MarkBuilt with no filesystem change stays fresh")
}

func TestClearDropsUnreferencedTargets(t *testing.T) {
	g := New(newFakeSystem(), nil)
	root, _ := g.FindOrCreateTarget("root", nil)
	root.Referenced = true
	dep, _ := g.FindOrCreateTarget("dep", nil)
	root.AddExplicitDependency(dep)
	orphan, _ := g.FindOrCreateTarget("orphan", nil)
	_ = orphan

	g.Clear()

	_, rootExists := g.FindTarget("root")
	_, depExists := g.FindTarget("dep")
	_, orphanExists := g.FindTarget("orphan")
	assert.True(t, rootExists)
	assert.True(t, depExists, "dep has an inbound explicit edge from root")
	assert.False(t, orphanExists, "orphan is neither referenced nor depended upon")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	sys := newFakeSystem()
	g := New(sys, nil)
	proto := g.FindOrCreatePrototype("Object")
	a, _ := g.FindOrCreateTarget("a.o", proto)
	b, _ := g.FindOrCreateTarget("b.c", nil)
	a.AddExplicitDependency(b)
	a.SetFilename(0, "a.o")
	a.LastWriteTime = time.Unix(1000, 0).UTC()

	dir := t.TempDir()
	path := dir + "/graph.bin"
	require.NoError(t, g.Save(path))

	loaded := Load(path, sys, nil)
	la, ok := loaded.FindTarget("a.o")
	require.True(t, ok)
	lb, ok := loaded.FindTarget("b.c")
	require.True(t, ok)

	require.Len(t, la.ExplicitDependencies(), 1)
	assert.Same(t, lb, la.ExplicitDependencies()[0])
	assert.Equal(t, "Object", la.Prototype.ID)
	assert.Equal(t, a.LastWriteTime, la.LastWriteTime)
	assert.Equal(t, "a.o", la.Filename(0))

	assert.True(t, lb.LastWriteTime.IsZero(), "an unbuilt target's zero LastWriteTime must round-trip as zero")
	assert.True(t, lb.Timestamp.IsZero(), "an unbuilt target's zero Timestamp must round-trip as zero")
}

func TestLoadDiscardsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bad.bin"
	require.NoError(t, os.WriteFile(path, []byte("not a graph file"), 0o644))

	loaded := Load(path, newFakeSystem(), nil)
	assert.Empty(t, loaded.Targets())
}
