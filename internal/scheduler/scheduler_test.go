package scheduler

import (
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/cwbaker/forge/internal/buildctx"
	"github.com/cwbaker/forge/internal/executor"
	"github.com/cwbaker/forge/internal/graph"
	"github.com/cwbaker/forge/pkg/forgeerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSystem struct {
	mtimes map[string]time.Time
}

func newFakeSystem() *fakeSystem { return &fakeSystem{mtimes: map[string]time.Time{}} }

func (f *fakeSystem) Exists(path string) bool {
	_, ok := f.mtimes[path]
	return ok
}
func (f *fakeSystem) LastWriteTime(path string) (time.Time, bool) {
	t, ok := f.mtimes[path]
	return t, ok
}
func (f *fakeSystem) Now() time.Time                   { return time.Now() }
func (f *fakeSystem) Absolute(dir, path string) string { return dir + "/" + path }
func (f *fakeSystem) Environ() []string                { return nil }
func (f *fakeSystem) Command(name string, args []string, dir string, env []string) *exec.Cmd {
	return exec.Command(name, args...)
}

func newScheduler() (*Scheduler, *graph.Graph) {
	sys := newFakeSystem()
	g := graph.New(sys, nil)
	ex := executor.New(sys, 2)
	return New(sys, nil, g, ex), g
}

func TestPostorderVisitsDependenciesBeforeDependents(t *testing.T) {
	s, g := newScheduler()
	a, _ := g.FindOrCreateTarget("a", nil)
	b, _ := g.FindOrCreateTarget("b", nil)
	c, _ := g.FindOrCreateTarget("c", nil)
	a.AddExplicitDependency(b)
	b.AddExplicitDependency(c)

	var mu sync.Mutex
	var order []string
	count, err := s.Postorder(a, func(ctx *buildctx.Context, target *graph.Target) error {
		mu.Lock()
		order = append(order, target.Path)
		mu.Unlock()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestPostorderFailurePropagates(t *testing.T) {
	s, g := newScheduler()
	a, _ := g.FindOrCreateTarget("a", nil)
	b, _ := g.FindOrCreateTarget("b", nil)
	a.AddExplicitDependency(b)

	_, err := s.Postorder(a, func(ctx *buildctx.Context, target *graph.Target) error {
		if target.Path == "b" {
			return assert.AnError
		}
		return nil
	})

	require.Error(t, err)
}

// TestPostorderFailurePropagatesThroughTransitiveDependents covers a
// failing node with dependents several levels removed from it (a diamond
// a -> {b, c} -> d with d failing), distinct from
// TestPostorderFailurePropagates where the aborted node is the root with
// no dependents of its own. Without also draining a skipped target's
// dependents, remaining never reaches zero and the run blocks forever.
func TestPostorderFailurePropagatesThroughTransitiveDependents(t *testing.T) {
	s, g := newScheduler()
	a, _ := g.FindOrCreateTarget("a", nil)
	b, _ := g.FindOrCreateTarget("b", nil)
	c, _ := g.FindOrCreateTarget("c", nil)
	d, _ := g.FindOrCreateTarget("d", nil)
	a.AddExplicitDependency(b)
	a.AddExplicitDependency(c)
	b.AddExplicitDependency(d)
	c.AddExplicitDependency(d)

	done := make(chan struct{})
	var count int
	var err error
	go func() {
		count, err = s.Postorder(a, func(ctx *buildctx.Context, target *graph.Target) error {
			if target.Path == "d" {
				return assert.AnError
			}
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Postorder deadlocked on a failing transitive dependency")
	}

	require.Error(t, err)
	assert.Zero(t, count)
}

func TestPostorderDetectsCycle(t *testing.T) {
	s, g := newScheduler()
	a, _ := g.FindOrCreateTarget("a", nil)
	b, _ := g.FindOrCreateTarget("b", nil)
	a.AddExplicitDependency(b)
	b.AddExplicitDependency(a)

	_, err := s.Postorder(a, func(ctx *buildctx.Context, target *graph.Target) error {
		return nil
	})

	require.Error(t, err)
	var cycleErr *forgeerrors.CycleDetected
	assert.ErrorAs(t, err, &cycleErr, "cycle error type must survive Postorder, not be replaced")
}

func TestMaximumParallelJobsConfigurable(t *testing.T) {
	s, _ := newScheduler()
	s.SetMaximumParallelJobs(8)
	assert.Equal(t, 8, s.MaximumParallelJobs())

	s.SetMaximumParallelJobs(0)
	assert.Equal(t, 1, s.MaximumParallelJobs(), "non-positive values clamp to 1")
}
