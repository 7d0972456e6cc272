// Package scheduler drives postorder traversal of the dependency graph,
// dispatching Jobs to the Executor with bounded parallelism, and exposes
// the scripting API a build file calls into (spec §4.7 "Scheduler").
//
// Lua's stackful coroutines are modeled with goroutines: each postorder
// visit runs on its own goroutine and, while a command it started runs,
// blocks on the Executor's result channel instead of yielding a real
// interpreter stack. A nested buildfile() load runs synchronously on the
// goroutine that called it.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/cwbaker/forge/internal/buildctx"
	"github.com/cwbaker/forge/internal/eventsink"
	"github.com/cwbaker/forge/internal/executor"
	"github.com/cwbaker/forge/internal/graph"
	"github.com/cwbaker/forge/internal/scanner"
	"github.com/cwbaker/forge/internal/script"
	"github.com/cwbaker/forge/internal/system"
	"github.com/cwbaker/forge/pkg/forgeerrors"
)

// VisitFunc is invoked once per target during a postorder traversal, after
// every dependency's VisitFunc has already completed successfully.
type VisitFunc func(ctx *buildctx.Context, target *graph.Target) error

// ProgressFunc is an optional observer notified every time a Job changes
// state during a Postorder traversal, independent of VisitFunc. A caller
// that wants to drive a live progress display (cmd/forge's dashboard,
// say) sets one with SetProgressReporter instead of threading UI updates
// through the script-facing VisitFunc contract.
type ProgressFunc func(targetPath string, state State)

// Scheduler owns the graph, the worker pool, and the embedded script
// runtime for one build invocation.
type Scheduler struct {
	sys      system.System
	sink     eventsink.Sink
	graph    *graph.Graph
	exec     *executor.Executor
	bridge   *script.Bridge
	registry *script.Registry

	mu                  sync.Mutex
	maximumParallelJobs int
	hooksLibrary        string
	stackTraceEnabled   bool
	progress            ProgressFunc

	root *buildctx.Context
}

// SetProgressReporter installs fn to be called on every Job state
// transition during subsequent Postorder calls. Pass nil to stop
// reporting.
func (s *Scheduler) SetProgressReporter(fn ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = fn
}

func (s *Scheduler) reportProgress(targetPath string, state State) {
	s.mu.Lock()
	fn := s.progress
	s.mu.Unlock()
	if fn != nil {
		fn(targetPath, state)
	}
}

// New constructs a Scheduler over g, running build actions through exec
// and reporting output to sink.
func New(sys system.System, sink eventsink.Sink, g *graph.Graph, exec *executor.Executor) *Scheduler {
	if sink == nil {
		sink = eventsink.Discard{}
	}
	s := &Scheduler{
		sys:                 sys,
		sink:                sink,
		graph:               g,
		exec:                exec,
		bridge:              script.NewBridge("forge/forge"),
		registry:            script.NewRegistry(),
		maximumParallelJobs: 4,
	}
	s.root = buildctx.New(sys, ".")
	s.registerAPI()
	return s
}

// Graph returns the scheduler's dependency graph.
func (s *Scheduler) Graph() *graph.Graph { return s.graph }

// RootContext returns the top-level Context the root build script runs on.
func (s *Scheduler) RootContext() *buildctx.Context { return s.root }

// SetMaximumParallelJobs bounds how many targets the Postorder dispatch
// loop visits concurrently. The Executor's worker count is fixed when the
// Executor is constructed and is not changed here.
func (s *Scheduler) SetMaximumParallelJobs(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = 1
	}
	s.maximumParallelJobs = n
}

// MaximumParallelJobs returns the current worker bound.
func (s *Scheduler) MaximumParallelJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maximumParallelJobs
}

// SetBuildHooksLibrary configures the dependency-capture library used by
// every subsequent execute() call.
func (s *Scheduler) SetBuildHooksLibrary(path string) {
	s.mu.Lock()
	s.hooksLibrary = path
	s.mu.Unlock()
	s.exec.SetHooksLibrary(path)
}

// SetStackTraceEnabled records the stack-trace flag (spec §4.4
// "set_stack_trace_enabled"). Nothing in the scheduler reads the flag, so
// script error reporting is the same whichever value is set.
func (s *Scheduler) SetStackTraceEnabled(enabled bool) {
	s.mu.Lock()
	s.stackTraceEnabled = enabled
	s.mu.Unlock()
}

// Load reads and evaluates a build-script file into a fresh coroutine,
// then calls its Run entry point with the given positional arguments
// (spec §4.4 "load").
func (s *Scheduler) Load(path string, args ...interface{}) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return &forgeerrors.ScriptLoadError{Path: path, Err: err}
	}
	co := s.bridge.NewCoroutine()
	if err := co.Load(string(source)); err != nil {
		return &forgeerrors.ScriptLoadError{Path: path, Err: err}
	}
	if _, err := co.Call("main.Run", args...); err != nil {
		return &forgeerrors.ScriptRuntimeError{Message: "main.Run failed", Err: err}
	}
	return nil
}

// Buildfile loads path as a nested build script, yielding the calling
// context until it finishes (spec §4.3 "buildfile_calling_context", §4.7
// "buildfile() sub-load nesting"). Because coroutines here are goroutines
// rather than true stackful coroutines, "yielding" is simply running the
// nested load synchronously on the calling goroutine. A child Context with
// parent as its buildfile calling context is constructed, but it is not
// passed to the nested load, which runs exactly like a top-level Load.
func (s *Scheduler) Buildfile(parent *buildctx.Context, path string, args ...interface{}) error {
	child := buildctx.New(s.sys, parent.Directory())
	child.SetBuildfileCallingContext(parent)
	return s.Load(path, args...)
}

// Postorder walks the subgraph rooted at root, binding timestamps via the
// Graph and then invoking visit once per target in dependency order, with
// up to MaximumParallelJobs targets in flight at a time (spec §4.7). It
// returns the number of targets whose visit succeeded, and fails immediately (without
// scheduling new targets, but letting in-flight ones finish) on the first
// visit error or cycle.
func (s *Scheduler) Postorder(root *graph.Target, visit VisitFunc) (int, error) {
	runID := uuid.NewString()
	s.sink.Output(fmt.Sprintf("forge: postorder run %s rooted at %q", runID, root.Path))

	id, err := s.graph.BeginTraversal("postorder")
	if err != nil {
		return 0, err
	}
	defer s.graph.EndTraversal()

	if _, err := s.graph.BindWithTraversal(id, root); err != nil {
		return 0, fmt.Errorf("postorder %s: %w", root.Path, err)
	}

	jobs, order, err := s.buildJobs(root)
	if err != nil {
		return 0, err
	}

	limit := s.MaximumParallelJobs()
	sem := make(chan struct{}, limit)
	ready := make(chan *graph.Target, len(order))
	for _, t := range order {
		if jobs[t.Path].State == Ready {
			ready <- t
		}
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		failed    error
		completed int
	)

	dependents := make(map[string][]*graph.Target)
	for _, t := range order {
		for _, dep := range t.ExplicitDependencies() {
			dependents[dep.Path] = append(dependents[dep.Path], t)
		}
		for _, dep := range t.ImplicitDependencies() {
			dependents[dep.Path] = append(dependents[dep.Path], t)
		}
	}

	remaining := len(order)
	for remaining > 0 {
		t := <-ready
		{
			remaining--
			wg.Add(1)
			sem <- struct{}{}
			go func(t *graph.Target) {
				defer wg.Done()
				defer func() { <-sem }()

				job := jobs[t.Path]

				mu.Lock()
				abort := failed != nil
				mu.Unlock()

				if abort {
					// A sibling already failed. This target is never
					// visited, but its dependents still need to be
					// notified so remaining drains to 0 instead of
					// deadlocking on a ready channel nothing fills.
					mu.Lock()
					job.State = Failed
					job.Err = &forgeerrors.Cancelled{Reason: "a dependency traversal failed"}
					mu.Unlock()
					s.reportProgress(t.Path, Failed)
				} else {
					mu.Lock()
					job.State = Processing
					mu.Unlock()
					s.reportProgress(t.Path, Processing)

					visitCtx := buildctx.New(s.sys, t.Path)
					err := visit(visitCtx, t)

					mu.Lock()
					if err != nil {
						job.State = Failed
						job.Err = err
						if failed == nil {
							failed = &forgeerrors.PostorderVisitFailed{TargetPath: t.Path}
						}
					} else {
						job.State = Done
						s.graph.MarkBuilt(t)
						completed++
					}
					mu.Unlock()
					s.reportProgress(t.Path, job.State)
				}

				for _, dependent := range dependents[t.Path] {
					dj := jobs[dependent.Path]
					mu.Lock()
					becameReady := dj.DependencyFinished()
					mu.Unlock()
					if becameReady {
						ready <- dependent
					}
				}
			}(t)
		}
	}

	wg.Wait()
	return completed, failed
}

// buildJobs collects every target reachable from root (via explicit and
// implicit dependencies) and builds a Job per target with its pending
// dependency count, plus a stable visitation order.
func (s *Scheduler) buildJobs(root *graph.Target) (map[string]*Job, []*graph.Target, error) {
	jobs := make(map[string]*Job)
	var order []*graph.Target
	visited := make(map[string]bool)

	var walk func(t *graph.Target) int
	walk = func(t *graph.Target) int {
		if visited[t.Path] {
			return 0
		}
		visited[t.Path] = true

		deps := 0
		for _, dep := range t.ExplicitDependencies() {
			walk(dep)
			deps++
		}
		for _, dep := range t.ImplicitDependencies() {
			walk(dep)
			deps++
		}

		jobs[t.Path] = NewJob(t, deps)
		order = append(order, t)
		return deps
	}
	walk(root)
	return jobs, order, nil
}

// registerAPI exposes the build-script surface named in spec §4.7: target
// graph mutation, postorder/execute entry points, and working-directory
// and filesystem queries.
func (s *Scheduler) registerAPI() {
	b := s.bridge

	b.RegisterFunction("TargetPrototype", func(id string) *graph.TargetPrototype {
		return s.graph.FindOrCreatePrototype(id)
	})
	b.RegisterFunction("Target", func(path string, prototype *graph.TargetPrototype) (*graph.Target, error) {
		return s.graph.FindOrCreateTarget(path, prototype)
	})
	b.RegisterFunction("AddDependency", func(target, dependency *graph.Target) {
		target.AddExplicitDependency(dependency)
	})
	b.RegisterFunction("Execute", func(ctx *buildctx.Context, name string, args []string, dependenciesFilter, stdoutFilter, stderrFilter scanner.MatchFunc) (int, error) {
		return s.execute(ctx, name, args, dependenciesFilter, stdoutFilter, stderrFilter)
	})
	b.RegisterFunction("Postorder", func(root *graph.Target, visit VisitFunc) (int, error) {
		return s.Postorder(root, visit)
	})
	b.RegisterFunction("Buildfile", func(ctx *buildctx.Context, path string, args ...interface{}) error {
		return s.Buildfile(ctx, path, args...)
	})
	b.RegisterFunction("Pushd", func(ctx *buildctx.Context, directory string) { ctx.PushDirectory(directory) })
	b.RegisterFunction("Popd", func(ctx *buildctx.Context) { ctx.PopDirectory() })
	b.RegisterFunction("Cwd", func(ctx *buildctx.Context) string { return ctx.Directory() })
	b.RegisterFunction("Absolute", func(ctx *buildctx.Context, path string) string { return ctx.Absolute(path) })
	b.RegisterFunction("Relative", func(ctx *buildctx.Context, path string) string { return ctx.Relative(path) })
	b.RegisterFunction("Exists", func(path string) bool { return s.sys.Exists(path) })
	b.RegisterFunction("LastWriteTime", func(path string) (int64, bool) {
		t, ok := s.sys.LastWriteTime(path)
		return t.Unix(), ok
	})
	b.RegisterFunction("SetMaximumParallelJobs", s.SetMaximumParallelJobs)
	b.RegisterFunction("MaximumParallelJobs", s.MaximumParallelJobs)
	b.RegisterFunction("SetStackTraceEnabled", s.SetStackTraceEnabled)
	b.RegisterFunction("SetBuildHooksLibrary", s.SetBuildHooksLibrary)
	b.RegisterFunction("Print", func(text string) { s.sink.Output(text) })
}

// everyLinePattern matches any line in its entirety, turning a plain
// per-line script callback into a single-Pattern Scanner so it can run
// through the same tolerance-policy machinery as a real scan (spec §4.5).
var everyLinePattern = regexp.MustCompile(".*")

// execute runs one external command on behalf of a build script (spec
// §4.6 "execute"). The deps/stdout/stderr callbacks and the positional
// command-line arguments are pinned through internal/script's Filter and
// Arguments handles exactly as spec §4.4 requires — captured at the
// moment execute() is called and released once the command finishes —
// even though, with coroutines modeled as goroutines rather than real
// stackful ones (see package doc), "a different coroutine's stack" never
// materializes: resolution happens inline, on this same goroutine, rather
// than being handed across a resume queue to a separate scheduler thread.
func (s *Scheduler) execute(ctx *buildctx.Context, name string, args []string, dependenciesFilter, stdoutFilter, stderrFilter scanner.MatchFunc) (int, error) {
	argValues := make([]interface{}, len(args))
	for i, a := range args {
		argValues[i] = a
	}
	pinnedArgs := script.NewArguments(s.registry, argValues)
	defer pinnedArgs.Release()
	resolvedArgs := make([]string, 0, pinnedArgs.Len())
	for _, v := range pinnedArgs.Values() {
		if a, ok := v.(string); ok {
			resolvedArgs = append(resolvedArgs, a)
		}
	}

	var filters []*script.Filter
	pin := func(fn scanner.MatchFunc) *script.Filter {
		if fn == nil {
			return nil
		}
		f := script.NewFilter(s.registry, fn)
		filters = append(filters, f)
		return f
	}
	dependenciesHandle := pin(dependenciesFilter)
	stdoutHandle := pin(stdoutFilter)
	stderrHandle := pin(stderrFilter)
	defer func() {
		for _, f := range filters {
			f.Release()
		}
	}()

	cmd := executor.Command{
		Name: name,
		Args: resolvedArgs,
		Dir:  ctx.Directory(),
		Env:  s.sys.Environ(),
	}
	cmd.DependenciesScanner = scannerForFilter(dependenciesHandle)
	cmd.StdoutScanner = scannerForFilter(stdoutHandle)
	cmd.StderrScanner = scannerForFilter(stderrHandle)
	cmd.StdoutFilter = func(line string) { s.sink.Output(line) }
	cmd.StderrFilter = func(line string) { s.sink.Error(line) }

	result := <-s.exec.Execute(context.Background(), cmd)
	ctx.SetExitCode(result.ExitCode)
	if result.Err != nil {
		return result.ExitCode, fmt.Errorf("execute %s: %w", name, result.Err)
	}
	return result.ExitCode, nil
}

// scannerForFilter wraps handle in a Scanner with a single catch-all
// pattern, so the pinned script callback runs through the Scanner stage
// of the stream pipeline (spec §4.6) and is re-resolved from the
// registry, rather than closed over directly, every time a line arrives.
func scannerForFilter(handle *script.Filter) *scanner.Scanner {
	if handle == nil {
		return nil
	}
	sc := scanner.New(0, 0, 0)
	sc.AddPattern(everyLinePattern, func(groups []string) {
		callback, ok := handle.Callback()
		if !ok {
			return
		}
		if match, ok := callback.(scanner.MatchFunc); ok {
			match(groups)
		}
	})
	return sc
}
