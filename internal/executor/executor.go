// Package executor runs external build commands in a bounded worker pool
// and captures their stdout, stderr, and build-hook dependency stream
// (spec §4.6 "Executor"). It is the Go rendition of the original
// std::thread + condition_variable job queue: a buffered channel of
// closures plays the role of the deque, and the done signal is a closed
// channel instead of a bool guarded by a mutex.
package executor

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cwbaker/forge/internal/executor/hooks"
	"github.com/cwbaker/forge/internal/scanner"
	"github.com/cwbaker/forge/internal/system"
	"github.com/cwbaker/forge/pkg/forgeerrors"
)

// Filter receives full lines of text as a command runs, after the line has
// already been run through the stream's Scanner, if any (spec §4.6 "each
// line is run through the corresponding Scanner if any, then through the
// Filter if any"). It is satisfied by a function that forwards lines to a
// script callback or collects a dependency list straight from the
// build-hooks pipe.
type Filter func(line string)

// Command is one external process to run plus the scanners and filters
// that should see its streams (spec §4.6 "execute"). DependenciesFilter
// receives lines written to the build-hooks pipe by child processes
// launched underneath the hooks library; StdoutFilter and StderrFilter
// receive the process's own output. The *Scanner fields, when set, are
// applied to every captured line before the corresponding Filter runs.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string

	DependenciesScanner *scanner.Scanner
	StdoutScanner       *scanner.Scanner
	StderrScanner       *scanner.Scanner

	DependenciesFilter Filter
	StdoutFilter       Filter
	StderrFilter       Filter
}

// Result is what a Command produced.
type Result struct {
	ExitCode int
	Err      error
}

// Executor owns the worker pool. It is safe for concurrent use by multiple
// callers submitting jobs, though in forge only the Scheduler ever does so.
type Executor struct {
	sys   system.System
	hooks hooks.Library

	mu                  sync.Mutex
	maximumParallelJobs int

	jobs chan func()
	wg   sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

// New constructs an Executor backed by sys, starting maximumParallelJobs
// worker goroutines immediately. maximumParallelJobs is clamped to at
// least 1.
func New(sys system.System, maximumParallelJobs int) *Executor {
	if maximumParallelJobs < 1 {
		maximumParallelJobs = 1
	}
	e := &Executor{
		sys:                 sys,
		maximumParallelJobs: maximumParallelJobs,
		jobs:                make(chan func(), 256),
		done:                make(chan struct{}),
	}
	e.start()
	return e
}

// SetHooksLibrary configures the build-hooks injection strategy used for
// every subsequent Execute call (spec §4.6 "set_build_hooks_library").
func (e *Executor) SetHooksLibrary(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = hooks.New(path)
}

// MaximumParallelJobs returns the current worker pool size.
func (e *Executor) MaximumParallelJobs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maximumParallelJobs
}

func (e *Executor) start() {
	for i := 0; i < e.maximumParallelJobs; i++ {
		e.wg.Add(1)
		go e.worker()
	}
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		select {
		case job, ok := <-e.jobs:
			if !ok {
				return
			}
			job()
		case <-e.done:
			return
		}
	}
}

// Stop drains in-flight work and terminates every worker goroutine. Safe
// to call more than once.
func (e *Executor) Stop() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
}

// Execute runs cmd asynchronously and delivers its Result on the returned
// channel exactly once. Three goroutines (stdout, stderr, dependencies
// pipe) are fanned out with an errgroup so a read failure on any one
// stream surfaces as the job's error (spec §4.6 "three concurrent stream
// readers").
func (e *Executor) Execute(ctx context.Context, cmd Command) <-chan Result {
	out := make(chan Result, 1)
	e.jobs <- func() {
		out <- e.run(ctx, cmd)
	}
	return out
}

func (e *Executor) run(ctx context.Context, cmd Command) Result {
	child := e.sys.Command(cmd.Name, cmd.Args, cmd.Dir, cmd.Env)

	stdoutPipe, err := child.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1, Err: &forgeerrors.ProcessLaunchFailed{Command: cmd.Name, Err: err}}
	}
	stderrPipe, err := child.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1, Err: &forgeerrors.ProcessLaunchFailed{Command: cmd.Name, Err: err}}
	}

	prepared := e.hooksOrNoop().PrepareChild(child)

	if err := child.Start(); err != nil {
		return Result{ExitCode: -1, Err: &forgeerrors.ProcessLaunchFailed{Command: cmd.Name, Err: err}}
	}
	// The child now holds its own copies of any extra files (the build-hooks
	// pipe's write end); closing the parent's copies lets the dependencies
	// reader reach EOF once the child exits.
	for _, f := range child.ExtraFiles {
		_ = f.Close()
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return streamLines(stdoutPipe, cmd.StdoutScanner, cmd.StdoutFilter) })
	g.Go(func() error { return streamLines(stderrPipe, cmd.StderrScanner, cmd.StderrFilter) })
	if prepared.DependenciesReader != nil {
		g.Go(func() error {
			return streamLines(prepared.DependenciesReader, cmd.DependenciesScanner, cmd.DependenciesFilter)
		})
	}

	streamErr := g.Wait()
	waitErr := child.Wait()
	prepared.Close()

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{ExitCode: -1, Err: &forgeerrors.ProcessLaunchFailed{Command: cmd.Name, Err: waitErr}}
		}
	}
	if streamErr != nil {
		return Result{ExitCode: exitCode, Err: streamErr}
	}
	if exitCode != 0 {
		return Result{ExitCode: exitCode, Err: &forgeerrors.ProcessNonZeroExit{Command: cmd.Name, ExitCode: exitCode}}
	}
	return Result{ExitCode: 0}
}

func (e *Executor) hooksOrNoop() hooks.Library {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hooks == nil {
		return hooks.None()
	}
	return e.hooks
}

// streamLines reads r line by line, running each line through sc (if any)
// and then through filter (if any), in that order (spec §4.6 "each line
// is run through the corresponding Scanner if any, then through the
// Filter if any").
func streamLines(r io.Reader, sc *scanner.Scanner, filter Filter) error {
	if r == nil {
		return nil
	}
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 64*1024), 1024*1024)
	for lines.Scan() {
		text := lines.Text()
		if sc != nil {
			sc.ScanLine(text)
		}
		if filter != nil {
			filter(text)
		}
	}
	return lines.Err()
}
