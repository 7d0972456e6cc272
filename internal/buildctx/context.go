// Package buildctx provides per-coroutine execution context: the working
// directory stack, the currently running Job, and the exit code of the Job
// most recently executed from this coroutine (spec §4.3 "Context").
package buildctx

import (
	"path/filepath"

	"github.com/cwbaker/forge/internal/graph"
	"github.com/cwbaker/forge/internal/system"
)

// Context mirrors one script coroutine's view of the outside world. Every
// coroutine the scheduler spawns (the root script, each buildfile() call,
// each postorder visit) gets its own Context.
type Context struct {
	sys system.System

	workingDirectory *graph.Target
	directories      []string // stack; top is directories[len-1]

	job      interface{} // *scheduler.Job; held as interface{} to avoid an import cycle
	exitCode int

	buildfileCallingContext *Context
}

// New constructs a Context rooted at directory.
func New(sys system.System, directory string) *Context {
	return &Context{
		sys:         sys,
		directories: []string{filepath.Clean(directory)},
	}
}

// Directory returns the current working directory.
func (c *Context) Directory() string {
	return c.directories[len(c.directories)-1]
}

// WorkingDirectory returns the Target bound to the current directory, if
// one has been set via ResetDirectoryToTarget.
func (c *Context) WorkingDirectory() *graph.Target { return c.workingDirectory }

// Job returns the Job currently running on this context, or nil.
func (c *Context) Job() interface{} { return c.job }

// SetJob assigns the Job currently running on this context.
func (c *Context) SetJob(job interface{}) { c.job = job }

// ExitCode returns the exit code of the last Job executed from this
// context.
func (c *Context) ExitCode() int { return c.exitCode }

// SetExitCode records the exit code of the most recently executed Job.
func (c *Context) SetExitCode(exitCode int) { c.exitCode = exitCode }

// BuildfileCallingContext returns the Context that called buildfile() and
// yielded to let this one run, or nil if this is the root context.
func (c *Context) BuildfileCallingContext() *Context { return c.buildfileCallingContext }

// SetBuildfileCallingContext records the calling context for a nested
// buildfile() load so the scheduler can resume it once this one finishes.
func (c *Context) SetBuildfileCallingContext(parent *Context) {
	c.buildfileCallingContext = parent
}

// Absolute resolves path against the current working directory.
func (c *Context) Absolute(path string) string {
	return c.sys.Absolute(c.Directory(), path)
}

// Relative returns path expressed relative to the current working
// directory, falling back to the absolute form if it cannot be made
// relative (e.g. different volumes on Windows).
func (c *Context) Relative(path string) string {
	rel, err := filepath.Rel(c.Directory(), path)
	if err != nil {
		return c.Absolute(path)
	}
	return rel
}

// ResetDirectoryToTarget replaces the entire directory stack with a single
// entry bound to target's path, and records target as the working
// directory target (spec §4.3 "reset_directory_to_target").
func (c *Context) ResetDirectoryToTarget(target *graph.Target) {
	c.workingDirectory = target
	c.directories = []string{filepath.Clean(target.Path)}
}

// ResetDirectory replaces the entire directory stack with a single entry.
func (c *Context) ResetDirectory(directory string) {
	c.workingDirectory = nil
	c.directories = []string{filepath.Clean(directory)}
}

// ChangeDirectory replaces the top of the directory stack, resolving
// directory against the current one if it is relative.
func (c *Context) ChangeDirectory(directory string) {
	c.directories[len(c.directories)-1] = c.Absolute(directory)
}

// PushDirectory pushes a new current working directory, resolving it
// against the existing one if relative (spec §4.3 "push_directory").
func (c *Context) PushDirectory(directory string) {
	c.directories = append(c.directories, c.Absolute(directory))
}

// PopDirectory pops back to the previous working directory. Popping past
// the root entry is a no-op: the root directory can never be popped.
func (c *Context) PopDirectory() {
	if len(c.directories) > 1 {
		c.directories = c.directories[:len(c.directories)-1]
	}
}
