// Package hooks injects the build-hooks dependency-capture library into a
// child process's environment before it starts (spec §4.6, grounded on the
// original Executor::inject_build_hooks_linux/_macosx/_windows). The
// capture mechanism is platform-specific: LD_PRELOAD on Linux and
// DYLD_INSERT_LIBRARIES on macOS, each with a dependencies pipe. On Windows
// only FORGE_HOOKS_LIBRARY is set in the child's environment; no DLL is
// injected and no dependencies pipe is opened.
package hooks

import "os/exec"

// PreparedChild is what a Library does to a not-yet-started *exec.Cmd:
// environment variables are appended and, where the platform supports it,
// DependenciesReader becomes readable once the child starts writing file
// paths it touched.
type PreparedChild struct {
	DependenciesReader interface {
		Read(p []byte) (int, error)
	}
	closers []func() error
}

// Close releases any pipes or handles PrepareChild opened.
func (p PreparedChild) Close() {
	for _, c := range p.closers {
		_ = c()
	}
}

// Library is a build-hooks injection strategy for one platform.
type Library interface {
	// PrepareChild wires whatever environment variables and pipes this
	// platform needs into cmd before it is started.
	PrepareChild(cmd *exec.Cmd) PreparedChild
}

// New returns the injection strategy for path, dispatched to the current
// platform's implementation (hooks_unix.go / hooks_windows.go /
// hooks_other.go).
func New(path string) Library {
	return newPlatformLibrary(path)
}

// None returns a Library that does nothing, used when no hooks library has
// been configured.
func None() Library { return noopLibrary{} }

type noopLibrary struct{}

func (noopLibrary) PrepareChild(cmd *exec.Cmd) PreparedChild { return PreparedChild{} }
