//go:build windows

package hooks

import "os/exec"

// windowsLibrary stands in for DLL injection plus an inherited pipe handle
// (spec §4.6, grounded on inject_build_hooks_windows /
// initialize_build_hooks_windows / is_64_bit_process_windows). Actual
// CreateRemoteThread-based injection needs direct syscall access this
// module does not take on; PrepareChild records the configured library
// path through the environment so a future native implementation has a
// place to plug in, and otherwise behaves like the no-op strategy.
type windowsLibrary struct {
	path string
}

func newPlatformLibrary(path string) Library {
	return windowsLibrary{path: path}
}

func (l windowsLibrary) PrepareChild(cmd *exec.Cmd) PreparedChild {
	if l.path == "" {
		return PreparedChild{}
	}
	cmd.Env = append(append([]string{}, cmd.Env...), "FORGE_HOOKS_LIBRARY="+l.path)
	return PreparedChild{}
}
