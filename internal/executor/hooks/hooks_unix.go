//go:build linux || darwin

package hooks

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// unixLibrary injects the build-hooks shared library via LD_PRELOAD
// (Linux) or DYLD_INSERT_LIBRARIES (macOS), and passes the write end of a
// pipe to the child so the injected library can report every file it
// touches back to the Executor (spec §4.6, grounded on
// inject_build_hooks_linux/_macosx).
type unixLibrary struct {
	path string
}

func newPlatformLibrary(path string) Library {
	return unixLibrary{path: path}
}

func (l unixLibrary) PrepareChild(cmd *exec.Cmd) PreparedChild {
	if l.path == "" {
		return PreparedChild{}
	}

	read, write, err := os.Pipe()
	if err != nil {
		return PreparedChild{}
	}

	cmd.ExtraFiles = append(cmd.ExtraFiles, write)
	fd := 3 + len(cmd.ExtraFiles) - 1

	env := append([]string{}, cmd.Env...)
	env = append(env,
		preloadVar()+"="+l.path,
		fmt.Sprintf("FORGE_HOOKS_PIPE_FD=%d", fd),
	)
	cmd.Env = env

	return PreparedChild{
		DependenciesReader: read,
		closers:            []func() error{write.Close, read.Close},
	}
}

func preloadVar() string {
	if runtime.GOOS == "darwin" {
		return "DYLD_INSERT_LIBRARIES"
	}
	return "LD_PRELOAD"
}
