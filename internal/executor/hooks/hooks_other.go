//go:build !linux && !darwin && !windows

package hooks

import "os/exec"

// Fallback for platforms with no build-hooks injection strategy: dependency
// discovery degrades to whatever the script's own scanner patterns find.
type noopPlatformLibrary struct{}

func newPlatformLibrary(path string) Library {
	return noopPlatformLibrary{}
}

func (noopPlatformLibrary) PrepareChild(cmd *exec.Cmd) PreparedChild { return PreparedChild{} }
