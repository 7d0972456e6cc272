package buildctx

import (
	"os/exec"
	"testing"
	"time"

	"github.com/cwbaker/forge/internal/graph"
	"github.com/stretchr/testify/assert"
)

type fakeSystem struct{}

func (fakeSystem) Exists(string) bool                     { return false }
func (fakeSystem) LastWriteTime(string) (time.Time, bool) { return time.Time{}, false }
func (fakeSystem) Now() time.Time                         { return time.Time{} }
func (fakeSystem) Absolute(dir, path string) string       { return dir + "/" + path }
func (fakeSystem) Environ() []string                      { return nil }
func (fakeSystem) Command(name string, args []string, dir string, env []string) *exec.Cmd {
	return exec.Command(name, args...)
}

func TestPushPopDirectory(t *testing.T) {
	ctx := New(fakeSystem{}, "/root")
	assert.Equal(t, "/root", ctx.Directory())

	ctx.PushDirectory("sub")
	assert.Equal(t, "/root/sub", ctx.Directory())

	ctx.PushDirectory("deeper")
	assert.Equal(t, "/root/sub/deeper", ctx.Directory())

	ctx.PopDirectory()
	assert.Equal(t, "/root/sub", ctx.Directory())

	ctx.PopDirectory()
	assert.Equal(t, "/root", ctx.Directory())

	// popping the last entry is a no-op
	ctx.PopDirectory()
	assert.Equal(t, "/root", ctx.Directory())
}

func TestResetDirectoryToTarget(t *testing.T) {
	ctx := New(fakeSystem{}, "/root")
	ctx.PushDirectory("sub")

	target := graph.NewTarget("/elsewhere")
	ctx.ResetDirectoryToTarget(target)

	assert.Equal(t, "/elsewhere", ctx.Directory())
	assert.Same(t, target, ctx.WorkingDirectory())
}

func TestJobAndExitCode(t *testing.T) {
	ctx := New(fakeSystem{}, "/root")
	assert.Nil(t, ctx.Job())
	assert.Equal(t, 0, ctx.ExitCode())

	ctx.SetJob("job-handle")
	ctx.SetExitCode(2)
	assert.Equal(t, "job-handle", ctx.Job())
	assert.Equal(t, 2, ctx.ExitCode())
}

func TestBuildfileCallingContext(t *testing.T) {
	parent := New(fakeSystem{}, "/root")
	child := New(fakeSystem{}, "/root/sub")

	assert.Nil(t, child.BuildfileCallingContext())
	child.SetBuildfileCallingContext(parent)
	assert.Same(t, parent, child.BuildfileCallingContext())
}
