package executor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSystem struct{}

func (fakeSystem) Exists(string) bool                     { return false }
func (fakeSystem) LastWriteTime(string) (time.Time, bool) { return time.Time{}, false }
func (fakeSystem) Now() time.Time                         { return time.Time{} }
func (fakeSystem) Absolute(dir, path string) string       { return dir + "/" + path }
func (fakeSystem) Environ() []string                      { return nil }
func (fakeSystem) Command(name string, args []string, dir string, env []string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = env
	return cmd
}

func TestExecuteCapturesStdout(t *testing.T) {
	e := New(fakeSystem{}, 2)
	defer e.Stop()

	var lines []string
	result := <-e.Execute(context.Background(), Command{
		Name:         "echo",
		Args:         []string{"hello"},
		StdoutFilter: func(line string) { lines = append(lines, line) },
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, []string{"hello"}, lines)
}

func TestExecuteReportsNonZeroExit(t *testing.T) {
	e := New(fakeSystem{}, 1)
	defer e.Stop()

	result := <-e.Execute(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "exit 3"},
	})

	require.Error(t, result.Err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestExecuteRunsConcurrently(t *testing.T) {
	e := New(fakeSystem{}, 4)
	defer e.Stop()

	var channels []<-chan Result
	for i := 0; i < 4; i++ {
		channels = append(channels, e.Execute(context.Background(), Command{Name: "true"}))
	}
	for _, ch := range channels {
		result := <-ch
		require.NoError(t, result.Err)
	}
}
