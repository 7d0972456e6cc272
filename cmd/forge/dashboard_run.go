package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/cwbaker/forge/internal/dashboard"
	"github.com/cwbaker/forge/internal/scheduler"
)

// interactiveTerminal reports whether stdout is a real terminal forge can
// safely take over with the bubbletea dashboard. --verbose structured
// logging and piped output both fall back to plain sink reporting.
func interactiveTerminal(verbose bool) bool {
	return !verbose && term.IsTerminal(int(os.Stdout.Fd()))
}

// runDashboard starts a bubbletea program rendering live Job state and
// wires it into sched as a ProgressFunc, returning a finish func that
// must be called exactly once after the build completes (successfully
// or not) to signal the dashboard and wait for it to exit.
func runDashboard(sched *scheduler.Scheduler) (finish func(err error)) {
	program := tea.NewProgram(dashboard.NewModel())

	done := make(chan struct{})
	go func() {
		defer close(done)
		program.Run()
	}()

	sched.SetProgressReporter(func(targetPath string, state scheduler.State) {
		program.Send(dashboard.Update{
			Jobs: []dashboard.JobStatus{{Target: targetPath, State: state.String()}},
		})
	})

	return func(err error) {
		program.Send(dashboard.Done{Err: err})
		<-done
	}
}
