// Package dashboard renders a live view of Scheduler job state while a
// build runs, grounded on the teacher's bubbletea/lipgloss dashboard
// (internal/tui/dashboard in the original, restyled here for build jobs
// instead of pipeline status).
package dashboard

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// JobStatus is a snapshot of one target's progress, decoupled from the
// scheduler package so the TUI never imports scheduling internals.
type JobStatus struct {
	Target string
	State  string // "waiting", "ready", "processing", "done", "failed"
}

// Update carries a batch of job status changes into the running program.
type Update struct {
	Jobs []JobStatus
}

// Done signals the build finished, successfully or not.
type Done struct {
	Err error
}

// Model is the bubbletea model driving the dashboard.
type Model struct {
	jobs     map[string]JobStatus
	order    []string
	finished bool
	err      error
	spin     spinner.Model
}

// NewModel constructs an empty dashboard model.
func NewModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusProcessingStyle
	return Model{jobs: make(map[string]JobStatus), spin: s}
}

func (m Model) Init() tea.Cmd { return m.spin.Tick }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case Update:
		for _, j := range msg.Jobs {
			if _, ok := m.jobs[j.Target]; !ok {
				m.order = append(m.order, j.Target)
			}
			m.jobs[j.Target] = j
		}
		return m, nil
	case Done:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	out := titleStyle.Render("forge build") + "\n"
	sorted := append([]string{}, m.order...)
	sort.Strings(sorted)
	for _, path := range sorted {
		job := m.jobs[path]
		out += fmt.Sprintf("  %s %s\n", m.renderState(job.State), path)
	}
	if m.finished {
		if m.err != nil {
			out += footerStyle.Render(fmt.Sprintf("failed: %v", m.err))
		} else {
			out += footerStyle.Render("build complete")
		}
	}
	return out
}

func (m Model) renderState(state string) string {
	switch state {
	case "done":
		return statusDoneStyle.Render("✓")
	case "processing":
		return m.spin.View()
	case "failed":
		return statusFailedStyle.Render("✗")
	default:
		return statusWaitingStyle.Render("·")
	}
}
