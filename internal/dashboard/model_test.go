package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateRendersNewJob(t *testing.T) {
	m := NewModel()

	updated, _ := m.Update(Update{Jobs: []JobStatus{{Target: "b.o", State: "processing"}}})
	model := updated.(Model)
	assert.Contains(t, model.View(), "b.o")
}

func TestDoneMarksFinished(t *testing.T) {
	m := NewModel()
	updated, cmd := m.Update(Done{Err: nil})
	model := updated.(Model)

	assert.True(t, model.finished)
	assert.NotNil(t, cmd, "Done should issue tea.Quit")
	assert.Contains(t, model.View(), "build complete")
}

func TestDoneWithErrorRendersFailure(t *testing.T) {
	m := NewModel()
	updated, _ := m.Update(Done{Err: assertErr{}})
	model := updated.(Model)
	assert.Contains(t, model.View(), "failed")
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
