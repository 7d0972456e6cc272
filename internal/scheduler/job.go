package scheduler

import (
	"github.com/google/uuid"

	"github.com/cwbaker/forge/internal/graph"
)

// State is a Job's position in the waiting -> ready -> processing ->
// done|failed state machine (spec §4.7 "Job").
type State int

const (
	Waiting State = iota
	Ready
	Processing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Ready:
		return "ready"
	case Processing:
		return "processing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job tracks one target's progress through a postorder visit: how many of
// its dependencies are still outstanding, and what its own outcome was.
type Job struct {
	ID     string // unique per Job instance, for log and dashboard correlation
	Target *graph.Target
	State  State
	Err    error

	pending int // number of not-yet-Done dependency jobs
}

// NewJob constructs a Job for target with pending set to the number of
// dependencies it must wait on before becoming Ready.
func NewJob(target *graph.Target, pending int) *Job {
	state := Waiting
	if pending == 0 {
		state = Ready
	}
	return &Job{ID: uuid.NewString(), Target: target, State: state, pending: pending}
}

// DependencyFinished decrements the pending count and reports whether the
// Job has just become Ready as a result.
func (j *Job) DependencyFinished() bool {
	if j.pending > 0 {
		j.pending--
	}
	if j.pending == 0 && j.State == Waiting {
		j.State = Ready
		return true
	}
	return false
}
