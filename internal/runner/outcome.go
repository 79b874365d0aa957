package runner

import (
	"time"

	"github.com/google/uuid"
)

type State int

const (
	NotStarted State = iota
	Connecting
	Running
	Succeeded
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Connecting:
		return "connecting"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StepResult records one executed task.
type StepResult struct {
	Name     string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Artifact string // local path of a fetched artifact
	Duration time.Duration
	Err      error
}

// Outcome is the state of one pipeline run. Step is the 1-based index of the
// step that is running, or that aborted the run; 0 means no step started.
type Outcome struct {
	RunID      uuid.UUID
	Pipeline   string
	Target     string
	Branch     string
	State      State
	Step       int
	Steps      []StepResult
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// FailedStep returns the name of the step that aborted the run.
func (o *Outcome) FailedStep() string {
	if o.State != Aborted || o.Step == 0 || o.Step > len(o.Steps) {
		return ""
	}
	return o.Steps[o.Step-1].Name
}
