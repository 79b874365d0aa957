package runner

import (
	"fmt"
	"strings"

	"github.com/andrej220/rdeploy/internal/processor"
)

// ConfigurationError reports a required input that is missing. It is raised
// before any remote action is attempted.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// ConnectionError reports that the remote session could not be established
// or broke while a step was using it.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("connection failed: %v", e.Err)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandFailure reports a remote command that exited non-zero.
type CommandFailure struct {
	Step     string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandFailure) Error() string {
	msg := fmt.Sprintf("step %q failed with exit code %d: %s", e.Step, e.ExitCode, e.Command)
	if tail := e.Tail(1); len(tail) > 0 {
		msg += ": " + tail[0]
	}
	return msg
}

// Tail returns the last n meaningful lines of the captured output, stderr
// after stdout.
func (e *CommandFailure) Tail(n int) []string {
	var b strings.Builder
	b.WriteString(e.Stdout)
	if e.Stdout != "" && !strings.HasSuffix(e.Stdout, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(e.Stderr)
	return processor.Tail(b.String(), n)
}
