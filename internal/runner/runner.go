// Package runner executes named tasks against one remote host, reusing a
// single session for a whole pipeline and stopping at the first failure.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/andrej220/rdeploy/pkg/lg"
	"github.com/andrej220/rdeploy/pkg/persistence"
	"github.com/andrej220/rdeploy/pkg/remote"
	"github.com/google/uuid"
)

// Task is a named remote command. Tasks are plain values built once and run
// any number of times.
type Task struct {
	Name        string
	Dir         string
	Command     string
	Prefix      string
	Privileged  bool
	NeedsBranch bool // checkout-style task, requires Context.Branch
	Artifact    *Artifact
}

// Artifact is a remote file copied to the local machine once the task's
// command has succeeded.
type Artifact struct {
	Remote string
	Local  string
}

// RemoteCommand is the command the provider runs for t.
func (t Task) RemoteCommand() remote.Command {
	return remote.Command{Line: t.Command, Dir: t.Dir, Prefix: t.Prefix, Elevated: t.Privileged}
}

// Runner runs tasks and pipelines over sessions opened by its dialer.
type Runner struct {
	dialer remote.Dialer
	writer persistence.FileWriter
	now    func() time.Time
	onStep func(StepResult)
}

type Option func(*Runner)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithStepHook registers fn to be called after every executed step.
func WithStepHook(fn func(StepResult)) Option {
	return func(r *Runner) { r.onStep = fn }
}

func New(dialer remote.Dialer, opts ...Option) *Runner {
	r := &Runner{
		dialer: dialer,
		writer: persistence.FileWriter{Overwrite: true},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveSession returns the context's handle if it is still alive, and
// otherwise opens a new one and attaches it to sc.
func (r *Runner) ResolveSession(ctx context.Context, sc *Context) (remote.Handle, error) {
	logger := lg.FromContext(ctx)

	switch s := sc.session.(type) {
	case Active:
		if s.Handle.Alive() {
			return s.Handle, nil
		}
		logger.Warn("session is no longer alive, reconnecting", lg.String("target", s.Target.String()))
		s.Handle.Close()
		sc.session = Unresolved{Target: s.Target}
	case Unresolved:
	}

	target := sc.session.target()
	logger.Info("connecting", lg.String("target", target.String()))
	h, err := r.dialer.Open(ctx, target)
	if err != nil {
		return nil, &ConnectionError{Target: target.String(), Err: err}
	}
	sc.session = Active{Target: target, Handle: h}
	return h, nil
}

// RunTask runs one task on h. A non-zero exit becomes a *CommandFailure and a
// transport problem a *ConnectionError.
func (r *Runner) RunTask(ctx context.Context, h remote.Handle, task Task) (remote.Result, error) {
	cmd := task.RemoteCommand()
	res, err := h.Run(ctx, cmd)
	if err != nil {
		return res, &ConnectionError{Err: fmt.Errorf("running %q: %w", task.Name, err)}
	}
	if res.ExitCode != 0 {
		return res, &CommandFailure{
			Step:     task.Name,
			Command:  remote.Compose(cmd),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	if task.Artifact != nil {
		if err := r.fetch(ctx, h, task); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Runner) fetch(ctx context.Context, h remote.Handle, task Task) error {
	a := task.Artifact
	logger := lg.FromContext(ctx)

	if remote.IsSimulated(h) {
		if _, err := h.Fetch(ctx, a.Remote, io.Discard); err != nil {
			return &ConnectionError{Err: fmt.Errorf("fetching %s: %w", a.Remote, err)}
		}
		logger.Info("artifact not saved on a simulated session", lg.String("local", a.Local))
		return nil
	}

	var taskErr error
	err := r.writer.WriteStream(a.Local, func(w io.Writer) error {
		res, err := h.Fetch(ctx, a.Remote, w)
		var writeErr *remote.WriteError
		switch {
		case errors.As(err, &writeErr):
			return writeErr.Err
		case err != nil:
			taskErr = &ConnectionError{Err: fmt.Errorf("fetching %s: %w", a.Remote, err)}
		case res.ExitCode != 0:
			taskErr = &CommandFailure{
				Step:     task.Name,
				Command:  remote.FetchLine(a.Remote),
				ExitCode: res.ExitCode,
				Stderr:   res.Stderr,
			}
		default:
			logger.Info("artifact fetched",
				lg.String("remote", a.Remote),
				lg.String("local", a.Local),
				lg.Any("bytes", res.Bytes))
		}
		return taskErr
	})
	if taskErr != nil {
		return taskErr
	}
	if err != nil {
		return fmt.Errorf("saving %s: %w", a.Local, err)
	}
	return nil
}

// RunPipeline runs tasks in order over one session. Branch preconditions are
// checked before connecting. The first error aborts the run; the returned
// Outcome is never nil and its Err equals the returned error.
func (r *Runner) RunPipeline(ctx context.Context, sc *Context, name string, tasks []Task) (*Outcome, error) {
	out, ctx := r.begin(ctx, sc, name)
	logger := lg.FromContext(ctx)

	for _, t := range tasks {
		if t.NeedsBranch && sc.Branch == "" {
			return r.abort(ctx, out, 0, &ConfigurationError{Field: "branch", Msg: "branch name is not specified"})
		}
	}

	out.State = Connecting
	h, err := r.ResolveSession(ctx, sc)
	if err != nil {
		return r.abort(ctx, out, 0, err)
	}

	for i, t := range tasks {
		out.State = Running
		out.Step = i + 1
		logger.Info("step started", lg.Int("step", out.Step), lg.String("task", t.Name))

		started := r.now()
		res, err := r.RunTask(ctx, h, t)
		step := StepResult{
			Name:     t.Name,
			Command:  remote.Compose(t.RemoteCommand()),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Duration: r.now().Sub(started),
			Err:      err,
		}
		if t.Artifact != nil && err == nil && !remote.IsSimulated(h) {
			step.Artifact = t.Artifact.Local
		}
		out.Steps = append(out.Steps, step)
		if r.onStep != nil {
			r.onStep(step)
		}
		if err != nil {
			return r.abort(ctx, out, out.Step, err)
		}
		logger.Debug("step finished", lg.String("task", t.Name), lg.Duration("took", step.Duration))
	}

	out.State = Succeeded
	out.FinishedAt = r.now()
	logger.Info("pipeline succeeded", lg.Int("steps", len(out.Steps)))
	return out, nil
}

// Reject records a run whose tasks could not be built. The Outcome is
// Aborted before any step and carries err.
func (r *Runner) Reject(ctx context.Context, sc *Context, name string, err error) *Outcome {
	out, ctx := r.begin(ctx, sc, name)
	out, _ = r.abort(ctx, out, 0, err)
	return out
}

func (r *Runner) begin(ctx context.Context, sc *Context, name string) (*Outcome, context.Context) {
	out := &Outcome{
		RunID:     uuid.New(),
		Pipeline:  name,
		Target:    sc.Target().String(),
		Branch:    sc.Branch,
		State:     NotStarted,
		StartedAt: r.now(),
	}
	logger := lg.FromContext(ctx).With(lg.String("run", out.RunID.String()), lg.String("pipeline", name))
	return out, lg.Attach(ctx, logger)
}

func (r *Runner) abort(ctx context.Context, out *Outcome, step int, err error) (*Outcome, error) {
	out.State = Aborted
	out.Step = step
	out.Err = err
	out.FinishedAt = r.now()

	fields := []lg.Field{lg.Int("step", step), lg.Err(err)}
	var failure *CommandFailure
	if errors.As(err, &failure) {
		fields = append(fields, lg.Int("exit_code", failure.ExitCode))
	}
	lg.FromContext(ctx).Error("pipeline aborted", fields...)
	return out, err
}
