package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andrej220/rdeploy/internal/processor"
	"github.com/andrej220/rdeploy/internal/runner"
	"github.com/andrej220/rdeploy/internal/tasks"
	"github.com/andrej220/rdeploy/pkg/lg"
	"github.com/spf13/cobra"
)

var errCancelled = errors.New("action cancelled")

// reportedError marks an error whose details were already written to
// standard error.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func (a *App) taskCommand(e tasks.Entry) *cobra.Command {
	return &cobra.Command{
		Use:     e.Name,
		Short:   e.Short,
		Aliases: e.Aliases,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), e)
		},
	}
}

func (a *App) run(ctx context.Context, e tasks.Entry) error {
	ctx = lg.Attach(ctx, a.logger)

	if e.Confirm != "" {
		if err := a.confirm(e.Confirm); err != nil {
			return err
		}
	}

	branch := a.branch()
	target, err := a.target()
	if err != nil {
		return err
	}
	sc := runner.NewContext(target, branch)
	defer sc.Close()

	r := runner.New(a.remoteDialer(), runner.WithClock(a.now), runner.WithStepHook(a.printStep))
	catalog := tasks.New(a.cfg, tasks.WithOutputDir(a.flags.outputDir), tasks.WithClock(a.now))

	var outcome *runner.Outcome
	list, runErr := catalog.Build(e.Name, branch)
	if runErr != nil {
		outcome = r.Reject(ctx, sc, e.Name, runErr)
	} else {
		outcome, runErr = r.RunPipeline(ctx, sc, e.Name, list)
	}
	a.publish(ctx, outcome)

	if runErr != nil {
		a.printFailure(outcome, runErr)
		return &reportedError{err: runErr}
	}
	fmt.Fprintf(a.out, "Done. %s finished on %s in %s.\n", e.Name, target, outcome.FinishedAt.Sub(outcome.StartedAt).Round(time.Millisecond))
	return nil
}

func (a *App) confirm(prompt string) error {
	if a.flags.yes {
		return nil
	}
	fmt.Fprintf(a.out, "\n!!! WARNING: %s on %q !!!\n> Type 'yes' to confirm: ", prompt, a.envName)
	input, _ := bufio.NewReader(a.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return nil
	default:
		return errCancelled
	}
}

func (a *App) printStep(s runner.StepResult) {
	fmt.Fprintf(a.out, "==> %s\n", s.Name)
	if s.Stdout != "" {
		fmt.Fprint(a.out, s.Stdout)
		if !strings.HasSuffix(s.Stdout, "\n") {
			fmt.Fprintln(a.out)
		}
	}
	if s.Artifact != "" {
		fmt.Fprintf(a.out, "saved %s\n", s.Artifact)
	}
}

func (a *App) printFailure(outcome *runner.Outcome, err error) {
	var (
		cfgErr  *runner.ConfigurationError
		connErr *runner.ConnectionError
		failure *runner.CommandFailure
	)
	switch {
	case errors.As(err, &failure):
		fmt.Fprintf(a.errOut, "FAILED at step %d (%s), exit code %d\n", outcome.Step, failure.Step, failure.ExitCode)
		fmt.Fprintf(a.errOut, "command: %s\n", failure.Command)
		for _, line := range failure.Tail(processor.DefaultTailLines) {
			fmt.Fprintf(a.errOut, "  | %s\n", line)
		}
	case errors.As(err, &cfgErr):
		fmt.Fprintf(a.errOut, "configuration error: %s\n", cfgErr)
	case errors.As(err, &connErr):
		fmt.Fprintf(a.errOut, "connection error: %s\n", connErr)
	default:
		fmt.Fprintf(a.errOut, "FAILED at step %d: %s\n", outcome.Step, err)
	}
}
