package cli

import (
	"context"
	"strings"

	"github.com/andrej220/rdeploy/internal/processor"
	"github.com/andrej220/rdeploy/internal/runner"
	"github.com/andrej220/rdeploy/pkg/lg"
	"github.com/andrej220/rdeploy/pkg/report"
)

func (a *App) newReport(o *runner.Outcome) *report.Report {
	r := &report.Report{
		RunID:       o.RunID.String(),
		Project:     a.cfg.Project.Name,
		Environment: a.envName,
		Pipeline:    o.Pipeline,
		Target:      o.Target,
		Branch:      o.Branch,
		State:       o.State.String(),
		FailedStep:  o.FailedStep(),
		Steps:       make([]report.Step, 0, len(o.Steps)),
		StartedAt:   o.StartedAt,
		FinishedAt:  o.FinishedAt,
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	for _, s := range o.Steps {
		r.Steps = append(r.Steps, report.Step{
			Name:       s.Name,
			Command:    s.Command,
			ExitCode:   s.ExitCode,
			Output:     processor.Tail(joinOutput(s.Stdout, s.Stderr), processor.DefaultTailLines),
			Artifact:   s.Artifact,
			DurationMS: s.Duration.Milliseconds(),
		})
	}
	return r
}

func joinOutput(stdout, stderr string) string {
	if stdout == "" || strings.HasSuffix(stdout, "\n") {
		return stdout + stderr
	}
	return stdout + "\n" + stderr
}

// sinks opens every configured report destination. Mongo and Kafka are
// skipped on dry runs.
func (a *App) sinks(ctx context.Context) report.Multi {
	logger := lg.FromContext(ctx)
	var sinks report.Multi

	path := a.cfg.Report.File
	if a.flags.reportPath != "" {
		path = a.flags.reportPath
	}
	if path != "" {
		sinks = append(sinks, report.FileSink{Path: path})
	}
	if a.flags.dryRun {
		return sinks
	}

	if m := a.cfg.Report.Mongo; m.URI != "" {
		sink, err := report.NewMongoSink(ctx, m.URI, m.Database, m.Collection)
		if err != nil {
			logger.Warn("report sink unavailable", lg.String("sink", "mongo"), lg.Err(err))
		} else {
			sinks = append(sinks, sink)
		}
	}
	if k := a.cfg.Report.Kafka; len(k.Brokers) > 0 {
		sinks = append(sinks, report.NewKafkaSink(k.Brokers, k.Topic))
	}
	return sinks
}

// publish hands the run report to the configured sinks. Failures are logged
// and never change the run's exit status.
func (a *App) publish(ctx context.Context, o *runner.Outcome) {
	sinks := a.sinks(ctx)
	if len(sinks) == 0 {
		return
	}
	defer sinks.Close()

	logger := lg.FromContext(ctx)
	r := a.newReport(o)
	if err := sinks.Publish(ctx, r); err != nil {
		logger.Warn("failed to publish run report", lg.String("run", r.RunID), lg.Err(err))
		return
	}
	logger.Debug("run report published", lg.String("run", r.RunID), lg.Int("sinks", len(sinks)))
}
