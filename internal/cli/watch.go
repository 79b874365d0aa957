package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/andrej220/rdeploy/pkg/consumer"
	"github.com/andrej220/rdeploy/pkg/lg"
	"github.com/andrej220/rdeploy/pkg/report"
	"github.com/spf13/cobra"
)

type reportReader interface {
	Read(ctx context.Context) (report.Report, error)
	Close() error
}

func newKafkaReader(cfg consumer.Config) reportReader {
	return consumer.NewConsumer[report.Report](cfg)
}

func (a *App) watchCommand() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow run reports published to the Kafka topic.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := a.cfg.Report.Kafka
			if len(k.Brokers) == 0 {
				return fmt.Errorf("report.kafka.brokers is not configured")
			}
			r := a.newReader(consumer.Config{Brokers: k.Brokers, GroupID: group, Topic: k.Topic})
			defer r.Close()
			return a.follow(lg.Attach(cmd.Context(), a.logger), r)
		},
	}
	cmd.Flags().StringVar(&group, "group", serviceName+"-watch", "Kafka consumer group")
	return cmd
}

// follow prints one line per report until ctx is cancelled.
func (a *App) follow(ctx context.Context, r reportReader) error {
	logger := lg.FromContext(ctx)
	for {
		rep, err := r.Read(ctx)
		switch {
		case err == nil:
			fmt.Fprintln(a.out, formatReport(&rep))
		case errors.Is(err, consumer.ErrMalformed):
			logger.Warn("skipping report", lg.Err(err))
		case errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
			return nil
		default:
			return fmt.Errorf("failed to read reports: %w", err)
		}
	}
}

func formatReport(r *report.Report) string {
	line := fmt.Sprintf("%s %s/%s %s %s on %s",
		r.FinishedAt.Format(time.RFC3339), r.Project, r.Environment, r.Pipeline, r.State, r.Target)
	if r.Branch != "" {
		line += " branch=" + r.Branch
	}
	if r.FailedStep != "" {
		line += " failed_step=" + r.FailedStep
	}
	return line + " run=" + r.RunID
}
