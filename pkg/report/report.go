// Package report publishes the summary of a pipeline run to a JSON file,
// a MongoDB collection or a Kafka topic.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/andrej220/rdeploy/pkg/persistence"
)

// Report is the record of one pipeline run.
type Report struct {
	RunID       string    `json:"run_id" bson:"_id"`
	Project     string    `json:"project" bson:"project"`
	Environment string    `json:"environment" bson:"environment"`
	Pipeline    string    `json:"pipeline" bson:"pipeline"`
	Target      string    `json:"target" bson:"target"`
	Branch      string    `json:"branch,omitempty" bson:"branch,omitempty"`
	State       string    `json:"state" bson:"state"`
	FailedStep  string    `json:"failed_step,omitempty" bson:"failed_step,omitempty"`
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`
	Steps       []Step    `json:"steps" bson:"steps"`
	StartedAt   time.Time `json:"started_at" bson:"started_at"`
	FinishedAt  time.Time `json:"finished_at" bson:"finished_at"`
}

type Step struct {
	Name       string   `json:"name" bson:"name"`
	Command    string   `json:"command" bson:"command"`
	ExitCode   int      `json:"exit_code" bson:"exit_code"`
	Output     []string `json:"output,omitempty" bson:"output,omitempty"`
	Artifact   string   `json:"artifact,omitempty" bson:"artifact,omitempty"`
	DurationMS int64    `json:"duration_ms" bson:"duration_ms"`
}

// Sink receives finished reports.
type Sink interface {
	Publish(ctx context.Context, r *Report) error
	Close() error
}

// FileSink writes each report as indented JSON to Path, replacing the
// previous one.
type FileSink struct {
	Path string
}

func (s FileSink) Publish(_ context.Context, r *Report) error {
	return persistence.WriteJSON(r, s.Path)
}

func (s FileSink) Close() error { return nil }

// Multi fans a report out to several sinks. Every sink is tried; the errors
// are joined.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, r *Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
