package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func sampleReport() *Report {
	started := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	return &Report{
		RunID:       "6f1c1f0e-8a35-4c5b-9d55-0c0e8f1c2a11",
		Project:     "dev_project",
		Environment: "develop",
		Pipeline:    "deploy",
		Target:      "deploy@h1:22",
		Branch:      "develop",
		State:       "aborted",
		FailedStep:  "migrate",
		Error:       "step \"migrate\" failed with exit code 1",
		Steps: []Step{
			{Name: "checkout", Command: "git checkout develop", DurationMS: 120},
			{Name: "migrate", Command: "manage.py migrate", ExitCode: 1, Output: []string{"no such table"}},
		},
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { w.closed = true; return nil }

type fakeCollection struct {
	docs []any
	err  error
}

func (c *fakeCollection) InsertOne(_ context.Context, doc any, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	c.docs = append(c.docs, doc)
	return &mongo.InsertOneResult{}, c.err
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "last-run.json")
	require.NoError(t, FileSink{Path: path}.Publish(context.Background(), sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, *sampleReport(), got)
}

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w, topic: "deploy-runs"}

	require.NoError(t, sink.Publish(context.Background(), sampleReport()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte(sampleReport().RunID), w.msgs[0].Key)
	assert.Contains(t, string(w.msgs[0].Value), `"failed_step":"migrate"`)

	w.err = kafka.UnknownTopicOrPartition
	err := sink.Publish(context.Background(), sampleReport())
	assert.ErrorContains(t, err, `kafka topic "deploy-runs" does not exist`)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestMongoSink(t *testing.T) {
	coll := &fakeCollection{}
	sink := &MongoSink{collection: coll}

	require.NoError(t, sink.Publish(context.Background(), sampleReport()))
	require.Len(t, coll.docs, 1)
	assert.Equal(t, sampleReport(), coll.docs[0])

	coll.err = errors.New("duplicate key")
	assert.ErrorContains(t, sink.Publish(context.Background(), sampleReport()), "duplicate key")
	assert.NoError(t, sink.Close())
}

func TestMulti(t *testing.T) {
	good := &fakeWriter{}
	bad := &fakeCollection{err: errors.New("mongo down")}
	m := Multi{&KafkaSink{writer: good}, &MongoSink{collection: bad}}

	err := m.Publish(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "mongo down")
	assert.Len(t, good.msgs, 1, "a failing sink must not stop the others")
	assert.NoError(t, m.Close())
}
