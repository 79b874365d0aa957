package report

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 10 * time.Second

type inserter interface {
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoSink stores one document per run, with the run id as _id.
type MongoSink struct {
	client     *mongo.Client
	collection inserter
}

func NewMongoSink(ctx context.Context, uri, dbName, collName string) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoSink{
		client:     client,
		collection: client.Database(dbName).Collection(collName),
	}, nil
}

func (s *MongoSink) Publish(ctx context.Context, r *Report) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	if _, err := s.collection.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("failed to store report %s: %w", r.RunID, err)
	}
	return nil
}

func (s *MongoSink) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
