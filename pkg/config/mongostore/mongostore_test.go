package mongostore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type environment struct {
	Host   string `bson:"host"`
	Branch string `bson:"branch"`
}

type document struct {
	Name         string                  `bson:"name"`
	Environments map[string]*environment `bson:"environments"`
}

// memCollection keeps one document per _id.
type memCollection struct {
	docs    map[string]any
	upserts []bool
	err     error
}

func (c *memCollection) FindOne(_ context.Context, filter any, _ ...*options.FindOneOptions) *mongo.SingleResult {
	id := filter.(bson.M)["_id"].(string)
	doc, ok := c.docs[id]
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.M{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (c *memCollection) ReplaceOne(_ context.Context, filter, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	upsert := false
	for _, o := range opts {
		if o.Upsert != nil {
			upsert = *o.Upsert
		}
	}
	c.upserts = append(c.upserts, upsert)
	c.docs[filter.(bson.M)["_id"].(string)] = replacement
	return &mongo.UpdateResult{UpsertedCount: 1}, nil
}

func TestSaveLoadRoundTrip(t *testing.T) {
	coll := &memCollection{docs: map[string]any{}}
	store := &MongoStore{Collection: coll, ID: "dev_project"}

	in := &document{Name: "dev_project", Environments: map[string]*environment{
		"develop": {Host: "h1", Branch: "develop"},
	}}
	require.NoError(t, store.Save(in))
	assert.Equal(t, []bool{true}, coll.upserts, "save must upsert")

	var out document
	require.NoError(t, store.Load(&out))
	assert.Equal(t, *in, out)
	assert.NoError(t, store.Close())
}

func TestLoadErrors(t *testing.T) {
	store := &MongoStore{Collection: &memCollection{docs: map[string]any{}}, ID: "missing"}

	var out document
	assert.ErrorContains(t, store.Load(&out), `document with ID "missing" not found`)
	assert.ErrorContains(t, store.Load(nil), "output parameter must not be nil")
}

func TestSaveErrors(t *testing.T) {
	store := &MongoStore{Collection: &memCollection{docs: map[string]any{}, err: errors.New("not primary")}, ID: "x"}

	assert.ErrorContains(t, store.Save(&document{}), "ReplaceOne failed: not primary")
	assert.ErrorContains(t, store.Save(nil), "input parameter must not be nil")
}
