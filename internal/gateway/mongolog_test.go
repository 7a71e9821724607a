package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeLogCollection struct {
	inserted []any
	filters  []any
	findOpts []*options.FindOptions
	indexes  *fakeLogIndexView
	results  []ToolInvocation
}

func (c *fakeLogCollection) InsertOne(_ context.Context, doc any, _ ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error) {
	c.inserted = append(c.inserted, doc)
	return &mongodriver.InsertOneResult{}, nil
}

func (c *fakeLogCollection) Find(_ context.Context, filter any, opts ...*options.FindOptions) (logCursor, error) {
	c.filters = append(c.filters, filter)
	c.findOpts = append(c.findOpts, opts...)
	return &fakeLogCursor{results: c.results}, nil
}

func (c *fakeLogCollection) Indexes() logIndexView {
	return c.indexes
}

type fakeLogIndexView struct {
	models []mongodriver.IndexModel
}

func (v *fakeLogIndexView) CreateOne(_ context.Context, model mongodriver.IndexModel,
	_ ...*options.CreateIndexesOptions) (string, error) {
	v.models = append(v.models, model)
	return "", nil
}

type fakeLogCursor struct {
	results []ToolInvocation
}

func (c *fakeLogCursor) All(_ context.Context, results any) error {
	out, ok := results.(*[]ToolInvocation)
	if !ok {
		return nil
	}
	*out = c.results
	return nil
}

func (c *fakeLogCursor) Close(context.Context) error { return nil }

func newFakeMongoLog(coll *fakeLogCollection) *MongoLog {
	return &MongoLog{coll: coll, timeout: time.Second}
}

func TestMongoLog_AppendPersistsRecord(t *testing.T) {
	coll := &fakeLogCollection{indexes: &fakeLogIndexView{}}
	log := newFakeMongoLog(coll)

	inv := ToolInvocation{
		ID:        "inv-1",
		SessionID: "sess-1",
		Action:    "launch_ec2",
		Outcome:   OutcomeSuccess,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, log.Append(context.Background(), inv))

	require.Len(t, coll.inserted, 1)
	stored, ok := coll.inserted[0].(ToolInvocation)
	require.True(t, ok)
	assert.Equal(t, "inv-1", stored.ID)
	assert.Equal(t, "launch_ec2", stored.Action)
}

func TestMongoLog_AppendRequiresID(t *testing.T) {
	log := newFakeMongoLog(&fakeLogCollection{})
	err := log.Append(context.Background(), ToolInvocation{SessionID: "sess-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invocation id")
}

func TestMongoLog_ListFiltersBySession(t *testing.T) {
	coll := &fakeLogCollection{results: []ToolInvocation{
		{ID: "inv-2", SessionID: "sess-1"},
		{ID: "inv-1", SessionID: "sess-1"},
	}}
	log := newFakeMongoLog(coll)

	out, err := log.List(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	require.Len(t, coll.filters, 1)
	assert.Equal(t, bson.M{"session_id": "sess-1"}, coll.filters[0])
	require.Len(t, coll.findOpts, 1)
	require.NotNil(t, coll.findOpts[0].Limit)
	assert.Equal(t, int64(10), *coll.findOpts[0].Limit)
}

func TestEnsureLogIndexes(t *testing.T) {
	indexes := &fakeLogIndexView{}
	coll := &fakeLogCollection{indexes: indexes}

	require.NoError(t, ensureLogIndexes(context.Background(), coll))
	require.Len(t, indexes.models, 2)

	assert.Equal(t, bson.D{
		{Key: "session_id", Value: 1},
		{Key: "started_at", Value: -1},
	}, indexes.models[0].Keys)

	assert.Equal(t, bson.D{{Key: "invocation_id", Value: 1}}, indexes.models[1].Keys)
	require.NotNil(t, indexes.models[1].Options)
	require.NotNil(t, indexes.models[1].Options.Unique)
	assert.True(t, *indexes.models[1].Options.Unique)
}
