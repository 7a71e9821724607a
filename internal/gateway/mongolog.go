package gateway

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultLogOpTimeout = 5 * time.Second

// MongoLogOptions configures the Mongo-backed invocation log.
type MongoLogOptions struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoLog persists invocation records so the audit trail survives
// restarts. Records are append-only and never updated.
type MongoLog struct {
	coll    logCollection
	timeout time.Duration
}

// NewMongoLog creates the log and ensures its indexes.
func NewMongoLog(opts MongoLogOptions) (*MongoLog, error) {
	if opts.Client == nil {
		return nil, errors.New("gateway: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("gateway: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = "tool_invocations"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLogOpTimeout
	}

	coll := mongoLogCollection{coll: opts.Client.Database(opts.Database).Collection(collName)}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureLogIndexes(ctx, coll); err != nil {
		return nil, err
	}
	return &MongoLog{coll: coll, timeout: timeout}, nil
}

func (l *MongoLog) Append(ctx context.Context, inv ToolInvocation) error {
	if inv.ID == "" {
		return errors.New("gateway: invocation id is required")
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	_, err := l.coll.InsertOne(ctx, inv)
	return err
}

// List returns a session's invocation records, newest first.
func (l *MongoLog) List(ctx context.Context, sessionID string, limit int) ([]ToolInvocation, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := l.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []ToolInvocation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *MongoLog) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, l.timeout)
}

func ensureLogIndexes(ctx context.Context, coll logCollection) error {
	sessionIndex := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "started_at", Value: -1},
		},
	}
	if _, err := coll.Indexes().CreateOne(ctx, sessionIndex); err != nil {
		return err
	}

	idIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "invocation_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := coll.Indexes().CreateOne(ctx, idIndex)
	return err
}

// logCollection narrows the driver surface so tests can substitute fakes.
type logCollection interface {
	InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error)
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (logCursor, error)
	Indexes() logIndexView
}

type logIndexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel,
		opts ...*options.CreateIndexesOptions) (string, error)
}

type logCursor interface {
	All(ctx context.Context, results any) error
	Close(ctx context.Context) error
}

type mongoLogCollection struct {
	coll *mongodriver.Collection
}

func (c mongoLogCollection) InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc, opts...)
}

func (c mongoLogCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (logCursor, error) {
	return c.coll.Find(ctx, filter, opts...)
}

func (c mongoLogCollection) Indexes() logIndexView {
	return c.coll.Indexes()
}

var _ InvocationLog = (*MongoLog)(nil)
