package deployments

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultOpTimeout = 5 * time.Second

// MongoStoreOptions configures the Mongo-backed deployment store.
type MongoStoreOptions struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore persists deployment records with a TTL index enforcing the
// 90-day retention window.
type MongoStore struct {
	coll    collection
	timeout time.Duration
}

// NewMongoStore creates the store and ensures its indexes.
func NewMongoStore(opts MongoStoreOptions) (*MongoStore, error) {
	if opts.Client == nil {
		return nil, errors.New("deployments: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("deployments: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = "deployments"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	coll := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(collName)}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, coll); err != nil {
		return nil, err
	}
	return &MongoStore{coll: coll, timeout: timeout}, nil
}

func (s *MongoStore) Insert(ctx context.Context, rec Record) error {
	if rec.DeploymentID == "" {
		return errors.New("deployments: deployment id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, rec)
	return err
}

func (s *MongoStore) List(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ensureIndexes(ctx context.Context, coll collection) error {
	sessionIndex := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	}
	if _, err := coll.Indexes().CreateOne(ctx, sessionIndex); err != nil {
		return err
	}

	// Retention is enforced server-side: documents expire 90 days after
	// created_at.
	ttlIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(RetentionWindow / time.Second)),
	}
	_, err := coll.Indexes().CreateOne(ctx, ttlIndex)
	return err
}

// collection narrows the driver surface so tests can substitute fakes.
type collection interface {
	InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error)
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel,
		opts ...*options.CreateIndexesOptions) (string, error)
}

type cursor interface {
	All(ctx context.Context, results any) error
	Close(ctx context.Context) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc, opts...)
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error) {
	return c.coll.Find(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return c.coll.Indexes()
}

var _ Store = (*MongoStore)(nil)
