package credentials

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultOpTimeout = 5 * time.Second

// MongoStoreOptions configures the Mongo-backed credential store.
type MongoStoreOptions struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore persists encrypted credential records in MongoDB. One active
// record per session; storing new material deactivates the prior record.
type MongoStore struct {
	coll    collection
	timeout time.Duration
}

// NewMongoStore creates the store and ensures its indexes.
func NewMongoStore(opts MongoStoreOptions) (*MongoStore, error) {
	if opts.Client == nil {
		return nil, errors.New("credentials: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("credentials: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = "cloud_credentials"
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

type credentialDocument struct {
	SessionID   string    `bson:"session_id"`
	Ciphertext  []byte    `bson:"ciphertext"`
	KeyLastFour string    `bson:"key_last_four"`
	Active      bool      `bson:"active"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (s *MongoStore) SaveActive(ctx context.Context, sessionID string, rec Record) error {
	if sessionID == "" {
		return errors.New("credentials: session id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Deactivate prior records first so exactly one active record exists
	// per session.
	filter := bson.M{"session_id": sessionID, "active": true}
	if _, err := s.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"active": false}}); err != nil {
		return err
	}

	now := rec.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	doc := credentialDocument{
		SessionID:   sessionID,
		Ciphertext:  rec.Ciphertext,
		KeyLastFour: rec.KeyLastFour,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.coll.InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) FindActive(ctx context.Context, sessionID string) (Record, error) {
	if sessionID == "" {
		return Record{}, errors.New("credentials: session id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"session_id": sessionID, "active": true}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var doc credentialDocument
	if err := s.coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return Record{}, ErrCredentialsMissing
		}
		return Record{}, err
	}
	return Record{
		SessionID:   doc.SessionID,
		Ciphertext:  doc.Ciphertext,
		KeyLastFour: doc.KeyLastFour,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ensureIndexes(ctx context.Context, coll collection) error {
	sessionActiveIndex := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "active", Value: 1},
			{Key: "updated_at", Value: -1},
		},
	}
	_, err := coll.Indexes().CreateOne(ctx, sessionActiveIndex)
	return err
}

// collection narrows the driver surface so tests can substitute fakes.
type collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult
	InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error)
	UpdateMany(ctx context.Context, filter any, update any,
		opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel,
		opts ...*options.CreateIndexesOptions) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc, opts...)
}

func (c mongoCollection) UpdateMany(ctx context.Context, filter any, update any,
	opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateMany(ctx, filter, update, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return c.coll.Indexes()
}

var _ Store = (*MongoStore)(nil)
