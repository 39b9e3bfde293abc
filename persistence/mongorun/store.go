// Package mongorun is an optional RunStore external collaborator recording
// Agent Process status/history to MongoDB for external inspection. The core
// never calls it directly -- process.Process persists nothing itself (§6
// "the core itself persists nothing") -- it is wired in by example callers
// that want run visibility, grounded on the teacher's
// features/run/mongo.Store and its narrow Client interface, which the
// teacher itself tests against a fake rather than a live server.
package mongorun

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	defaultCollection = "agentforge_runs"
	defaultOpTimeout  = 5 * time.Second
)

// Record is the persisted view of one Agent Process run (§6 "RunStore
// recording process status/history for external inspection").
type Record struct {
	ProcessID string    `bson:"process_id"`
	Status    string    `bson:"status"`
	Reason    string    `bson:"reason,omitempty"`
	History   []string  `bson:"history"`
	StartedAt time.Time `bson:"started_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Client exposes the Mongo-backed operations a Store needs. NewClient
// returns the real MongoDB-backed implementation; tests substitute a local
// fake.
type Client interface {
	UpsertRun(ctx context.Context, rec Record) error
	LoadRun(ctx context.Context, processID string) (Record, error)
}

// ClientOptions configures the real MongoDB-backed Client.
type ClientOptions struct {
	Mongo      *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type mongoClient struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

// NewClient returns a Client backed by a live MongoDB collection.
func NewClient(opts ClientOptions) (Client, error) {
	if opts.Mongo == nil {
		return nil, errors.New("mongorun: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongorun: database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Mongo.Database(opts.Database).Collection(collection)
	return &mongoClient{coll: coll, timeout: timeout}, nil
}

func (c *mongoClient) UpsertRun(ctx context.Context, rec Record) error {
	now := time.Now().UTC()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	rec.UpdatedAt = now

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"process_id": rec.ProcessID}
	update := bson.M{
		"$set": bson.M{
			"status":     rec.Status,
			"reason":     rec.Reason,
			"history":    rec.History,
			"updated_at": rec.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"process_id": rec.ProcessID,
			"started_at": rec.StartedAt,
		},
	}
	_, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (c *mongoClient) LoadRun(ctx context.Context, processID string) (Record, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var rec Record
	if err := c.coll.FindOne(ctx, bson.M{"process_id": processID}).Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (c *mongoClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Options configures a Store.
type Options struct {
	Client Client
}

// Store implements an optional RunStore by delegating to a Client.
type Store struct {
	client Client
}

// NewStore builds a Store from a Client, real or fake.
func NewStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongorun: client is required")
	}
	return &Store{client: opts.Client}, nil
}

// NewStoreFromMongo constructs the real MongoDB-backed Client from opts and
// wraps it in a Store.
func NewStoreFromMongo(opts ClientOptions) (*Store, error) {
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(Options{Client: client})
}

// Upsert records rec's current status and history via the underlying
// Client.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.ProcessID == "" {
		return errors.New("mongorun: process id is required")
	}
	return s.client.UpsertRun(ctx, rec)
}

// Load retrieves the recorded Record for processID via the underlying
// Client.
func (s *Store) Load(ctx context.Context, processID string) (Record, error) {
	if processID == "" {
		return Record{}, errors.New("mongorun: process id is required")
	}
	return s.client.LoadRun(ctx, processID)
}
