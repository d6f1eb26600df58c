// Package store adapts a MongoDB-compatible document store to the narrow
// sink contract the ingestion loader depends on. All driver-specific error
// classification lives here: duplicate-key rejections become counts,
// network and timeout failures are marked transient, everything else passes
// through unclassified.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mwarner/iot-ingest/internal/ingest"
)

// Config holds store connection settings.
type Config struct {
	URI        string
	Database   string
	Collection string
	// ConnectTimeout bounds the startup connect-and-ping sequence.
	ConnectTimeout time.Duration
}

// Store is a single long-lived connection to one insert-only collection.
// Documents are keyed by _id, so the collection's mandatory unique index is
// the deduplication mechanism; no separate index setup is needed.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ ingest.Sink = (*Store)(nil)

// Connect establishes the client and verifies the server is reachable. An
// unreachable store at startup is fatal for the run, so the ping happens
// here rather than lazily on first insert.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// BulkInsert submits docs as one unordered bulk insert. Unordered semantics
// matter: a duplicate-key rejection must not abort the rest of the batch.
//
// Duplicate-key write errors are an expected outcome and are returned as
// counts with a nil error; retrying them could never succeed. Transient
// driver failures come back joined with ingest.ErrTransient so the caller
// can retry the identical batch.
func (s *Store) BulkInsert(ctx context.Context, docs []bson.M) (ingest.InsertResult, error) {
	models := make([]mongo.WriteModel, len(docs))
	for i, doc := range docs {
		models[i] = mongo.NewInsertOneModel().SetDocument(doc)
	}

	_, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return classify(len(docs), err)
}

// classify turns a bulk write outcome into the loader's accounting. total is
// the number of documents submitted.
func classify(total int, err error) (ingest.InsertResult, error) {
	if err == nil {
		return ingest.InsertResult{Inserted: total}, nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
		res := ingest.InsertResult{Inserted: total - len(bwe.WriteErrors)}
		for _, we := range bwe.WriteErrors {
			if mongo.IsDuplicateKeyError(we.WriteError) {
				res.Duplicates++
			} else {
				res.Failed++
			}
		}
		return res, nil
	}

	if isTransient(err) {
		return ingest.InsertResult{}, errors.Join(ingest.ErrTransient, err)
	}
	return ingest.InsertResult{}, err
}

// Close releases the client connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// isTransient reports whether err looks retry-recoverable: a network-class
// driver error or a timeout, as opposed to a write rejection.
func isTransient(err error) bool {
	return mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, context.DeadlineExceeded)
}
